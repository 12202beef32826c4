package greenhouse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/sources"
)

const acmeJobs = `{"jobs": [
  {
    "id": 101,
    "title": "Senior Backend Engineer",
    "first_published": "2024-01-03T09:00:00-05:00",
    "absolute_url": "https://boards.greenhouse.io/acme/jobs/101",
    "company_name": "Acme Corp",
    "location": {"name": "Remote - US"},
    "content": "&lt;p&gt;Write &lt;strong&gt;Go&lt;/strong&gt; services&lt;/p&gt;",
    "departments": [{"name": "Engineering"}]
  },
  {
    "id": 102,
    "title": "Account Executive",
    "updated_at": "2024-01-02T09:00:00Z",
    "location": {"name": "Berlin"},
    "content": "Sales"
  },
  {
    "id": 103,
    "title": "Backend Engineer, Payments",
    "updated_at": "2024-01-01T09:00:00Z",
    "location": {"name": "Berlin"},
    "content": ""
  }
]}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/boards/acme/jobs":
			_, _ = w.Write([]byte(acmeJobs))
		case "/v1/boards/acme/jobs/101":
			_, _ = w.Write([]byte(`{"id": 101, "title": "Senior Backend Engineer", "location": {"name": "Remote - US"}}`))
		case "/v1/boards/acme":
			_, _ = w.Write([]byte(`{"name": "Acme"}`))
		case "/v1/boards/broken/jobs":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newProvider(srv *httptest.Server, boards string) *Provider {
	s := (*sources.ProvidersConfig)(nil).For(Name)
	s.BaseURL = srv.URL
	s.Options = map[string]string{"boards": boards}
	return New(s, sources.Deps{HTTPClient: srv.Client()})
}

func TestFetchFiltersLocally(t *testing.T) {
	p := newProvider(newServer(t), "acme")

	got, err := p.Fetch(context.Background(), domain.SearchCriteria{Keywords: "backend engineer", Location: "berlin"})
	require.NoError(t, err)
	require.Len(t, got, 2, "remote listings match any location")

	first := got[0]
	assert.Equal(t, "acme:101", first.ExternalID)
	assert.Equal(t, "Acme Corp", first.Company)
	assert.Equal(t, "Write Go services", collapse(first.Description))
	assert.Equal(t, domain.RemoteTypeRemote, first.RemoteType)
	assert.Equal(t, []string{"Engineering"}, first.Metadata["departments"])
	require.NotNil(t, first.PostedAt)

	second := got[1]
	assert.Equal(t, "acme:103", second.ExternalID)
	assert.Equal(t, "acme", second.Company, "board name is the fallback company")
}

func TestFetchPaginates(t *testing.T) {
	p := newProvider(newServer(t), "acme")

	got, err := p.Fetch(context.Background(), domain.SearchCriteria{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "acme:103", got[0].ExternalID)
}

func TestFetchPartialBoards(t *testing.T) {
	p := newProvider(newServer(t), "broken, acme")

	got, err := p.Fetch(context.Background(), domain.SearchCriteria{})
	require.NoError(t, err, "one reachable board is enough")
	assert.Len(t, got, 3)
}

func TestFetchAllBoardsFail(t *testing.T) {
	p := newProvider(newServer(t), "broken")

	_, err := p.Fetch(context.Background(), domain.SearchCriteria{})
	var upstream *sources.UpstreamError
	assert.ErrorAs(t, err, &upstream)
}

func TestFetchDetails(t *testing.T) {
	p := newProvider(newServer(t), "acme")
	ctx := context.Background()

	got, err := p.FetchDetails(ctx, "acme:101")
	require.NoError(t, err)
	assert.Equal(t, "acme:101", got.ExternalID)

	_, err = p.FetchDetails(ctx, "acme:999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = p.FetchDetails(ctx, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetchDetailsEscapesBoard(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.EscapedPath()
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	_, err := newProvider(srv, "acme").FetchDetails(context.Background(), "../admin?x=1:7")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, "/v1/boards/..%2Fadmin%3Fx=1/jobs/7", got)
}

func TestHealthCheck(t *testing.T) {
	srv := newServer(t)
	assert.True(t, newProvider(srv, "acme").HealthCheck(context.Background()))
	assert.False(t, newProvider(srv, "missing").HealthCheck(context.Background()))
	assert.False(t, newProvider(srv, "").HealthCheck(context.Background()))
}

func collapse(s string) string {
	return domain.NormalizeListing("x", domain.RawListing{Title: s}).Title
}
