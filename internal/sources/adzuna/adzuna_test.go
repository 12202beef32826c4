package adzuna

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/sources"
)

const searchBody = `{
  "count": 2,
  "results": [
    {
      "id": "4012",
      "title": "Backend Engineer (Go)",
      "description": "Build APIs. Remote friendly.",
      "company": {"display_name": "Acme"},
      "location": {"display_name": "London, UK"},
      "category": {"label": "IT Jobs", "tag": "it-jobs"},
      "salary_min": 60000,
      "salary_max": 80000,
      "redirect_url": "https://adzuna.example/4012",
      "created": "2024-01-03T10:00:00Z",
      "contract_time": "full_time",
      "contract_type": "permanent"
    },
    {
      "id": "4013",
      "title": "Platform Engineer",
      "description": "Kubernetes",
      "company": {"display_name": "Globex"},
      "location": {"display_name": "Manchester"},
      "created": "not a date"
    }
  ]
}`

func settings(baseURL string, opts map[string]string) sources.ProviderSettings {
	s := (*sources.ProvidersConfig)(nil).For(Name)
	s.BaseURL = baseURL
	s.Options = opts
	return s
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/jobs/gb/search/2", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "id", q.Get("app_id"))
		assert.Equal(t, "key", q.Get("app_key"))
		assert.Equal(t, "backend engineer", q.Get("what"))
		assert.Equal(t, "london", q.Get("where"))
		assert.Equal(t, "5", q.Get("results_per_page"))
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	p := New(settings(srv.URL, map[string]string{"app_id": "id", "app_key": "key"}), sources.Deps{HTTPClient: srv.Client()})

	got, err := p.Fetch(context.Background(), domain.SearchCriteria{Keywords: "backend engineer", Location: "london", Limit: 5, Page: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, "adzuna", first.Source)
	assert.Equal(t, "4012", first.ExternalID)
	assert.Equal(t, "Acme", first.Company)
	assert.Equal(t, domain.RemoteTypeRemote, first.RemoteType)
	require.NotNil(t, first.Salary)
	assert.Equal(t, "GBP", first.Salary.Currency)
	assert.Equal(t, 60000.0, *first.Salary.Min)
	require.NotNil(t, first.PostedAt)
	assert.Equal(t, 2024, first.PostedAt.Year())
	assert.Equal(t, "IT Jobs", first.Metadata["category"])

	assert.Nil(t, got[1].Salary)
	assert.Nil(t, got[1].PostedAt, "unparseable dates are dropped")
	assert.Equal(t, domain.RemoteTypeOnsite, got[1].RemoteType)

	rec := p.Normalize(first)
	assert.Equal(t, "adzuna", rec.Source)
	assert.Equal(t, "full_time", rec.EmploymentType)
}

func TestDisabledWithoutCredentials(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	p := New(settings(srv.URL, map[string]string{"app_id": "only-id"}), sources.Deps{HTTPClient: srv.Client()})

	assert.True(t, p.Disabled())
	_, err := p.Fetch(context.Background(), domain.SearchCriteria{})
	assert.ErrorIs(t, err, domain.ErrProviderDisabled)
	assert.False(t, p.HealthCheck(context.Background()))
	assert.False(t, called, "a disabled provider never calls upstream")
	assert.Equal(t, breaker.StateClosed, p.CircuitState().State)
}

func TestFetchDetailsNotSupported(t *testing.T) {
	p := New(settings("", map[string]string{"app_id": "a", "app_key": "b"}), sources.Deps{})
	_, err := p.FetchDetails(context.Background(), "4012")
	assert.ErrorIs(t, err, domain.ErrNotSupported)
}

func TestUpstreamFailureTripsBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := settings(srv.URL, map[string]string{"app_id": "a", "app_key": "b"})
	s.Breaker.FailureThreshold = 2
	p := New(s, sources.Deps{HTTPClient: srv.Client()})

	for i := 0; i < 2; i++ {
		_, err := p.Fetch(context.Background(), domain.SearchCriteria{})
		var upstream *sources.UpstreamError
		require.True(t, errors.As(err, &upstream), "got %v", err)
	}

	_, err := p.Fetch(context.Background(), domain.SearchCriteria{})
	assert.ErrorIs(t, err, breaker.ErrOpen)
	assert.False(t, p.HealthCheck(context.Background()))
}

func TestErrorsDoNotLeakCredentials(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	p := New(settings(base, map[string]string{"app_id": "myid", "app_key": "SUPERSECRET"}), sources.Deps{})

	_, err := p.Fetch(context.Background(), domain.SearchCriteria{Keywords: "go", Limit: 5})
	require.Error(t, err)
	assert.False(t, strings.Contains(err.Error(), "SUPERSECRET"), "error leaks the app key: %v", err)
	assert.False(t, strings.Contains(err.Error(), "app_id"), "error leaks the query: %v", err)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("results_per_page"))
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	p := New(settings(srv.URL, map[string]string{"app_id": "a", "app_key": "b", "country": "US"}), sources.Deps{HTTPClient: srv.Client()})
	assert.True(t, p.HealthCheck(context.Background()))
	assert.Equal(t, "USD", p.currency())
}
