// Package greenhouse adapts the public Greenhouse job board API.
//
// Greenhouse has no cross-company search, so the adapter walks the boards
// listed in the "boards" option and filters locally. External ids are
// "board:id" so that FetchDetails can find its way back.
package greenhouse

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/sources"
)

const (
	Name = "greenhouse"

	defaultBaseURL = "https://boards-api.greenhouse.io"
	defaultBoards  = "gitlab,cloudflare,stripe"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

type Provider struct {
	boards  []string
	baseURL string

	client *http.Client
	guard  *sources.Guard
	log    logger.Logger
}

var _ domain.Provider = (*Provider)(nil)

func New(s sources.ProviderSettings, deps sources.Deps) *Provider {
	s.Name = Name
	p := &Provider{
		boards:  splitBoards(s.Option("boards", defaultBoards)),
		baseURL: strings.TrimSuffix(s.BaseURL, "/"),
		client:  deps.Client(),
		guard:   deps.Guard(s),
		log:     deps.Log(Name),
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	return p
}

func splitBoards(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (p *Provider) Name() string { return Name }

func (p *Provider) CircuitState() breaker.Snapshot { return p.guard.CircuitState() }

type jobsResponse struct {
	Jobs []job `json:"jobs"`
}

type job struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	UpdatedAt   string       `json:"updated_at"`
	FirstPublic string       `json:"first_published"`
	AbsoluteURL string       `json:"absolute_url"`
	CompanyName string       `json:"company_name"`
	Location    location     `json:"location"`
	Content     string       `json:"content"`
	Departments []department `json:"departments"`
}

type location struct {
	Name string `json:"name"`
}

type department struct {
	Name string `json:"name"`
}

// Fetch returns whatever the reachable boards yielded. It fails only when
// no board could be read.
func (p *Provider) Fetch(ctx context.Context, c domain.SearchCriteria) ([]domain.RawListing, error) {
	c = c.Normalize()

	var (
		matched []domain.RawListing
		errs    []error
		reached int
	)
	for _, board := range p.boards {
		jobs, err := p.boardJobs(ctx, board)
		if err != nil {
			p.log.Warn("board fetch failed", logger.String("board", board), logger.Error(err))
			errs = append(errs, fmt.Errorf("board %s: %w", board, err))
			if errors.Is(err, breaker.ErrOpen) || ctx.Err() != nil {
				break
			}
			continue
		}
		reached++
		for _, j := range jobs {
			raw := p.toRaw(board, j)
			if c.Matches(raw.Title+" "+raw.Description) && c.MatchesLocation(raw.Location, raw.RemoteType) {
				matched = append(matched, raw)
			}
		}
	}

	if reached == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return sources.Page(matched, c), nil
}

func (p *Provider) boardJobs(ctx context.Context, board string) ([]job, error) {
	var resp jobsResponse
	target := fmt.Sprintf("%s/v1/boards/%s/jobs?content=true", p.baseURL, url.PathEscape(board))
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, p.client, Name, target, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func (p *Provider) FetchDetails(ctx context.Context, externalID string) (*domain.RawListing, error) {
	board, id, ok := strings.Cut(externalID, ":")
	if !ok || board == "" {
		return nil, domain.ErrNotFound
	}
	if _, err := strconv.ParseInt(id, 10, 64); err != nil {
		return nil, domain.ErrNotFound
	}

	var j job
	target := fmt.Sprintf("%s/v1/boards/%s/jobs/%s", p.baseURL, url.PathEscape(board), url.PathEscape(id))
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, p.client, Name, target, nil, &j)
	})
	if err != nil {
		return nil, err
	}
	raw := p.toRaw(board, j)
	return &raw, nil
}

func (p *Provider) toRaw(board string, j job) domain.RawListing {
	company := j.CompanyName
	if company == "" {
		company = board
	}
	description := strings.TrimSpace(tagRe.ReplaceAllString(html.UnescapeString(j.Content), " "))

	raw := domain.RawListing{
		Source:         Name,
		ExternalID:     board + ":" + strconv.FormatInt(j.ID, 10),
		Title:          j.Title,
		Company:        company,
		Location:       j.Location.Name,
		Description:    description,
		ApplicationURL: j.AbsoluteURL,
		Metadata:       map[string]any{"board": board},
	}
	if len(j.Departments) > 0 {
		names := make([]string, 0, len(j.Departments))
		for _, d := range j.Departments {
			names = append(names, d.Name)
		}
		raw.Metadata["departments"] = names
	}

	published := j.FirstPublic
	if published == "" {
		published = j.UpdatedAt
	}
	if ts, err := time.Parse(time.RFC3339, published); err == nil {
		raw.PostedAt = &ts
	}
	raw.RemoteType = domain.ClassifyRemote(j.Location.Name, j.Title)
	return raw
}

func (p *Provider) Normalize(raw domain.RawListing) domain.NormalizedRecord {
	return domain.NormalizeListing(Name, raw)
}

// HealthCheck probes the first configured board.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	if len(p.boards) == 0 {
		return false
	}
	var board struct {
		Name string `json:"name"`
	}
	target := fmt.Sprintf("%s/v1/boards/%s", p.baseURL, url.PathEscape(p.boards[0]))
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, p.client, Name, target, nil, &board)
	})
	if err != nil {
		p.log.Debug("health check failed", logger.Error(err))
		return false
	}
	return true
}
