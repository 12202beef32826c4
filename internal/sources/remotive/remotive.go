// Package remotive adapts the Remotive remote-jobs feed.
//
// The search endpoint is tried first. When it fails the adapter falls back to
// the unfiltered feed and filters locally, so a flaky search backend still
// yields results.
package remotive

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
	Name = "remotive"

	defaultBaseURL = "https://remotive.com"
	feedLimit      = 200
	dateLayout     = "2006-01-02T15:04:05"
)

var tagRe = regexp.MustCompile(`<[^>]*>`)

type Provider struct {
	baseURL string

	client *http.Client
	guard  *sources.Guard
	log    logger.Logger
}

var _ domain.Provider = (*Provider)(nil)

func New(s sources.ProviderSettings, deps sources.Deps) *Provider {
	s.Name = Name
	p := &Provider{
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

func (p *Provider) Name() string { return Name }

func (p *Provider) CircuitState() breaker.Snapshot { return p.guard.CircuitState() }

type feed struct {
	JobCount int   `json:"job-count"`
	Jobs     []job `json:"jobs"`
}

type job struct {
	ID                        int64    `json:"id"`
	URL                       string   `json:"url"`
	Title                     string   `json:"title"`
	CompanyName               string   `json:"company_name"`
	Category                  string   `json:"category"`
	Tags                      []string `json:"tags"`
	JobType                   string   `json:"job_type"`
	PublicationDate           string   `json:"publication_date"`
	CandidateRequiredLocation string   `json:"candidate_required_location"`
	Salary                    string   `json:"salary"`
	Description               string   `json:"description"`
}

func (p *Provider) Fetch(ctx context.Context, c domain.SearchCriteria) ([]domain.RawListing, error) {
	c = c.Normalize()

	jobs, err := p.search(ctx, c)
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) || ctx.Err() != nil {
			return nil, fmt.Errorf("remotive search: %w", err)
		}
		p.log.Warn("search endpoint failed, falling back to full feed", logger.Error(err))

		jobs, err = p.feed(ctx)
		if err != nil {
			return nil, fmt.Errorf("remotive feed fallback: %w", err)
		}
	}

	matched := make([]domain.RawListing, 0, len(jobs))
	for _, j := range jobs {
		raw := toRaw(j)
		if c.Matches(raw.Title+" "+raw.Company+" "+strings.Join(raw.Skills, " ")+" "+raw.Description) {
			matched = append(matched, raw)
		}
	}
	return sources.Page(matched, c), nil
}

func (p *Provider) search(ctx context.Context, c domain.SearchCriteria) ([]job, error) {
	values := url.Values{}
	if c.Keywords != "" {
		values.Set("search", c.Keywords)
	}
	values.Set("limit", strconv.Itoa(c.Page*c.Limit))
	return p.get(ctx, p.baseURL+"/api/remote-jobs?"+values.Encode())
}

func (p *Provider) feed(ctx context.Context) ([]job, error) {
	return p.get(ctx, p.baseURL+"/api/remote-jobs?limit="+strconv.Itoa(feedLimit))
}

func (p *Provider) get(ctx context.Context, u string) ([]job, error) {
	var resp feed
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, p.client, Name, u, nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

func toRaw(j job) domain.RawListing {
	raw := domain.RawListing{
		Source:         Name,
		ExternalID:     strconv.FormatInt(j.ID, 10),
		Title:          j.Title,
		Company:        j.CompanyName,
		Location:       j.CandidateRequiredLocation,
		RemoteType:     domain.RemoteTypeRemote,
		Description:    strings.TrimSpace(tagRe.ReplaceAllString(html.UnescapeString(j.Description), " ")),
		EmploymentType: j.JobType,
		Skills:         j.Tags,
		ApplicationURL: j.URL,
		Metadata:       map[string]any{"category": j.Category},
	}
	if j.Salary != "" {
		raw.Metadata["salary_text"] = j.Salary
	}
	if ts, err := time.Parse(dateLayout, j.PublicationDate); err == nil {
		raw.PostedAt = &ts
	} else if ts, err := time.Parse(time.RFC3339, j.PublicationDate); err == nil {
		raw.PostedAt = &ts
	}
	return raw
}

// FetchDetails is not offered by the Remotive API.
func (p *Provider) FetchDetails(context.Context, string) (*domain.RawListing, error) {
	return nil, domain.ErrNotSupported
}

func (p *Provider) Normalize(raw domain.RawListing) domain.NormalizedRecord {
	rec := domain.NormalizeListing(Name, raw)
	rec.RemoteType = domain.RemoteTypeRemote
	return rec
}

func (p *Provider) HealthCheck(ctx context.Context) bool {
	if _, err := p.get(ctx, p.baseURL+"/api/remote-jobs?limit=1"); err != nil {
		p.log.Debug("health check failed", logger.Error(err))
		return false
	}
	return true
}
