// Package adzuna adapts the Adzuna job search API.
//
// The adapter needs app_id and app_key options. Without them it stays
// disabled for the life of the process: Fetch fails with
// domain.ErrProviderDisabled and HealthCheck reports false.
package adzuna

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/sources"
)

const (
	Name = "adzuna"

	defaultBaseURL = "https://api.adzuna.com"
	defaultCountry = "gb"
)

var currencies = map[string]string{
	"gb": "GBP", "us": "USD", "ca": "CAD", "au": "AUD", "nz": "NZD",
	"in": "INR", "za": "ZAR", "br": "BRL", "pl": "PLN", "sg": "SGD",
	"ch": "CHF", "mx": "MXN",
}

type Provider struct {
	appID   string
	appKey  string
	country string
	baseURL string

	client *http.Client
	guard  *sources.Guard
	log    logger.Logger
}

var _ domain.Provider = (*Provider)(nil)

func New(s sources.ProviderSettings, deps sources.Deps) *Provider {
	s.Name = Name
	p := &Provider{
		appID:   s.Option("app_id", ""),
		appKey:  s.Option("app_key", ""),
		country: strings.ToLower(s.Option("country", defaultCountry)),
		baseURL: strings.TrimSuffix(s.BaseURL, "/"),
		client:  deps.Client(),
		guard:   deps.Guard(s),
		log:     deps.Log(Name),
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
	}
	if p.Disabled() {
		p.log.Warn("adzuna credentials missing, provider disabled")
	}
	return p
}

func (p *Provider) Name() string { return Name }

// Disabled reports whether credentials are missing.
func (p *Provider) Disabled() bool { return p.appID == "" || p.appKey == "" }

func (p *Provider) CircuitState() breaker.Snapshot { return p.guard.CircuitState() }

type searchResponse struct {
	Results []result `json:"results"`
	Count   int      `json:"count"`
}

type result struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Company      named    `json:"company"`
	Location     named    `json:"location"`
	Category     category `json:"category"`
	SalaryMin    *float64 `json:"salary_min"`
	SalaryMax    *float64 `json:"salary_max"`
	RedirectURL  string   `json:"redirect_url"`
	Created      string   `json:"created"`
	ContractTime string   `json:"contract_time"`
	ContractType string   `json:"contract_type"`
}

type named struct {
	DisplayName string `json:"display_name"`
}

type category struct {
	Label string `json:"label"`
	Tag   string `json:"tag"`
}

func (p *Provider) Fetch(ctx context.Context, c domain.SearchCriteria) ([]domain.RawListing, error) {
	if p.Disabled() {
		return nil, domain.ErrProviderDisabled
	}
	c = c.Normalize()

	var resp searchResponse
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, p.client, Name, p.searchURL(c, c.Limit), nil, &resp)
	})
	if err != nil {
		return nil, fmt.Errorf("adzuna search: %w", err)
	}

	out := make([]domain.RawListing, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, p.toRaw(r))
	}
	return out, nil
}

func (p *Provider) searchURL(c domain.SearchCriteria, perPage int) string {
	values := url.Values{}
	values.Set("app_id", p.appID)
	values.Set("app_key", p.appKey)
	values.Set("results_per_page", strconv.Itoa(perPage))
	values.Set("content-type", "application/json")
	values.Set("sort_by", "date")
	if c.Keywords != "" {
		values.Set("what", c.Keywords)
	}
	if c.Location != "" {
		values.Set("where", c.Location)
	}
	page := c.Page
	if page < 1 {
		page = 1
	}
	return fmt.Sprintf("%s/v1/api/jobs/%s/search/%d?%s", p.baseURL, p.country, page, values.Encode())
}

func (p *Provider) toRaw(r result) domain.RawListing {
	raw := domain.RawListing{
		Source:         Name,
		ExternalID:     r.ID,
		Title:          r.Title,
		Company:        r.Company.DisplayName,
		Location:       r.Location.DisplayName,
		Description:    r.Description,
		EmploymentType: r.ContractTime,
		ApplicationURL: r.RedirectURL,
		Metadata: map[string]any{
			"category":      r.Category.Label,
			"contract_type": r.ContractType,
		},
	}
	if r.SalaryMin != nil || r.SalaryMax != nil {
		raw.Salary = &domain.Salary{
			Min:      r.SalaryMin,
			Max:      r.SalaryMax,
			Currency: p.currency(),
			Period:   "year",
		}
	}
	if ts, err := time.Parse(time.RFC3339, r.Created); err == nil {
		raw.PostedAt = &ts
	}
	raw.RemoteType = domain.ClassifyRemote(r.Location.DisplayName, r.Title+" "+r.Description)
	return raw
}

func (p *Provider) currency() string {
	if c, ok := currencies[p.country]; ok {
		return c
	}
	return "EUR"
}

// FetchDetails is not offered by the Adzuna API.
func (p *Provider) FetchDetails(context.Context, string) (*domain.RawListing, error) {
	return nil, domain.ErrNotSupported
}

func (p *Provider) Normalize(raw domain.RawListing) domain.NormalizedRecord {
	return domain.NormalizeListing(Name, raw)
}

func (p *Provider) HealthCheck(ctx context.Context) bool {
	if p.Disabled() {
		return false
	}
	var resp searchResponse
	err := p.guard.Do(ctx, func(ctx context.Context) error {
		return sources.GetJSON(ctx, p.client, Name, p.searchURL(domain.SearchCriteria{Page: 1}, 1), nil, &resp)
	})
	if err != nil {
		p.log.Debug("health check failed", logger.Error(err))
		return false
	}
	return true
}
