package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RemoteType classifies where the work happens.
type RemoteType string

const (
	RemoteTypeRemote RemoteType = "remote"
	RemoteTypeHybrid RemoteType = "hybrid"
	RemoteTypeOnsite RemoteType = "onsite"
)

// ParseRemoteType maps free-form upstream values onto a RemoteType.
// Unknown values map to onsite.
func ParseRemoteType(s string) RemoteType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "fully remote", "remote-only", "anywhere", "wfh":
		return RemoteTypeRemote
	case "hybrid", "flexible", "partially remote":
		return RemoteTypeHybrid
	default:
		return RemoteTypeOnsite
	}
}

// ClassifyRemote guesses the remote type from location and description text.
func ClassifyRemote(location, text string) RemoteType {
	combined := strings.ToLower(location + " " + text)
	switch {
	case strings.Contains(combined, "hybrid"):
		return RemoteTypeHybrid
	case strings.Contains(combined, "remote"), strings.Contains(combined, "anywhere"),
		strings.Contains(combined, "work from home"):
		return RemoteTypeRemote
	default:
		return RemoteTypeOnsite
	}
}

// Salary is an optional compensation range.
type Salary struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Period   string   `json:"period,omitempty"` // year | month | hour ...
}

// NaturalKey identifies one listing across repeated ingestions.
type NaturalKey struct {
	Source     string
	ExternalID string
}

func (k NaturalKey) String() string { return k.Source + ":" + k.ExternalID }

// RawListing is what every adapter emits, before persistence.
//
// ExternalID is provider-scoped; together with Source it forms the natural key.
// A RawListing is never mutated once returned to the orchestrator.
type RawListing struct {
	Source          string         `json:"source"`
	ExternalID      string         `json:"external_id"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Location        string         `json:"location"`
	RemoteType      RemoteType     `json:"remote_type"`
	Description     string         `json:"description"`
	Salary          *Salary        `json:"salary,omitempty"`
	EmploymentType  string         `json:"employment_type,omitempty"`
	ExperienceLevel string         `json:"experience_level,omitempty"`
	Skills          []string       `json:"skills,omitempty"`
	Requirements    []string       `json:"requirements,omitempty"`
	Benefits        []string       `json:"benefits,omitempty"`
	PostedAt        *time.Time     `json:"posted_at,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	ApplicationURL  string         `json:"application_url,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Key returns the natural key of the listing.
func (r RawListing) Key() NaturalKey {
	return NaturalKey{Source: r.Source, ExternalID: r.ExternalID}
}

// Validate checks the natural-key invariant.
func (r RawListing) Validate() error {
	if strings.TrimSpace(r.ExternalID) == "" {
		return fmt.Errorf("listing %q from %s: empty external id", r.Title, r.Source)
	}
	return nil
}

// NormalizedRecord is the stored representation, unique on (Source, ExternalID).
type NormalizedRecord struct {
	ID              uuid.UUID      `json:"id"`
	Source          string         `json:"source"`
	ExternalID      string         `json:"external_id"`
	Title           string         `json:"title"`
	Company         string         `json:"company"`
	Location        string         `json:"location"`
	RemoteType      RemoteType     `json:"remote_type"`
	Description     string         `json:"description"`
	SalaryMin       *float64       `json:"salary_min,omitempty"`
	SalaryMax       *float64       `json:"salary_max,omitempty"`
	SalaryCurrency  string         `json:"salary_currency,omitempty"`
	SalaryPeriod    string         `json:"salary_period,omitempty"`
	EmploymentType  string         `json:"employment_type,omitempty"`
	ExperienceLevel string         `json:"experience_level,omitempty"`
	Skills          []string       `json:"skills,omitempty"`
	Requirements    []string       `json:"requirements,omitempty"`
	Benefits        []string       `json:"benefits,omitempty"`
	PostedAt        *time.Time     `json:"posted_at,omitempty"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	ApplicationURL  string         `json:"application_url,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	IsActive        bool           `json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (n NormalizedRecord) Key() NaturalKey {
	return NaturalKey{Source: n.Source, ExternalID: n.ExternalID}
}

// NormalizeListing is the default projection of a RawListing into a record.
// Adapters call it from their Normalize method and adjust what they need.
func NormalizeListing(source string, raw RawListing) NormalizedRecord {
	if raw.Source != "" {
		source = raw.Source
	}

	rec := NormalizedRecord{
		Source:          source,
		ExternalID:      strings.TrimSpace(raw.ExternalID),
		Title:           collapse(raw.Title),
		Company:         collapse(raw.Company),
		Location:        collapse(raw.Location),
		RemoteType:      raw.RemoteType,
		Description:     strings.TrimSpace(raw.Description),
		EmploymentType:  strings.ToLower(strings.TrimSpace(raw.EmploymentType)),
		ExperienceLevel: strings.ToLower(strings.TrimSpace(raw.ExperienceLevel)),
		Skills:          dedupLower(raw.Skills),
		Requirements:    trimAll(raw.Requirements),
		Benefits:        trimAll(raw.Benefits),
		PostedAt:        utcPtr(raw.PostedAt),
		ExpiresAt:       utcPtr(raw.ExpiresAt),
		ApplicationURL:  strings.TrimSpace(raw.ApplicationURL),
		Metadata:        raw.Metadata,
		IsActive:        true,
	}

	if rec.RemoteType == "" {
		rec.RemoteType = ClassifyRemote(raw.Location, raw.Title)
	}

	if raw.Salary != nil {
		rec.SalaryMin = raw.Salary.Min
		rec.SalaryMax = raw.Salary.Max
		rec.SalaryCurrency = strings.ToUpper(strings.TrimSpace(raw.Salary.Currency))
		rec.SalaryPeriod = strings.ToLower(strings.TrimSpace(raw.Salary.Period))
	}

	return rec
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupLower(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
