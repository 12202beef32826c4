package domain

import "strings"

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
)

// SearchCriteria is the plain filter passed to every provider.
type SearchCriteria struct {
	Keywords    string `json:"keywords"`
	Location    string `json:"location"`
	Limit       int    `json:"limit"`
	Page        int    `json:"page"`
	BypassCache bool   `json:"bypass_cache,omitempty"`
}

// Normalize trims the text fields and applies limit/page defaults.
func (c SearchCriteria) Normalize() SearchCriteria {
	c.Keywords = strings.Join(strings.Fields(c.Keywords), " ")
	c.Location = strings.Join(strings.Fields(c.Location), " ")
	if c.Limit <= 0 {
		c.Limit = DefaultSearchLimit
	}
	if c.Limit > MaxSearchLimit {
		c.Limit = MaxSearchLimit
	}
	if c.Page <= 0 {
		c.Page = 1
	}
	return c
}

// Matches reports whether text contains every keyword (case-insensitive).
// Adapters whose upstream has no server-side search filter locally with it.
func (c SearchCriteria) Matches(text string) bool {
	if c.Keywords == "" {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range strings.Fields(strings.ToLower(c.Keywords)) {
		if !strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// MatchesLocation reports whether a listing location satisfies the criteria.
// Remote listings satisfy any location filter.
func (c SearchCriteria) MatchesLocation(location string, remote RemoteType) bool {
	if c.Location == "" || remote == RemoteTypeRemote {
		return true
	}
	return strings.Contains(strings.ToLower(location), strings.ToLower(c.Location))
}
