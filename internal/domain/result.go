package domain

import "time"

// Outcome tags how a single provider call ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeEmpty       Outcome = "empty"
	OutcomeCached      Outcome = "cached"
	OutcomeFailed      Outcome = "failed"
	OutcomeCircuitOpen Outcome = "circuit_open"
	OutcomeDisabled    Outcome = "disabled"
)

// AggregationResult is the per-provider part of a bulk run.
type AggregationResult struct {
	Provider string        `json:"provider"`
	Outcome  Outcome       `json:"outcome"`
	Found    int           `json:"found"`
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Errors   []string      `json:"errors"`
	Duration time.Duration `json:"duration"`
}

// AggregationSummary is the whole-run artifact returned by AggregateAll.
type AggregationSummary struct {
	Criteria      SearchCriteria      `json:"criteria"`
	StartedAt     time.Time           `json:"started_at"`
	FinishedAt    time.Time           `json:"finished_at"`
	Results       []AggregationResult `json:"results"`
	TotalFound    int                 `json:"total_found"`
	TotalInserted int                 `json:"total_inserted"`
	TotalUpdated  int                 `json:"total_updated"`
	TotalErrors   int                 `json:"total_errors"`
}

// Add folds one provider result into the totals.
func (s *AggregationSummary) Add(r AggregationResult) {
	s.Results = append(s.Results, r)
	s.TotalFound += r.Found
	s.TotalInserted += r.Inserted
	s.TotalUpdated += r.Updated
	s.TotalErrors += len(r.Errors)
}

// ProviderSearchStats describes one provider's contribution to a live search.
type ProviderSearchStats struct {
	Outcome Outcome `json:"outcome"`
	Count   int     `json:"count"`
	Cached  bool    `json:"cached"`
	Error   string  `json:"error,omitempty"`
}

// SearchResult is the merged, ranked output of a live search.
type SearchResult struct {
	Jobs      []RawListing                   `json:"jobs"`
	Providers map[string]ProviderSearchStats `json:"providers"`
	Duration  time.Duration                  `json:"duration"`
}

// Statistics is a read-only snapshot over the store.
type Statistics struct {
	Total        int64            `json:"total"`
	Active       int64            `json:"active"`
	BySource     map[string]int64 `json:"by_source"`
	ByRemoteType map[string]int64 `json:"by_remote_type"`
	Last24h      int64            `json:"last_24h"`
	Last7d       int64            `json:"last_7d"`
	GeneratedAt  time.Time        `json:"generated_at"`
}
