// Package store defines the persistence boundary for normalized listings.
//
// Records are unique on (source, external_id). Upsert must be atomic per
// natural key: concurrent writers for the same key converge on one row.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
)

// UpsertOutcome reports whether Upsert created or overwrote a record.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota + 1
	Updated
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unknown"
	}
}

// GroupField is a column GroupByCount may aggregate on.
type GroupField string

const (
	GroupBySource     GroupField = "source"
	GroupByRemoteType GroupField = "remote_type"
)

var ErrInvalidGroupField = errors.New("invalid group field")

func (f GroupField) Valid() bool {
	return f == GroupBySource || f == GroupByRemoteType
}

// Filter narrows Count. Zero fields do not filter.
type Filter struct {
	Source      string
	ActiveOnly  bool
	PostedSince time.Time
}

// Predicate selects active records for BulkDeactivate.
//
// A record matches when its expiry is before ExpiresBefore, or when it has no
// expiry and COALESCE(posted_at, created_at) is before StaleBefore.
// A zero time disables that half of the predicate.
type Predicate struct {
	ExpiresBefore time.Time
	StaleBefore   time.Time
}

// Matches evaluates the predicate against a record in memory.
func (p Predicate) Matches(rec *domain.NormalizedRecord) bool {
	if !rec.IsActive {
		return false
	}
	if rec.ExpiresAt != nil {
		return !p.ExpiresBefore.IsZero() && rec.ExpiresAt.Before(p.ExpiresBefore)
	}
	if p.StaleBefore.IsZero() {
		return false
	}
	ref := rec.CreatedAt
	if rec.PostedAt != nil {
		ref = *rec.PostedAt
	}
	return ref.Before(p.StaleBefore)
}

// Matches evaluates the filter against a record in memory.
func (f Filter) Matches(rec *domain.NormalizedRecord) bool {
	if f.Source != "" && rec.Source != f.Source {
		return false
	}
	if f.ActiveOnly && !rec.IsActive {
		return false
	}
	if !f.PostedSince.IsZero() && (rec.PostedAt == nil || rec.PostedAt.Before(f.PostedSince)) {
		return false
	}
	return true
}

type Store interface {
	// FindByNaturalKey returns nil, nil when no record exists.
	FindByNaturalKey(ctx context.Context, source, externalID string) (*domain.NormalizedRecord, error)
	// Upsert inserts or overwrites the record keyed by its natural key and
	// fills in ID, CreatedAt and UpdatedAt from the stored row.
	Upsert(ctx context.Context, rec *domain.NormalizedRecord) (UpsertOutcome, error)
	Count(ctx context.Context, f Filter) (int64, error)
	GroupByCount(ctx context.Context, field GroupField) (map[string]int64, error)
	BulkDeactivate(ctx context.Context, p Predicate) (int64, error)
	Ping(ctx context.Context) error
	Close()
}
