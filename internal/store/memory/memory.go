// Package memory is an in-process Store used in dev mode and by tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/store"
)

// Store keeps records in a map keyed by natural key.
// Every write holds the single write lock for the whole find-then-write.
type Store struct {
	mu      sync.RWMutex
	records map[domain.NaturalKey]*domain.NormalizedRecord
	now     func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		records: make(map[domain.NaturalKey]*domain.NormalizedRecord),
		now:     time.Now,
	}
}

func (s *Store) FindByNaturalKey(_ context.Context, source, externalID string) (*domain.NormalizedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[domain.NaturalKey{Source: source, ExternalID: externalID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) Upsert(ctx context.Context, rec *domain.NormalizedRecord) (store.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if rec.Source == "" || rec.ExternalID == "" {
		return 0, fmt.Errorf("upsert: incomplete natural key %q", rec.Key())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	key := rec.Key()

	existing, ok := s.records[key]
	if ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.UpdatedAt = now
		rec.IsActive = true
		cp := *rec
		s.records[key] = &cp
		return store.Updated, nil
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.IsActive = true
	cp := *rec
	s.records[key] = &cp
	return store.Inserted, nil
}

func (s *Store) Count(_ context.Context, f store.Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, rec := range s.records {
		if f.Matches(rec) {
			n++
		}
	}
	return n, nil
}

func (s *Store) GroupByCount(_ context.Context, field store.GroupField) (map[string]int64, error) {
	if !field.Valid() {
		return nil, fmt.Errorf("%w: %q", store.ErrInvalidGroupField, field)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64)
	for _, rec := range s.records {
		switch field {
		case store.GroupBySource:
			out[rec.Source]++
		case store.GroupByRemoteType:
			out[string(rec.RemoteType)]++
		}
	}
	return out, nil
}

func (s *Store) BulkDeactivate(_ context.Context, p store.Predicate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	var n int64
	for _, rec := range s.records {
		if p.Matches(rec) {
			rec.IsActive = false
			rec.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
