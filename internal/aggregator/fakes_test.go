package aggregator

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/store"
	"github.com/MrSnakeDoc/jobhub/internal/store/memory"
)

type fakeProvider struct {
	name string

	items    []domain.RawListing
	err      error
	panicMsg string
	release  chan struct{} // Fetch blocks until closed when set
	started  chan struct{} // closed on first Fetch when set

	healthy     bool
	healthPanic bool

	details   map[string]*domain.RawListing
	detailErr error

	fetchCalls  atomic.Int32
	healthCalls atomic.Int32
	detailCalls atomic.Int32

	mu       sync.Mutex
	criteria []domain.SearchCriteria
	once     sync.Once
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Fetch(ctx context.Context, c domain.SearchCriteria) ([]domain.RawListing, error) {
	f.fetchCalls.Add(1)
	f.mu.Lock()
	f.criteria = append(f.criteria, c)
	f.mu.Unlock()

	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.RawListing, len(f.items))
	copy(out, f.items)
	return out, nil
}

func (f *fakeProvider) FetchDetails(_ context.Context, id string) (*domain.RawListing, error) {
	f.detailCalls.Add(1)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeProvider) Normalize(raw domain.RawListing) domain.NormalizedRecord {
	return domain.NormalizeListing(f.name, raw)
}

func (f *fakeProvider) HealthCheck(context.Context) bool {
	f.healthCalls.Add(1)
	if f.healthPanic {
		panic("health exploded")
	}
	return f.healthy
}

func (f *fakeProvider) lastCriteria() domain.SearchCriteria {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.criteria[len(f.criteria)-1]
}

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC)
	return &t
}

func listing(source, id string, posted *time.Time) domain.RawListing {
	return domain.RawListing{
		Source:     source,
		ExternalID: id,
		Title:      "Backend Engineer " + id,
		Company:    "Acme",
		PostedAt:   posted,
	}
}

// mapCache is an in-memory cache.Cache. When broken, every read misses and
// every write is dropped, like an unreachable backend.
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	broken bool
	gets   int
	sets   int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.broken {
		return nil, false
	}
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.broken {
		return
	}
	c.data[key] = value
}

func (c *mapCache) Invalidate(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return 0, errors.New("cache unreachable")
	}
	n := 0
	for k := range c.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(c.data, k)
			n++
		}
	}
	return n, nil
}

func (c *mapCache) Stats(context.Context) cache.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cache.Stats{Connected: !c.broken, KeyCount: int64(len(c.data))}
}

func (c *mapCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// flakyStore fails upserts for selected external ids.
type flakyStore struct {
	*memory.Store
	failIDs map[string]bool
}

func (s *flakyStore) Upsert(ctx context.Context, rec *domain.NormalizedRecord) (store.UpsertOutcome, error) {
	if s.failIDs[rec.ExternalID] {
		return 0, fmt.Errorf("constraint violation on %s", rec.ExternalID)
	}
	return s.Store.Upsert(ctx, rec)
}
