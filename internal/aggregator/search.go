package aggregator

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

// SearchAllProviders queries every provider concurrently for an equal share
// of the limit, merges, dedups by natural key and orders by posting date,
// newest first. It never fails: a provider that errors contributes nothing.
func (o *Orchestrator) SearchAllProviders(ctx context.Context, c domain.SearchCriteria) domain.SearchResult {
	start := o.now()
	c = c.Normalize()
	providers := o.registered()

	result := domain.SearchResult{
		Jobs:      []domain.RawListing{},
		Providers: make(map[string]domain.ProviderSearchStats, len(providers)),
	}
	if len(providers) == 0 {
		return result
	}

	share := (c.Limit + len(providers) - 1) / len(providers)

	type branch struct {
		items []domain.RawListing
		stats domain.ProviderSearchStats
	}
	branches := make([]branch, len(providers))

	var g errgroup.Group
	for i, p := range providers {
		g.Go(func() error {
			items, stats := o.searchOne(ctx, p, c, share)
			branches[i] = branch{items: items, stats: stats}
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.RawListing
	for i, p := range providers {
		result.Providers[p.Name()] = branches[i].stats
		all = append(all, branches[i].items...)
	}

	result.Jobs = mergeListings(all, c.Limit)
	result.Duration = o.now().Sub(start)

	o.log.Debug("search finished",
		logger.String("keywords", c.Keywords),
		logger.String("location", c.Location),
		logger.Int("providers", len(providers)),
		logger.Int("results", len(result.Jobs)),
		logger.Duration("duration", result.Duration))

	return result
}

func (o *Orchestrator) searchOne(ctx context.Context, p domain.Provider, c domain.SearchCriteria, share int) (items []domain.RawListing, stats domain.ProviderSearchStats) {
	name := p.Name()
	key := cache.SearchKey(name, c.Keywords, c.Location, 1)

	defer func() {
		if r := recover(); r != nil {
			items = nil
			stats = domain.ProviderSearchStats{Outcome: domain.OutcomeFailed, Error: panicError(name, r).Error()}
			o.log.Error("provider search panicked", logger.String("provider", name), logger.Any("panic", r))
		}
	}()

	if !c.BypassCache {
		var cached []domain.RawListing
		if cache.GetJSON(ctx, o.cache, key, &cached) {
			cached = withSource(truncate(cached, share), name)
			return cached, domain.ProviderSearchStats{Outcome: domain.OutcomeCached, Count: len(cached), Cached: true}
		}
	}

	fetched, err := p.Fetch(ctx, domain.SearchCriteria{
		Keywords: c.Keywords,
		Location: c.Location,
		Limit:    share,
		Page:     1,
	})
	if err != nil {
		o.log.Warn("provider search failed",
			logger.String("provider", name),
			logger.String("outcome", string(classify(err))),
			logger.Error(err))
		return nil, domain.ProviderSearchStats{Outcome: classify(err), Error: err.Error()}
	}

	fetched = withSource(truncate(fetched, share), name)
	if len(fetched) == 0 {
		return nil, domain.ProviderSearchStats{Outcome: domain.OutcomeEmpty}
	}

	cache.SetJSON(ctx, o.cache, key, fetched, o.cfg.TTLs.Search)
	return fetched, domain.ProviderSearchStats{Outcome: domain.OutcomeOK, Count: len(fetched)}
}

// mergeListings dedups by natural key (first occurrence wins), orders by
// PostedAt descending with undated items last, and truncates to limit.
// Ties break on source then external id, so the order never depends on
// which provider answered first.
func mergeListings(items []domain.RawListing, limit int) []domain.RawListing {
	seen := make(map[domain.NaturalKey]struct{}, len(items))
	out := make([]domain.RawListing, 0, len(items))
	for _, it := range items {
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.PostedAt == nil && b.PostedAt != nil:
			return false
		case a.PostedAt != nil && b.PostedAt == nil:
			return true
		case a.PostedAt != nil && b.PostedAt != nil && !a.PostedAt.Equal(*b.PostedAt):
			return a.PostedAt.After(*b.PostedAt)
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.ExternalID < b.ExternalID
	})

	return truncate(out, limit)
}

func truncate(items []domain.RawListing, n int) []domain.RawListing {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

// withSource returns items with an empty Source set to provider. The input
// slice is not modified.
func withSource(items []domain.RawListing, provider string) []domain.RawListing {
	var out []domain.RawListing
	for i := range items {
		if items[i].Source != "" {
			continue
		}
		if out == nil {
			out = make([]domain.RawListing, len(items))
			copy(out, items)
		}
		out[i].Source = provider
	}
	if out == nil {
		return items
	}
	return out
}

// JobDetails returns one listing, from the detail cache when possible.
func (o *Orchestrator) JobDetails(ctx context.Context, provider, externalID string) (raw *domain.RawListing, err error) {
	p, err := o.lookup(provider)
	if err != nil {
		return nil, err
	}

	key := cache.DetailKey(provider, externalID)
	var cached domain.RawListing
	if cache.GetJSON(ctx, o.cache, key, &cached) {
		return &cached, nil
	}

	defer func() {
		if r := recover(); r != nil {
			raw, err = nil, panicError(provider, r)
		}
	}()

	raw, err = p.FetchDetails(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, domain.ErrNotFound
	}
	if raw.Source == "" {
		cp := *raw
		cp.Source = provider
		raw = &cp
	}

	cache.SetJSON(ctx, o.cache, key, raw, o.cfg.TTLs.Detail)
	return raw, nil
}

// CheckProvidersHealth returns a health flag per provider, cached for the
// health TTL. A panicking health check counts as unhealthy.
func (o *Orchestrator) CheckProvidersHealth(ctx context.Context) map[string]bool {
	providers := o.registered()
	out := make(map[string]bool, len(providers))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, p := range providers {
		g.Go(func() error {
			ok := o.healthOne(ctx, p)
			mu.Lock()
			out[p.Name()] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) healthOne(ctx context.Context, p domain.Provider) (healthy bool) {
	name := p.Name()
	key := cache.HealthKey(name)

	var cached bool
	if cache.GetJSON(ctx, o.cache, key, &cached) {
		return cached
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("health check panicked", logger.String("provider", name), logger.Any("panic", r))
				healthy = false
			}
		}()
		hctx, cancel := context.WithTimeout(ctx, o.cfg.HealthTimeout)
		defer cancel()
		healthy = p.HealthCheck(hctx)
	}()

	cache.SetJSON(ctx, o.cache, key, healthy, o.cfg.TTLs.Health)
	return healthy
}
