package aggregator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/store"
)

// RunAggregationSweep aggregates the configured keyword x location
// cross-product, pausing between pairs. Pairs that collide with another bulk
// run are skipped and logged. Safe to call repeatedly; overlapping sweeps get
// ErrSweepRunning.
func (o *Orchestrator) RunAggregationSweep(ctx context.Context) ([]*domain.AggregationSummary, error) {
	if !o.sweeping.CompareAndSwap(false, true) {
		return nil, ErrSweepRunning
	}
	defer o.sweeping.Store(false)

	keywords := o.cfg.SweepKeywords
	if len(keywords) == 0 {
		keywords = []string{""}
	}
	locations := o.cfg.SweepLocations
	if len(locations) == 0 {
		locations = []string{""}
	}

	o.log.Info("aggregation sweep started",
		logger.Int("pairs", len(keywords)*len(locations)))

	var summaries []*domain.AggregationSummary
	first := true
	for _, kw := range keywords {
		for _, loc := range locations {
			if !first {
				if err := o.pause(ctx); err != nil {
					return summaries, err
				}
			}
			first = false

			s, err := o.AggregateAll(ctx, domain.SearchCriteria{
				Keywords: kw,
				Location: loc,
				Limit:    o.cfg.SweepLimit,
			})
			if errors.Is(err, ErrAggregationRunning) {
				o.log.Warn("sweep pair skipped, aggregation already running",
					logger.String("keywords", kw), logger.String("location", loc))
				continue
			}
			if err != nil {
				return summaries, err
			}
			summaries = append(summaries, s)
		}
	}

	o.log.Info("aggregation sweep finished", logger.Int("runs", len(summaries)))
	return summaries, nil
}

func (o *Orchestrator) pause(ctx context.Context) error {
	if o.cfg.SweepPause <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(o.cfg.SweepPause)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunExpirySweep deactivates records whose expiry has passed and records
// without expiry older than the staleness threshold. Idempotent.
func (o *Orchestrator) RunExpirySweep(ctx context.Context) (int64, error) {
	now := o.now().UTC()
	n, err := o.store.BulkDeactivate(ctx, store.Predicate{
		ExpiresBefore: now,
		StaleBefore:   now.Add(-o.cfg.StaleAfter),
	})
	if err != nil {
		o.log.Error("expiry sweep failed", logger.Error(err))
		return 0, fmt.Errorf("expiry sweep: %w", err)
	}
	o.log.Info("expiry sweep finished", logger.Int64("deactivated", n))
	return n, nil
}

// Statistics aggregates counts from the store.
func (o *Orchestrator) Statistics(ctx context.Context) (domain.Statistics, error) {
	now := o.now().UTC()
	st := domain.Statistics{GeneratedAt: now}

	var err error
	if st.Total, err = o.store.Count(ctx, store.Filter{}); err != nil {
		return st, fmt.Errorf("count total: %w", err)
	}
	if st.Active, err = o.store.Count(ctx, store.Filter{ActiveOnly: true}); err != nil {
		return st, fmt.Errorf("count active: %w", err)
	}
	if st.BySource, err = o.store.GroupByCount(ctx, store.GroupBySource); err != nil {
		return st, fmt.Errorf("group by source: %w", err)
	}
	if st.ByRemoteType, err = o.store.GroupByCount(ctx, store.GroupByRemoteType); err != nil {
		return st, fmt.Errorf("group by remote type: %w", err)
	}
	if st.Last24h, err = o.store.Count(ctx, store.Filter{PostedSince: now.Add(-24 * time.Hour)}); err != nil {
		return st, fmt.Errorf("count last 24h: %w", err)
	}
	if st.Last7d, err = o.store.Count(ctx, store.Filter{PostedSince: now.Add(-7 * 24 * time.Hour)}); err != nil {
		return st, fmt.Errorf("count last 7d: %w", err)
	}
	return st, nil
}

// ClearCache drops one provider's entries, or every entry when provider is empty.
func (o *Orchestrator) ClearCache(ctx context.Context, provider string) (int, error) {
	if o.cache == nil {
		return 0, nil
	}

	patterns := []string{cache.AllPattern}
	if provider != "" {
		if _, err := o.lookup(provider); err != nil {
			return 0, err
		}
		patterns = cache.ProviderPatterns(provider)
	}

	total := 0
	for _, pattern := range patterns {
		n, err := o.cache.Invalidate(ctx, pattern)
		total += n
		if err != nil {
			return total, fmt.Errorf("invalidate %s: %w", pattern, err)
		}
	}
	o.log.Info("cache cleared", logger.String("provider", provider), logger.Int("keys", total))
	return total, nil
}

// CacheStats reports the cache backend; a disabled cache is not connected.
func (o *Orchestrator) CacheStats(ctx context.Context) cache.Stats {
	if o.cache == nil {
		return cache.Stats{}
	}
	return o.cache.Stats(ctx)
}
