package aggregator

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/store"
)

// AggregateAll runs every provider in registration order and upserts what
// they return. It fails fast with ErrAggregationRunning if a run is already
// in progress. Provider failures are reported in the summary, never returned.
func (o *Orchestrator) AggregateAll(ctx context.Context, c domain.SearchCriteria) (*domain.AggregationSummary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAggregationRunning
	}
	defer o.running.Store(false)

	return o.runAll(ctx, c), nil
}

// StartAggregateAll takes the single-flight flag synchronously and runs the
// aggregation in the background. The run outlives ctx's cancellation.
func (o *Orchestrator) StartAggregateAll(ctx context.Context, c domain.SearchCriteria) error {
	if !o.running.CompareAndSwap(false, true) {
		return ErrAggregationRunning
	}

	bg := context.WithoutCancel(ctx)
	go func() {
		defer o.running.Store(false)
		defer func() {
			if r := recover(); r != nil {
				o.log.Error("background aggregation panicked", logger.Any("panic", r))
			}
		}()
		o.runAll(bg, c)
	}()
	return nil
}

func (o *Orchestrator) runAll(ctx context.Context, c domain.SearchCriteria) *domain.AggregationSummary {
	c = c.Normalize()
	summary := &domain.AggregationSummary{
		Criteria:  c,
		StartedAt: o.now().UTC(),
		Results:   []domain.AggregationResult{},
	}

	o.log.Info("aggregation started",
		logger.String("keywords", c.Keywords),
		logger.String("location", c.Location))

	for _, p := range o.registered() {
		res := o.AggregateFromProvider(ctx, p, c)
		summary.Add(res)
	}

	summary.FinishedAt = o.now().UTC()
	o.setLast(summary)

	o.log.Info("aggregation finished",
		logger.Int("providers", len(summary.Results)),
		logger.Int("found", summary.TotalFound),
		logger.Int("inserted", summary.TotalInserted),
		logger.Int("updated", summary.TotalUpdated),
		logger.Int("errors", summary.TotalErrors),
		logger.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)))

	return summary
}

// AggregateProvider aggregates a single registered provider.
func (o *Orchestrator) AggregateProvider(ctx context.Context, name string, c domain.SearchCriteria) (domain.AggregationResult, error) {
	p, err := o.lookup(name)
	if err != nil {
		return domain.AggregationResult{}, err
	}
	return o.AggregateFromProvider(ctx, p, c.Normalize()), nil
}

// AggregateFromProvider fetches from p and upserts every listing. A failing
// item is recorded and skipped; a failing or panicking fetch becomes the
// result's error.
func (o *Orchestrator) AggregateFromProvider(ctx context.Context, p domain.Provider, c domain.SearchCriteria) (res domain.AggregationResult) {
	name := p.Name()
	start := o.now()
	res = domain.AggregationResult{Provider: name, Errors: []string{}}

	defer func() {
		if r := recover(); r != nil {
			res.Outcome = domain.OutcomeFailed
			res.Errors = append(res.Errors, panicError(name, r).Error())
		}
		res.Duration = o.now().Sub(start)
		o.logResult(res)
	}()

	items, err := p.Fetch(ctx, c)
	if err != nil {
		res.Outcome = classify(err)
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	res.Found = len(items)
	if len(items) == 0 {
		res.Outcome = domain.OutcomeEmpty
		return res
	}

	for _, raw := range items {
		outcome, err := o.upsertOne(ctx, p, raw)
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			continue
		}
		switch outcome {
		case store.Inserted:
			res.Inserted++
		case store.Updated:
			res.Updated++
		}
	}
	res.Outcome = domain.OutcomeOK
	return res
}

func (o *Orchestrator) upsertOne(ctx context.Context, p domain.Provider, raw domain.RawListing) (outcome store.UpsertOutcome, err error) {
	name := p.Name()
	if raw.Source == "" {
		raw.Source = name
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: %w", raw.Key(), panicError(name, r))
		}
	}()

	if err := raw.Validate(); err != nil {
		return 0, err
	}

	rec := p.Normalize(raw)
	if rec.Source == "" {
		rec.Source = name
	}
	if rec.ExternalID == "" {
		rec.ExternalID = raw.ExternalID
	}

	outcome, err = o.store.Upsert(ctx, &rec)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", raw.Key(), err)
	}
	return outcome, nil
}

func (o *Orchestrator) logResult(res domain.AggregationResult) {
	fields := []logger.Field{
		logger.String("provider", res.Provider),
		logger.String("outcome", string(res.Outcome)),
		logger.Int("found", res.Found),
		logger.Int("inserted", res.Inserted),
		logger.Int("updated", res.Updated),
		logger.Int("errors", len(res.Errors)),
		logger.Duration("duration", res.Duration),
	}
	switch res.Outcome {
	case domain.OutcomeFailed:
		o.log.Warn("provider aggregation failed", append(fields, logger.Strings("error_list", res.Errors))...)
	case domain.OutcomeCircuitOpen, domain.OutcomeDisabled:
		o.log.Info("provider skipped", fields...)
	default:
		o.log.Info("provider aggregated", fields...)
	}
}
