// Package scheduler runs the periodic sweeps on cron schedules and accepts
// manual triggers for them.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

// Off disables a schedule.
const Off = "off"

type Job string

const (
	JobAggregation Job = "aggregation"
	JobExpiry      Job = "expiry"
)

// ParseJob accepts a job name as used in routes and on the command line.
func ParseJob(s string) (Job, bool) {
	switch Job(strings.ToLower(strings.TrimSpace(s))) {
	case JobAggregation:
		return JobAggregation, true
	case JobExpiry:
		return JobExpiry, true
	}
	return "", false
}

// Runner is what the scheduler drives. *aggregator.Orchestrator satisfies it.
type Runner interface {
	RunAggregationSweep(ctx context.Context) ([]*domain.AggregationSummary, error)
	RunExpirySweep(ctx context.Context) (int64, error)
}

type Config struct {
	// Cron specs (standard 5 fields or descriptors such as "@every 6h").
	// Empty or "off" disables the schedule; manual triggers still work.
	AggregationSpec string
	ExpirySpec      string

	// RunOnStart queues one aggregation sweep as soon as Start returns.
	RunOnStart bool
}

type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	log    logger.Logger
	cfg    Config

	entries  map[Job]cron.EntryID
	triggers map[Job]chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(runner Runner, log logger.Logger, cfg Config) *Scheduler {
	log = log.Named("scheduler")
	cl := logger.CronLogger{L: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
			cron.WithLogger(cl),
		),
		runner:  runner,
		log:     log,
		cfg:     cfg,
		entries: make(map[Job]cron.EntryID),
		triggers: map[Job]chan struct{}{
			JobAggregation: make(chan struct{}, 1),
			JobExpiry:      make(chan struct{}, 1),
		},
		stopCh: make(chan struct{}),
	}
}

// Start registers the enabled schedules and begins serving triggers.
// Jobs run with ctx; cancelling it aborts in-flight sweeps.
func (s *Scheduler) Start(ctx context.Context) error {
	specs := map[Job]string{
		JobAggregation: s.cfg.AggregationSpec,
		JobExpiry:      s.cfg.ExpirySpec,
	}
	for _, job := range []Job{JobAggregation, JobExpiry} {
		spec := strings.TrimSpace(specs[job])
		if spec == "" || strings.EqualFold(spec, Off) {
			s.log.Info("schedule disabled", logger.String("job", string(job)))
			continue
		}
		id, err := s.cron.AddFunc(spec, func() { s.run(ctx, job) })
		if err != nil {
			return fmt.Errorf("schedule %s %q: %w", job, spec, err)
		}
		s.entries[job] = id
		s.log.Info("schedule registered",
			logger.String("job", string(job)),
			logger.String("spec", spec))
	}

	for job, ch := range s.triggers {
		s.wg.Add(1)
		go s.listen(ctx, job, ch)
	}

	s.cron.Start()

	if s.cfg.RunOnStart {
		s.Trigger(JobAggregation)
	}
	return nil
}

func (s *Scheduler) listen(ctx context.Context, job Job, ch <-chan struct{}) {
	defer s.wg.Done()
	for {
		select {
		case <-ch:
			s.log.Info("manual sweep triggered", logger.String("job", string(job)))
			s.safeRun(ctx, job)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Trigger queues a run of job. It returns false for an unknown job or when a
// run of the same job is already queued.
func (s *Scheduler) Trigger(job Job) bool {
	ch, ok := s.triggers[job]
	if !ok {
		return false
	}
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Stop halts the schedules and the trigger listeners. The returned context is
// done once every running job has returned.
func (s *Scheduler) Stop() context.Context {
	s.stopOnce.Do(func() { close(s.stopCh) })
	cronDone := s.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		cancel()
	}()
	return ctx
}

// Next reports the next scheduled run of each registered job.
func (s *Scheduler) Next() map[Job]time.Time {
	out := make(map[Job]time.Time, len(s.entries))
	for job, id := range s.entries {
		out[job] = s.cron.Entry(id).Next
	}
	return out
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("sweep panicked", logger.String("job", string(job)), logger.Any("panic", r))
		}
	}()
	s.run(ctx, job)
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	start := time.Now()
	switch job {
	case JobAggregation:
		summaries, err := s.runner.RunAggregationSweep(ctx)
		switch {
		case errors.Is(err, aggregator.ErrSweepRunning):
			s.log.Info("aggregation sweep skipped, already running")
		case err != nil:
			s.log.Error("aggregation sweep failed", logger.Error(err))
		default:
			inserted, updated := 0, 0
			for _, sum := range summaries {
				inserted += sum.TotalInserted
				updated += sum.TotalUpdated
			}
			s.log.Info("aggregation sweep done",
				logger.Int("runs", len(summaries)),
				logger.Int("inserted", inserted),
				logger.Int("updated", updated),
				logger.Duration("duration", time.Since(start)))
		}
	case JobExpiry:
		n, err := s.runner.RunExpirySweep(ctx)
		if err != nil {
			s.log.Error("expiry sweep failed", logger.Error(err))
			return
		}
		s.log.Info("expiry sweep done",
			logger.Int64("deactivated", n),
			logger.Duration("duration", time.Since(start)))
	}
}
