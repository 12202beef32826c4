// Package aggregator fans requests out to the registered providers.
//
// Two paths coexist. Bulk aggregation walks providers one after the other and
// writes into the store; at most one bulk run exists per process. Live search
// queries every provider concurrently through the cache and only returns a
// merged list. A failing provider never fails either path: its error lands in
// its own result and the others carry on.
package aggregator

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/store"
)

var (
	ErrAggregationRunning = errors.New("aggregation already running")
	ErrSweepRunning       = errors.New("aggregation sweep already running")
	ErrUnknownProvider    = errors.New("unknown provider")
)

const (
	DefaultStaleAfter    = 60 * 24 * time.Hour
	DefaultSweepPause    = 5 * time.Second
	DefaultSweepLimit    = 50
	DefaultHealthTimeout = 10 * time.Second
)

type Config struct {
	TTLs cache.TTLs

	SweepKeywords  []string
	SweepLocations []string
	SweepPause     time.Duration
	SweepLimit     int

	// Records without an expiry are deactivated once older than this.
	StaleAfter    time.Duration
	HealthTimeout time.Duration
}

func (c Config) withDefaults() Config {
	c.TTLs = c.TTLs.WithDefaults()
	if c.SweepPause < 0 {
		c.SweepPause = 0
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = DefaultSweepLimit
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.HealthTimeout <= 0 {
		c.HealthTimeout = DefaultHealthTimeout
	}
	return c
}

// ProviderInfo describes one registered provider.
type ProviderInfo struct {
	Name     string            `json:"name"`
	Disabled bool              `json:"disabled"`
	Circuit  *breaker.Snapshot `json:"circuit,omitempty"`
}

// Status is the state of the bulk paths.
type Status struct {
	Running     bool                       `json:"running"`
	Sweeping    bool                       `json:"sweeping"`
	LastSummary *domain.AggregationSummary `json:"last_summary,omitempty"`
}

type circuitReporter interface {
	CircuitState() breaker.Snapshot
}

type disabler interface {
	Disabled() bool
}

type Orchestrator struct {
	store store.Store
	cache cache.Cache
	log   logger.Logger
	cfg   Config
	now   func() time.Time

	mu        sync.RWMutex
	providers map[string]domain.Provider
	order     []string

	running  atomic.Bool
	sweeping atomic.Bool

	lastMu sync.RWMutex
	last   *domain.AggregationSummary
}

// New builds an orchestrator. c may be nil, in which case every lookup misses.
func New(st store.Store, c cache.Cache, log logger.Logger, cfg Config) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		store:     st,
		cache:     c,
		log:       log.Named("aggregator"),
		cfg:       cfg.withDefaults(),
		now:       time.Now,
		providers: make(map[string]domain.Provider),
	}
}

// RegisterProvider adds p under its declared name. A duplicate name replaces
// the previous adapter but keeps its position.
func (o *Orchestrator) RegisterProvider(p domain.Provider) {
	name := p.Name()

	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.providers[name]; !exists {
		o.order = append(o.order, name)
	} else {
		o.log.Warn("provider registered twice, replacing", logger.String("provider", name))
	}
	o.providers[name] = p
}

// Providers lists the registry in registration order.
func (o *Orchestrator) Providers() []ProviderInfo {
	list := o.registered()
	out := make([]ProviderInfo, 0, len(list))
	for _, p := range list {
		info := ProviderInfo{Name: p.Name()}
		if cr, ok := p.(circuitReporter); ok {
			snap := cr.CircuitState()
			info.Circuit = &snap
		}
		if d, ok := p.(disabler); ok {
			info.Disabled = d.Disabled()
		}
		out = append(out, info)
	}
	return out
}

func (o *Orchestrator) registered() []domain.Provider {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]domain.Provider, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.providers[name])
	}
	return out
}

func (o *Orchestrator) lookup(name string) (domain.Provider, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	p, ok := o.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	return p, nil
}

// Running reports whether a bulk aggregation is in progress.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// LastSummary returns the summary of the last completed bulk run, or nil.
func (o *Orchestrator) LastSummary() *domain.AggregationSummary {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	return o.last
}

func (o *Orchestrator) Status() Status {
	return Status{
		Running:     o.running.Load(),
		Sweeping:    o.sweeping.Load(),
		LastSummary: o.LastSummary(),
	}
}

func (o *Orchestrator) setLast(s *domain.AggregationSummary) {
	o.lastMu.Lock()
	o.last = s
	o.lastMu.Unlock()
}

// classify maps an adapter error onto an outcome tag.
func classify(err error) domain.Outcome {
	switch {
	case err == nil:
		return domain.OutcomeOK
	case errors.Is(err, breaker.ErrOpen):
		return domain.OutcomeCircuitOpen
	case errors.Is(err, domain.ErrProviderDisabled):
		return domain.OutcomeDisabled
	default:
		return domain.OutcomeFailed
	}
}

// panicError turns a recovered value into an error.
func panicError(provider string, r any) error {
	return fmt.Errorf("provider %s panicked: %v", provider, r)
}
