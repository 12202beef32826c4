// Package breaker implements a per-provider circuit breaker.
//
//	CLOSED    -- failures >= threshold -->  OPEN
//	OPEN      -- reset timeout elapsed -->  HALF_OPEN (on next admission)
//	HALF_OPEN -- any failure           -->  OPEN
//	HALF_OPEN -- any success           -->  CLOSED
//
// Every admitted request must be followed by exactly one RecordSuccess or
// RecordFailure. A Breaker is never shared between providers.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/domain"
)

// ErrOpen is returned by Admit while the circuit rejects requests.
var ErrOpen = errors.New("circuit open: service unavailable")

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

const (
	DefaultFailureThreshold    = 5
	DefaultResetTimeout        = 60 * time.Second
	DefaultHalfOpenMaxRequests = 3
)

// Settings configures a Breaker. Zero values take the defaults.
type Settings struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int

	Clock         func() time.Time
	OnStateChange func(name string, from, to State)
}

// Snapshot is a copy of the breaker's state.
type Snapshot struct {
	State            State     `json:"state"`
	Failures         int       `json:"failures"`
	LastFailure      time.Time `json:"last_failure,omitzero"`
	HalfOpenRequests int       `json:"half_open_requests"`
}

type Breaker struct {
	name     string
	settings Settings

	mu               sync.Mutex
	state            State
	failures         int
	lastFailure      time.Time
	halfOpenSince    time.Time
	halfOpenRequests int
}

func New(name string, s Settings) *Breaker {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = DefaultFailureThreshold
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = DefaultResetTimeout
	}
	if s.HalfOpenMaxRequests <= 0 {
		s.HalfOpenMaxRequests = DefaultHalfOpenMaxRequests
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	return &Breaker{name: name, settings: s, state: StateClosed}
}

func (b *Breaker) Name() string { return b.name }

// Admit returns nil when the request may proceed, ErrOpen otherwise.
func (b *Breaker) Admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.settings.Clock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if now.Sub(b.lastFailure) < b.settings.ResetTimeout {
			return ErrOpen
		}
		b.enterHalfOpenLocked(now)
	}

	// HALF_OPEN
	if b.halfOpenRequests >= b.settings.HalfOpenMaxRequests {
		// Trial budget used up with no verdict: wait another cooldown.
		if now.Sub(b.halfOpenSince) < b.settings.ResetTimeout {
			return ErrOpen
		}
		b.halfOpenSince = now
		b.halfOpenRequests = 0
	}
	b.halfOpenRequests++
	return nil
}

// RecordSuccess closes a half-open circuit and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.halfOpenRequests = 0
		b.transitionLocked(StateClosed)
	}
}

// RecordFailure counts a failed call. ErrNotSupported and ErrNotFound are
// not upstream failures and leave the state untouched.
func (b *Breaker) RecordFailure(err error) {
	if errors.Is(err, domain.ErrNotSupported) || errors.Is(err, domain.ErrNotFound) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.lastFailure = b.settings.Clock()

	switch b.state {
	case StateHalfOpen:
		b.transitionLocked(StateOpen)
	case StateClosed:
		if b.failures >= b.settings.FailureThreshold {
			b.transitionLocked(StateOpen)
		}
	}
}

// Release hands back an admission that ended without a verdict, so a
// half-open trial slot is not spent on a call that never reached upstream.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen && b.halfOpenRequests > 0 {
		b.halfOpenRequests--
	}
}

// Execute runs fn under the breaker and records its outcome.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.Admit(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil {
		b.RecordFailure(err)
		return err
	}
	b.RecordSuccess()
	return nil
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		State:            b.state,
		Failures:         b.failures,
		LastFailure:      b.lastFailure,
		HalfOpenRequests: b.halfOpenRequests,
	}
}

func (b *Breaker) enterHalfOpenLocked(now time.Time) {
	b.halfOpenSince = now
	b.halfOpenRequests = 0
	b.transitionLocked(StateHalfOpen)
}

func (b *Breaker) transitionLocked(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, from, to)
	}
}
