// Package sources holds what every provider adapter shares: the resilience
// guard around outbound calls, the JSON HTTP helper and the providers file.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/ratelimit"
)

const DefaultTimeout = 15 * time.Second

// Guard gates one provider's outbound calls: circuit breaker first, then the
// rate window, then the call itself under a fixed timeout. An open circuit
// rejects at once and never takes a rate slot.
// Each adapter owns exactly one Guard.
type Guard struct {
	name    string
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	timeout time.Duration
}

func NewGuard(name string, limiter *ratelimit.Limiter, b *breaker.Breaker, timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if limiter == nil {
		limiter = ratelimit.New(ratelimit.Limit{MaxRequests: 60})
	}
	if b == nil {
		b = breaker.New(name, breaker.Settings{})
	}
	return &Guard{name: name, limiter: limiter, breaker: b, timeout: timeout}
}

// Do runs fn once the provider may be called.
//
// ErrNotFound is a healthy answer from the upstream and closes the books as a
// success. A timeout is a failure. If the caller's own context ends first,
// the outcome is unknown and nothing is recorded.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.breaker.Admit(); err != nil {
		return err
	}
	if err := g.limiter.Acquire(ctx, g.name); err != nil {
		g.breaker.Release()
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(callCtx)
	switch {
	case err == nil, errors.Is(err, domain.ErrNotFound):
		g.breaker.RecordSuccess()
	case ctx.Err() != nil:
		g.breaker.Release()
	default:
		g.breaker.RecordFailure(err)
	}
	return err
}

func (g *Guard) Name() string { return g.name }

func (g *Guard) Timeout() time.Duration { return g.timeout }

// CircuitState exposes the breaker for status endpoints.
func (g *Guard) CircuitState() breaker.Snapshot { return g.breaker.Snapshot() }
