// Package ratelimit throttles outbound calls per provider with a sliding window.
//
// Acquire blocks the calling goroutine until the provider's window has room;
// it never rejects for lack of capacity. There is no fairness beyond the order
// in which old timestamps leave the window, so a caller can starve under
// sustained overload.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is used when a Limit has no window.
const DefaultWindow = 60 * time.Second

// Limit is the maximum number of requests allowed in a trailing window.
type Limit struct {
	MaxRequests int
	Window      time.Duration
}

func (l Limit) withDefaults() Limit {
	if l.MaxRequests < 1 {
		l.MaxRequests = 1
	}
	if l.Window <= 0 {
		l.Window = DefaultWindow
	}
	return l
}

type window struct {
	mu     sync.Mutex
	limit  Limit
	stamps []time.Time // ascending
}

// Limiter holds one window per provider.
type Limiter struct {
	mu           sync.Mutex
	defaultLimit Limit
	windows      map[string]*window
	now          func() time.Time
}

// New creates a limiter; providers that are never configured use def.
func New(def Limit) *Limiter {
	return &Limiter{
		defaultLimit: def.withDefaults(),
		windows:      make(map[string]*window, 16),
		now:          time.Now,
	}
}

// Configure sets the limit of one provider. Existing timestamps are kept.
func (l *Limiter) Configure(provider string, limit Limit) {
	w := l.getWindow(provider)
	w.mu.Lock()
	w.limit = limit.withDefaults()
	w.mu.Unlock()
}

func (l *Limiter) getWindow(provider string) *window {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.windows[provider]
	if w == nil {
		w = &window{limit: l.defaultLimit}
		l.windows[provider] = w
	}
	return w
}

// Acquire waits until a request slot is free for provider, then records it.
// The only error is ctx.Err() when the caller gives up while waiting.
func (l *Limiter) Acquire(ctx context.Context, provider string) error {
	w := l.getWindow(provider)

	for {
		wait, ok := w.tryRecord(l.now)
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// re-check: another goroutine may have taken the slot
		}
	}
}

// tryRecord prunes the window and records the current time if there is room.
// Otherwise it returns how long until the oldest stamp leaves the window.
// The clock is read under the lock so stamps stay ascending.
func (w *window) tryRecord(clock func() time.Time) (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := clock()

	w.pruneLocked(now)

	if len(w.stamps) < w.limit.MaxRequests {
		w.stamps = append(w.stamps, now)
		return 0, true
	}

	wait := w.stamps[0].Add(w.limit.Window).Sub(now)
	if wait <= 0 {
		wait = time.Millisecond
	}
	return wait, false
}

func (w *window) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.limit.Window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}

// Recorded returns a copy of the provider's current window, oldest first.
func (l *Limiter) Recorded(provider string) []time.Time {
	w := l.getWindow(provider)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(l.now())
	out := make([]time.Time, len(w.stamps))
	copy(out, w.stamps)
	return out
}

// LimitFor returns the effective limit of a provider.
func (l *Limiter) LimitFor(provider string) Limit {
	w := l.getWindow(provider)
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.limit
}
