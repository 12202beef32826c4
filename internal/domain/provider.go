package domain

import (
	"context"
	"errors"
)

var (
	// ErrNotSupported is returned by adapters whose upstream has no such endpoint.
	// It is not a transient failure and never counts against a circuit breaker.
	ErrNotSupported = errors.New("operation not supported by provider")

	// ErrNotFound means the upstream answered but the item does not exist.
	ErrNotFound = errors.New("listing not found")

	// ErrProviderDisabled marks a provider that cannot work at all
	// (e.g. missing credentials). It shows up as unhealthy.
	ErrProviderDisabled = errors.New("provider disabled")
)

// Provider is the uniform capability surface of one external job source.
//
// Fetch returns an empty slice (not an error) for ordinary empty results.
// Adapters apply their own rate limiting and circuit breaking and may fall
// back to a secondary upstream before giving up with an error.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, criteria SearchCriteria) ([]RawListing, error)
	FetchDetails(ctx context.Context, externalID string) (*RawListing, error)
	Normalize(raw RawListing) NormalizedRecord
	// HealthCheck is best-effort and time-bounded.
	HealthCheck(ctx context.Context) bool
}
