package sources

import (
	"net/http"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/ratelimit"
)

// Deps are the shared collaborators handed to every adapter constructor.
type Deps struct {
	Limiter    *ratelimit.Limiter
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Guard configures the provider's rate window and builds its own breaker.
func (d Deps) Guard(s ProviderSettings) *Guard {
	limiter := d.Limiter
	if limiter == nil {
		limiter = ratelimit.New(s.RateLimit)
	}
	limiter.Configure(s.Name, s.RateLimit)

	log := d.log()
	bs := s.Breaker
	bs.OnStateChange = func(name string, from, to breaker.State) {
		fields := []logger.Field{
			logger.String("provider", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		}
		if to == breaker.StateOpen {
			log.Warn("circuit opened", fields...)
			return
		}
		log.Info("circuit state changed", fields...)
	}

	return NewGuard(s.Name, limiter, breaker.New(s.Name, bs), s.Timeout)
}

func (d Deps) Client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return http.DefaultClient
}

func (d Deps) log() logger.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return logger.NewNop()
}

// Log returns the logger scoped to one provider.
func (d Deps) Log(provider string) logger.Logger {
	return d.log().With(logger.String("provider", provider))
}

// Page applies the criteria's page and limit to a locally filtered list.
func Page(items []domain.RawListing, c domain.SearchCriteria) []domain.RawListing {
	c = c.Normalize()
	start := (c.Page - 1) * c.Limit
	if start >= len(items) {
		return []domain.RawListing{}
	}
	end := start + c.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
