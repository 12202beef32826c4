package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/domain"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/ratelimit"
	"github.com/MrSnakeDoc/jobhub/internal/sources"
	"github.com/MrSnakeDoc/jobhub/internal/sources/adzuna"
	"github.com/MrSnakeDoc/jobhub/internal/sources/greenhouse"
	"github.com/MrSnakeDoc/jobhub/internal/sources/remotive"
)

// registerProviders builds every adapter from providers.yaml and registers
// the enabled ones. All adapters share one limiter and one HTTP transport.
func registerProviders(orch *aggregator.Orchestrator, providersFile string, loggerClient logger.Logger) error {
	cfgs, err := sources.NewLoader(providersFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load providers: %w", err)
	}

	d := sources.Deps{
		Limiter: ratelimit.New(ratelimit.Limit{MaxRequests: 30, Window: time.Minute}),
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		Logger: loggerClient,
	}

	builders := []struct {
		name  string
		build func(sources.ProviderSettings, sources.Deps) domain.Provider
	}{
		{adzuna.Name, func(s sources.ProviderSettings, d sources.Deps) domain.Provider { return adzuna.New(s, d) }},
		{greenhouse.Name, func(s sources.ProviderSettings, d sources.Deps) domain.Provider { return greenhouse.New(s, d) }},
		{remotive.Name, func(s sources.ProviderSettings, d sources.Deps) domain.Provider { return remotive.New(s, d) }},
	}

	for _, b := range builders {
		s := cfgs.For(b.name)
		if !s.Enabled {
			loggerClient.Info("provider disabled by configuration", logger.String("provider", b.name))
			continue
		}
		orch.RegisterProvider(b.build(s, d))
		loggerClient.Info("provider registered",
			logger.String("provider", b.name),
			logger.Duration("timeout", s.Timeout),
			logger.Int("max_requests", s.RateLimit.MaxRequests),
			logger.Duration("window", s.RateLimit.Window))
	}
	return nil
}
