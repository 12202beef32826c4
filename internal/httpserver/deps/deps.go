package deps

import (
	"time"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/mw"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/scheduler"
	"github.com/MrSnakeDoc/jobhub/internal/store"
)

// Sweeper queues a scheduled job out of band.
type Sweeper interface {
	Trigger(job scheduler.Job) bool
}

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
	TimeNow   func() time.Time // for testing, defaults to time.Now

	AllowedHosts []string // Host headers allowed on /api
	AllowedCIDRS []string // IPs allowed on admin and readiness routes
	TrustProxy   bool     // true if running behind a trusted reverse proxy

	Aggregator   *aggregator.Orchestrator
	Store        store.Store
	StoreBackend string  // "postgres" or "memory"
	Sweeper      Sweeper // nil when the scheduler is not running

	SearchRateLimit mw.RateLimitConfig
}

func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
