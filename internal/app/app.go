package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jobhub/internal/aggregator"
	"github.com/MrSnakeDoc/jobhub/internal/cache"
	"github.com/MrSnakeDoc/jobhub/internal/config"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/deps"
	"github.com/MrSnakeDoc/jobhub/internal/httpserver/mw"
	"github.com/MrSnakeDoc/jobhub/internal/logger"
	"github.com/MrSnakeDoc/jobhub/internal/redis"
	"github.com/MrSnakeDoc/jobhub/internal/scheduler"
	"github.com/MrSnakeDoc/jobhub/internal/store"
	"github.com/MrSnakeDoc/jobhub/internal/store/memory"
	"github.com/MrSnakeDoc/jobhub/internal/store/postgres"
	"github.com/MrSnakeDoc/jobhub/internal/version"
)

const (
	backendPostgres = "postgres"
	backendMemory   = "memory"
)

type App struct {
	cfg          *config.Config
	logger       logger.Logger
	store        store.Store
	storeBackend string
	redisClient  *goredis.Client
	orch         *aggregator.Orchestrator
	sched        *scheduler.Scheduler
	server       *httpserver.Server
}

// New wires every component from the environment. Nothing runs until Run.
func New(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*App, error) {
	loggerClient.Debug("configuration loaded", logger.Any("config", cfg.Redacted()))

	st, backend, err := openStore(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	// Redis is optional: without it every cache lookup misses
	redisClient, c := openCache(ctx, cfg, loggerClient)

	orch := aggregator.New(st, c, loggerClient, aggregator.Config{
		TTLs: cache.TTLs{
			Search: cfg.CacheSearchTTL,
			Detail: cfg.CacheDetailTTL,
			Health: cfg.CacheHealthTTL,
		},
		SweepKeywords:  cfg.SweepKeywords,
		SweepLocations: cfg.SweepLocations,
		SweepPause:     cfg.SweepPause,
		SweepLimit:     cfg.SweepLimit,
		StaleAfter:     cfg.StaleAfter,
	})

	if err := registerProviders(orch, cfg.ProvidersFile, loggerClient); err != nil {
		closeQuietly(st, redisClient, loggerClient)
		return nil, err
	}

	sched := scheduler.New(orch, loggerClient, scheduler.Config{
		AggregationSpec: cfg.AggregationSchedule,
		ExpirySpec:      cfg.ExpirySchedule,
		RunOnStart:      cfg.AggregateOnStart,
	})

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Aggregator:   orch,
		Store:        st,
		StoreBackend: backend,
		Sweeper:      sched,
		SearchRateLimit: mw.RateLimitConfig{
			Burst:             cfg.SearchBurst,
			RefillPerIPPerMin: cfg.SearchRefillPerMin,
			TrustProxy:        cfg.TrustProxy,
		},
	}

	return &App{
		cfg:          cfg,
		logger:       loggerClient,
		store:        st,
		storeBackend: backend,
		redisClient:  redisClient,
		orch:         orch,
		sched:        sched,
		server:       httpserver.New(cfg, loggerClient, d),
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (store.Store, string, error) {
	if cfg.DatabaseURL == "" {
		loggerClient.Warn("JOBHUB_DATABASE_URL not set, using in-memory store (records are lost on exit)")
		return memory.New(), backendMemory, nil
	}

	pg, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, "", err
	}
	loggerClient.Info("postgres store ready")
	return pg, backendPostgres, nil
}

func openCache(ctx context.Context, cfg *config.Config, loggerClient logger.Logger) (*goredis.Client, cache.Cache) {
	client, err := redis.New(ctx, redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	switch {
	case errors.Is(err, redis.ErrNoAddr):
		loggerClient.Info("JOBHUB_REDIS_ADDR not set, cache disabled")
		return nil, nil
	case err != nil:
		loggerClient.Warn("redis unavailable, continuing without cache", logger.Error(err))
		return nil, nil
	}

	loggerClient.Info("Redis initialized successfully")
	return client, cache.NewRedis(client, loggerClient, cfg.CacheOpTimeout)
}

// Orchestrator exposes the wired orchestrator to one-shot commands.
func (a *App) Orchestrator() *aggregator.Orchestrator { return a.orch }

func (a *App) Logger() logger.Logger { return a.logger }

// Run starts the scheduler and the HTTP server and blocks until ctx is done
// or the server fails. Everything is released before it returns.
func (a *App) Run(ctx context.Context) error {
	a.logger.Infof("🚀 Starting jobhub v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("jobhub %s", version.String())
	a.logger.Info("components ready",
		logger.String("store", a.storeBackend),
		logger.Bool("cache", a.redisClient != nil),
		logger.Int("providers", len(a.orch.Providers())))

	defer a.Close()

	if err := a.sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	for job, next := range a.sched.Next() {
		a.logger.Info("job scheduled", logger.String("job", string(job)), logger.Time("next", next))
	}

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// Running jobs see ctx cancelled; wait for them within the same bound
	select {
	case <-a.sched.Stop().Done():
		a.logger.Info("✅ Scheduler stopped")
	case <-shutdownCtx.Done():
		a.logger.Warn("scheduler did not stop before the shutdown timeout")
	}

	if runErr == nil {
		a.logger.Info("✅ jobhub stopped cleanly")
	}
	return runErr
}

// Close releases the store and the redis client.
func (a *App) Close() {
	closeQuietly(a.store, a.redisClient, a.logger)
	a.store, a.redisClient = nil, nil
	_ = a.logger.Sync()
}

func closeQuietly(st store.Store, redisClient *goredis.Client, loggerClient logger.Logger) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			loggerClient.Warnf("failed to close redis: %v", err)
		} else {
			loggerClient.Info("✅ Redis closed cleanly")
		}
	}
	if st != nil {
		st.Close()
	}
}

// Handler exposes the HTTP router without listening, for end-to-end tests.
func (a *App) Handler() http.Handler { return a.server.Handler() }
