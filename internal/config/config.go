package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s
	RequestTimeout  time.Duration // per-request bound on the HTTP API

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Postgres DSN; empty => in-memory store (dev mode)
	DatabaseURL string

	// Redis; empty addr => cache disabled, every lookup misses
	RedisAddr             string
	RedisUser             string
	RedisPassword         string
	RedisPasswordRequired bool
	RedisDB               int
	RedisDT               time.Duration // dial timeout
	RedisRT               time.Duration // read timeout
	RedisWT               time.Duration // write timeout
	RedisMaxWait          time.Duration // max wait between connect retries
	RedisPingTimeout      time.Duration // timeout for each ping attempt
	RedisPoolSize         int
	RedisConnectTimeout   time.Duration // total time to retry connecting
	RedisRetryInterval    time.Duration // initial wait between retries, doubles each time
	RedisWarnThreshold    int           // warn after this many attempts

	// Cache TTL classes and the bound on each round trip
	CacheSearchTTL time.Duration
	CacheDetailTTL time.Duration
	CacheHealthTTL time.Duration
	CacheOpTimeout time.Duration

	// Optional providers.yaml; empty => built-in defaults for every adapter
	ProvidersFile string

	// Cron specs, "off" disables
	AggregationSchedule string
	ExpirySchedule      string
	AggregateOnStart    bool

	SweepKeywords  []string
	SweepLocations []string
	SweepPause     time.Duration
	SweepLimit     int
	StaleAfter     time.Duration

	// Inbound per-IP limit on /api/search
	SearchBurst        int
	SearchRefillPerMin int

	AllowedHosts []string // optional, restrict /api to these Host headers
	AllowedCIDRS []string // optional, restrict admin routes to these networks
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("JOBHUB_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("JOBHUB_SHUTDOWN_TIMEOUT", 10*time.Second),
		RequestTimeout:  mustDuration("JOBHUB_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("JOBHUB_LOG_LEVEL", "info"),
		PrettyLog: mustBool("JOBHUB_PRETTY_LOG", false),

		DatabaseURL: getenv("JOBHUB_DATABASE_URL", ""),

		// Redis settings
		RedisAddr:             getenv("JOBHUB_REDIS_ADDR", ""),
		RedisUser:             getenv("JOBHUB_REDIS_USERNAME", ""),
		RedisPassword:         getenv("JOBHUB_REDIS_PASSWORD", ""),
		RedisPasswordRequired: mustBool("JOBHUB_REDIS_PASSWORD_REQUIRED", false),
		RedisDB:               getenvInt("JOBHUB_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Cache
		CacheSearchTTL: mustDuration("JOBHUB_CACHE_SEARCH_TTL", 5*time.Minute),
		CacheDetailTTL: mustDuration("JOBHUB_CACHE_DETAIL_TTL", time.Hour),
		CacheHealthTTL: mustDuration("JOBHUB_CACHE_HEALTH_TTL", 2*time.Minute),
		CacheOpTimeout: mustDuration("JOBHUB_CACHE_OP_TIMEOUT", 500*time.Millisecond),

		ProvidersFile: getenv("JOBHUB_PROVIDERS_FILE", ""),

		// Sweeps
		AggregationSchedule: getenv("JOBHUB_AGGREGATION_SCHEDULE", "@every 6h"),
		ExpirySchedule:      getenv("JOBHUB_EXPIRY_SCHEDULE", "0 0 * * *"),
		AggregateOnStart:    mustBool("JOBHUB_AGGREGATE_ON_START", false),
		SweepKeywords:       splitAndTrim(getenv("JOBHUB_SWEEP_KEYWORDS", "software engineer,backend developer,data engineer,devops")),
		SweepLocations:      splitAndTrim(getenv("JOBHUB_SWEEP_LOCATIONS", "remote")),
		SweepPause:          mustDuration("JOBHUB_SWEEP_PAUSE", 5*time.Second),
		SweepLimit:          getenvInt("JOBHUB_SWEEP_LIMIT", 50),
		StaleAfter:          mustDuration("JOBHUB_STALE_AFTER", 60*24*time.Hour),

		SearchBurst:        getenvInt("JOBHUB_SEARCH_BURST", 20),
		SearchRefillPerMin: getenvInt("JOBHUB_SEARCH_REFILL_PER_MIN", 60),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("JOBHUB_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("JOBHUB_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("JOBHUB_TRUST_PROXY", false),
	}

	cfg.validate()
	return cfg
}

func (c *Config) validate() {
	if c.RedisAddr != "" && c.RedisPasswordRequired && c.RedisPassword == "" {
		panic("❌ FATAL: JOBHUB_REDIS_PASSWORD is required when JOBHUB_REDIS_PASSWORD_REQUIRED=true")
	}
	if c.RequestTimeout <= 0 {
		panic(fmt.Sprintf("❌ FATAL: JOBHUB_REQUEST_TIMEOUT must be > 0, got %v", c.RequestTimeout))
	}
	if c.SweepLimit < 1 {
		panic(fmt.Sprintf("❌ FATAL: JOBHUB_SWEEP_LIMIT must be >= 1, got %d", c.SweepLimit))
	}
	if c.SearchBurst < 1 || c.SearchRefillPerMin < 1 {
		panic("❌ FATAL: JOBHUB_SEARCH_BURST and JOBHUB_SEARCH_REFILL_PER_MIN must be >= 1")
	}
	if c.DatabaseURL != "" {
		if _, err := url.Parse(c.DatabaseURL); err != nil {
			panic(fmt.Sprintf("❌ FATAL: invalid JOBHUB_DATABASE_URL: %v", err))
		}
	}
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	cp.DatabaseURL = redactURL(cp.DatabaseURL)
	return cp
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "***REDACTED***"
	}
	return u.Redacted()
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
