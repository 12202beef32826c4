// Package redis opens the client behind the result cache.
//
// The cache is advisory, so a Redis that never answers is not fatal: New
// retries until ConnectTimeout and then reports the failure, and the caller
// carries on with the cache disabled.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

// ErrNoAddr is returned when no address is configured.
var ErrNoAddr = errors.New("redis address not configured")

// ConnectOptions defines Redis connection retry behavior.
type ConnectOptions struct {
	Addr           string        // Redis address (ex: "localhost:6379")
	User           string        // Optional username
	Password       string        // Optional password
	RedisDB        int           // Redis DB number
	DialTimeout    time.Duration // Redis dial timeout
	ReadTimeout    time.Duration // Redis read timeout
	WriteTimeout   time.Duration // Redis write timeout
	PoolSize       int           // Redis connection pool size
	ConnectTimeout time.Duration // Total time allowed for connection attempts (ex: 30s)
	RetryInterval  time.Duration // Initial wait between retries, doubled after each failure
	MaxWait        time.Duration // Cap on the wait between retries (ex: 10s)
	PingTimeout    time.Duration // Bound on each ping attempt (ex: 2s)
	WarnThreshold  int           // Attempts logged at warn before escalating to error
}

func (o ConnectOptions) validate() error {
	checks := []struct {
		name string
		ok   bool
		val  any
	}{
		{"ConnectTimeout", o.ConnectTimeout > 0, o.ConnectTimeout},
		{"RetryInterval", o.RetryInterval > 0, o.RetryInterval},
		{"MaxWait", o.MaxWait > 0, o.MaxWait},
		{"PingTimeout", o.PingTimeout > 0, o.PingTimeout},
		{"WarnThreshold", o.WarnThreshold >= 0, o.WarnThreshold},
	}
	for _, c := range checks {
		if !c.ok {
			return fmt.Errorf("invalid redis option %s: %v", c.name, c.val)
		}
	}
	return nil
}

func (o ConnectOptions) clientOptions() *redis.Options {
	return &redis.Options{
		Addr:         o.Addr,
		Username:     o.User,
		Password:     o.Password,
		DB:           o.RedisDB,
		DialTimeout:  o.DialTimeout,
		ReadTimeout:  o.ReadTimeout,
		WriteTimeout: o.WriteTimeout,
		PoolSize:     o.PoolSize,
	}
}

// backoff doubles from initial up to max.
type backoff struct {
	next time.Duration
	max  time.Duration
}

func (b *backoff) wait() time.Duration {
	d := b.next
	b.next = min(b.next*2, b.max)
	return d
}

// New creates a Redis client, pinging it until it answers, ConnectTimeout
// elapses or ctx is cancelled. On failure the client is closed.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if opts.Addr == "" {
		return nil, ErrNoAddr
	}
	if err := opts.validate(); err != nil {
		log.Error("redis options rejected", logger.Error(err))
		return nil, err
	}

	log = log.With(logger.String("addr", opts.Addr))
	client := redis.NewClient(opts.clientOptions())

	if err := waitReady(ctx, client, opts, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(parent context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(parent, opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis", logger.Duration("timeout", opts.ConnectTimeout))
	start := time.Now()
	b := backoff{next: opts.RetryInterval, max: opts.MaxWait}

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			fields := []logger.Field{logger.Int("attempts", attempt), logger.Duration("elapsed", time.Since(start))}
			if attempt > 1 {
				log.Warn("connected to redis after retry", fields...)
			} else {
				log.Info("connected to redis", fields...)
			}
			return nil
		}

		wait := b.wait()
		fields := []logger.Field{
			logger.Int("attempt", attempt),
			logger.Duration("next_retry_in", wait),
			logger.Error(err),
		}
		if attempt <= opts.WarnThreshold {
			log.Warn("redis connection failed, retrying", fields...)
		} else {
			log.Error("redis still unavailable, retrying", fields...)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			log.Warn("redis unavailable, cache disabled",
				logger.Int("attempts", attempt),
				logger.Duration("timeout", opts.ConnectTimeout),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts: %w", opts.Addr, attempt, err)
		case <-timer.C:
		}
	}
}
