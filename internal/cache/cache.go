// Package cache is the advisory result cache in front of the providers.
//
// Nothing in here returns an error to a reader: a broken backend, a timeout or
// an undecodable value are all reported as a miss, and writes are best-effort.
// The cache must never decide whether a request succeeds.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/jobhub/internal/logger"
)

const (
	DefaultSearchTTL = 5 * time.Minute
	DefaultDetailTTL = time.Hour
	DefaultHealthTTL = 2 * time.Minute

	DefaultOpTimeout = 500 * time.Millisecond

	scanBatch = 100
)

// TTLs holds one expiry per class of entry.
type TTLs struct {
	Search time.Duration
	Detail time.Duration
	Health time.Duration
}

func DefaultTTLs() TTLs {
	return TTLs{Search: DefaultSearchTTL, Detail: DefaultDetailTTL, Health: DefaultHealthTTL}
}

// WithDefaults fills zero durations.
func (t TTLs) WithDefaults() TTLs {
	d := DefaultTTLs()
	if t.Search <= 0 {
		t.Search = d.Search
	}
	if t.Detail <= 0 {
		t.Detail = d.Detail
	}
	if t.Health <= 0 {
		t.Health = d.Health
	}
	return t
}

// Stats describes the backend for status endpoints.
type Stats struct {
	Connected    bool   `json:"connected"`
	KeyCount     int64  `json:"key_count"`
	ApproxMemory string `json:"approx_memory,omitempty"`
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)
	// Invalidate deletes every key matching a glob pattern and returns how many went.
	Invalidate(ctx context.Context, pattern string) (int, error)
	Stats(ctx context.Context) Stats
}

// RedisCache implements Cache on top of go-redis.
type RedisCache struct {
	client    redis.UniversalClient
	log       logger.Logger
	opTimeout time.Duration
}

func NewRedis(client redis.UniversalClient, log logger.Logger, opTimeout time.Duration) *RedisCache {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisCache{client: client, log: log.Named("cache"), opTimeout: opTimeout}
}

func (c *RedisCache) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	ctx, cancel := c.op(ctx)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed, treating as miss",
				logger.String("key", key), logger.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	ctx, cancel := c.op(ctx)
	defer cancel()

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("cache set failed",
			logger.String("key", key), logger.Error(err))
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}

	deleted := 0
	batch := make([]string, 0, scanBatch)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		dctx, cancel := c.op(ctx)
		n, err := c.client.Del(dctx, batch...).Result()
		cancel()
		if err != nil {
			return err
		}
		deleted += int(n)
		batch = batch[:0]
		return nil
	}

	iter := c.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

func (c *RedisCache) Stats(ctx context.Context) Stats {
	if c == nil || c.client == nil {
		return Stats{}
	}
	ctx, cancel := c.op(ctx)
	defer cancel()

	if err := c.client.Ping(ctx).Err(); err != nil {
		return Stats{}
	}

	st := Stats{Connected: true}
	if n, err := c.client.DBSize(ctx).Result(); err == nil {
		st.KeyCount = n
	}
	if info, err := c.client.Info(ctx, "memory").Result(); err == nil {
		st.ApproxMemory = infoField(info, "used_memory_human")
	}
	return st
}

// infoField extracts one "name:value" line from an INFO reply.
func infoField(info, name string) string {
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, name+":"); ok {
			return v
		}
	}
	return ""
}

// GetJSON decodes a cached value into v. A nil cache, a miss and an
// undecodable value all return false.
func GetJSON(ctx context.Context, c Cache, key string, v any) bool {
	if c == nil {
		return false
	}
	data, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false
	}
	return true
}

// SetJSON encodes v and stores it. Encoding failures are dropped.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.Set(ctx, key, data, ttl)
}
