/*
cache.go - Cached commission summaries

PURPOSE:
  Caches rendered breakdown report responses so dashboard refreshes don't
  recompute the aggregation on every request. Service writes that change
  commission figures invalidate through the plan.SummaryInvalidator hook;
  handlers that mutate state without the service (delete, config, reset)
  invalidate directly.

DEGRADATION:
  Cache failures are logged and treated as misses. A broken or absent redis
  never turns a report request into an error; the handler just recomputes.

KEYING:
  Every cached entry lives under the "summary:" prefix, one key per
  distinct filter query. Invalidation drops the whole prefix - commission
  figures feed every summary, so per-key invalidation buys nothing.

USAGE:
  cache, err := NewRedisCache("redis://localhost:6379/0")
  handler.UseCache(cache)

SEE ALSO:
  - handlers.go: GetBreakdown reads through the cache; UseCache wiring
  - plan/workflow.go: SummaryInvalidator and the writes that notify it
*/
package api

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const summaryPrefix = "summary:"

// summaryTTL bounds staleness if an invalidation is ever missed.
const summaryTTL = 10 * time.Minute

// SummaryCache stores rendered summary payloads. Implementations must treat
// every failure as a miss.
type SummaryCache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte)
	InvalidateSummaries(ctx context.Context)
}

// =============================================================================
// REDIS CACHE
// =============================================================================

// RedisCache implements SummaryCache on a redis instance.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to redis and verifies the connection.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Println("[Cache] Redis connection established")
	return &RedisCache{client: client}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, summaryPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("[Cache] Read failed for %s: %v", key, err)
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte) {
	if err := c.client.Set(ctx, summaryPrefix+key, value, summaryTTL).Err(); err != nil {
		log.Printf("[Cache] Write failed for %s: %v", key, err)
	}
}

// InvalidateSummaries drops every cached summary.
func (c *RedisCache) InvalidateSummaries(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, summaryPrefix+"*", 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		log.Printf("[Cache] Invalidation scan failed: %v", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("[Cache] Invalidation failed: %v", err)
	}
}

// Close closes the redis connection.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// =============================================================================
// NO-OP CACHE
// =============================================================================

// NoopCache is the stand-in when no redis is configured. Every read misses,
// so reports always recompute.
type NoopCache struct{}

func (NoopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (NoopCache) Set(ctx context.Context, key string, value []byte)  {}
func (NoopCache) InvalidateSummaries(ctx context.Context)            {}
