// Package quotecache caches provider quotes in Redis keyed by request and
// provider. The cache is strictly best-effort: any Redis or decode failure
// degrades to a miss, never to an error the pipeline sees.
package quotecache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"

	"github.com/swappilot/quoterank/internal/domain"
)

// CachedQuote is the cacheable slice of one provider's response.
type CachedQuote struct {
	ProviderID   string                         `json:"providerId"`
	CachedAt     time.Time                      `json:"cachedAt"`
	Raw          domain.ProviderQuoteRaw        `json:"raw"`
	Normalized   domain.ProviderQuoteNormalized `json:"normalized"`
	Capabilities domain.Capabilities            `json:"capabilities"`
	Warnings     []string                       `json:"warnings,omitempty"`
}

// Cache is the quote cache contract. NoopCache satisfies it for deployments
// without Redis.
type Cache interface {
	Get(ctx context.Context, key string) (*CachedQuote, bool)
	Set(ctx context.Context, key string, quote CachedQuote, ttl time.Duration)
}

// Key builds the cache key for one provider and request. The request part
// is a digest over the fields that determine quote identity, in fixed
// order, so equivalent requests always share an entry.
func Key(providerID string, req domain.QuoteRequest) string {
	mode := req.Mode
	if mode == "" {
		mode = domain.ModeNormal
	}
	canonical := fmt.Sprintf("%d|%s|%s|%s|%d|%s",
		req.ChainID,
		req.SellToken,
		req.BuyToken,
		req.SellAmount,
		req.SlippageBps,
		mode,
	)
	digest := sha256.Sum256([]byte(canonical))
	return fmt.Sprintf("quoterank:quote:%s:%s", providerID, hex.EncodeToString(digest[:]))
}

// RedisCache is the Redis-backed quote cache.
type RedisCache struct {
	client redis.Cmdable
	log    zerolog.Logger
}

// NewRedis connects a quote cache to addr and verifies the connection.
func NewRedis(addr, password string, db int, logger zerolog.Logger) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewRedisWithClient(client, logger), nil
}

// NewRedisWithClient wraps an existing client. Used by tests with a mock.
func NewRedisWithClient(client redis.Cmdable, logger zerolog.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		log:    logger.With().Str("component", "quote_cache").Logger(),
	}
}

// Get returns the cached quote for key, treating every failure as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*CachedQuote, bool) {
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug().Err(err).Str("key", key).Msg("cache get failed")
		}
		return nil, false
	}

	var quote CachedQuote
	if err := json.Unmarshal([]byte(raw), &quote); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache entry undecodable")
		return nil, false
	}
	return &quote, true
}

// Set stores a quote under key for ttl. Write failures are logged and
// swallowed.
func (c *RedisCache) Set(ctx context.Context, key string, quote CachedQuote, ttl time.Duration) {
	if ttl < time.Second {
		ttl = time.Second
	}
	raw, err := json.Marshal(quote)
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

// NoopCache is the cache used when Redis is not configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*CachedQuote, bool) { return nil, false }

func (NoopCache) Set(context.Context, string, CachedQuote, time.Duration) {}
