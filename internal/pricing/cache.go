package pricing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/takeymahesh06/silaiwala/internal/common/logger"
	"github.com/takeymahesh06/silaiwala/internal/common/metrics"
)

const cacheKeyPrefix = "pricing:quote:"

// Cache lookup labels for metrics.QuoteCache.
const (
	cacheHit   = "hit"
	cacheMiss  = "miss"
	cacheError = "error"
)

// CachedQuoter keeps successful quotes in Redis and collapses identical
// concurrent requests into one upstream call. Error results are never
// cached, and Redis failures fall through to the wrapped Quoter.
type CachedQuoter struct {
	inner  Quoter
	rdb    redis.Cmdable
	ttl    time.Duration
	group  singleflight.Group
	logger logger.Logger
}

func NewCachedQuoter(inner Quoter, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedQuoter {
	return &CachedQuoter{
		inner: inner,
		rdb:   rdb,
		ttl:   ttl,
		logger: log.With(map[string]interface{}{
			"component": "quote-cache",
		}),
	}
}

// CacheKey derives the Redis key of a request from its wire encoding.
func CacheKey(req QuoteRequest) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(b)
	return cacheKeyPrefix + hex.EncodeToString(sum[:]), nil
}

func (c *CachedQuoter) FetchQuote(ctx context.Context, req QuoteRequest) QuoteResult {
	key, err := CacheKey(req)
	if err != nil {
		return c.inner.FetchQuote(ctx, req)
	}

	if cached, ok := c.lookup(ctx, key); ok {
		return cached
	}

	v, _, _ := c.group.Do(key, func() (interface{}, error) {
		res := c.inner.FetchQuote(ctx, req)
		if res.OK() {
			c.store(ctx, key, res)
		}
		return res, nil
	})
	res := v.(QuoteResult)

	// A shared call may have been cancelled by the caller that started it.
	if res.Cancelled && ctx.Err() == nil {
		return c.inner.FetchQuote(ctx, req)
	}
	return res
}

func (c *CachedQuoter) lookup(ctx context.Context, key string) (QuoteResult, bool) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.QuoteCache.WithLabelValues(cacheMiss).Inc()
		return QuoteResult{}, false
	}
	if err != nil {
		metrics.QuoteCache.WithLabelValues(cacheError).Inc()
		c.logger.Warn("quote cache read failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return QuoteResult{}, false
	}

	var res QuoteResult
	if err := json.Unmarshal(data, &res); err != nil || !res.OK() {
		metrics.QuoteCache.WithLabelValues(cacheMiss).Inc()
		return QuoteResult{}, false
	}
	metrics.QuoteCache.WithLabelValues(cacheHit).Inc()
	return res, true
}

func (c *CachedQuoter) store(ctx context.Context, key string, res QuoteResult) {
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := c.rdb.Set(context.WithoutCancel(ctx), key, string(data), c.ttl).Err(); err != nil {
		metrics.QuoteCache.WithLabelValues(cacheError).Inc()
		c.logger.Warn("quote cache write failed", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}
