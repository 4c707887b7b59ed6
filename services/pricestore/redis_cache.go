package pricestore

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stock_watchlist_backend/models"
)

const (
	priceCachePrefix = "price:"
	cacheLockStripes = 64
)

// RedisCache is a cache-aside layer in front of another Repository.
// Read path: Redis GET → backing repository → fill Redis.
// Upsert writes the backing repository and then drops the cached key, so Redis
// only ever holds values read back from the backing repository.
// Backing writes and miss fills for the same ticker are serialized, which keeps
// a fill from caching a value an in-flight Upsert has already replaced.
// Redis errors never fail a call; the backing repository is the source of truth.
type RedisCache struct {
	rdb    goredis.Cmdable
	next   Repository
	ttl    time.Duration
	logger *zap.Logger

	locks [cacheLockStripes]sync.Mutex
}

// NewRedisCache wraps next. A zero ttl stores keys without expiry.
func NewRedisCache(rdb goredis.Cmdable, next Repository, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{rdb: rdb, next: next, ttl: ttl, logger: logger}
}

func (c *RedisCache) Find(ctx context.Context, ticker string) (*models.StockPrice, error) {
	if rec, ok := c.cached(ctx, ticker); ok {
		return rec, nil
	}

	mu := c.lockFor(ticker)
	mu.Lock()
	defer mu.Unlock()

	rec, err := c.next.Find(ctx, ticker)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, rec)
	return rec, nil
}

func (c *RedisCache) Upsert(ctx context.Context, rec *models.StockPrice) error {
	mu := c.lockFor(rec.Ticker)
	mu.Lock()
	defer mu.Unlock()

	if err := c.next.Upsert(ctx, rec); err != nil {
		return err
	}
	if err := c.rdb.Del(ctx, priceCachePrefix+rec.Ticker).Err(); err != nil {
		c.logger.Warn("failed to invalidate redis price cache",
			zap.String("ticker", rec.Ticker), zap.Error(err))
	}
	return nil
}

func (c *RedisCache) cached(ctx context.Context, ticker string) (*models.StockPrice, bool) {
	data, err := c.rdb.Get(ctx, priceCachePrefix+ticker).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.logger.Warn("redis price cache GET failed, falling through",
				zap.String("ticker", ticker), zap.Error(err))
		}
		return nil, false
	}
	var rec models.StockPrice
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("failed to decode cached price, falling through",
			zap.String("ticker", ticker), zap.Error(err))
		return nil, false
	}
	return &rec, true
}

// fill caches a value just read from the backing repository; callers hold the ticker lock.
func (c *RedisCache) fill(ctx context.Context, rec *models.StockPrice) {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return
	}
	key := priceCachePrefix + rec.Ticker
	if err := c.rdb.Set(ctx, key, encoded, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to fill redis price cache",
			zap.String("ticker", rec.Ticker), zap.Error(err))
	}
}

func (c *RedisCache) lockFor(ticker string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticker))
	return &c.locks[h.Sum32()%cacheLockStripes]
}
