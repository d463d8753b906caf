package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"token_screener/internal/app/port"
	"token_screener/internal/domain/entity"
)

// Cached memoizes successful lookups of another provider for a TTL.
type Cached struct {
	inner port.AnalyticsProvider
	cache *gocache.Cache
}

func NewCached(inner port.AnalyticsProvider, ttl time.Duration) *Cached {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Cached{inner: inner, cache: gocache.New(ttl, 2*ttl)}
}

func (c *Cached) Source() string { return c.inner.Source() }

func (c *Cached) Candles(ctx context.Context, address, interval string, limit int) ([]entity.Candle, error) {
	key := fmt.Sprintf("candles:%s:%s:%d", address, strings.ToLower(interval), limit)
	if v, ok := c.cache.Get(key); ok {
		return v.([]entity.Candle), nil
	}
	out, err := c.inner.Candles(ctx, address, interval, limit)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

func (c *Cached) Holders(ctx context.Context, address string) (entity.HolderStats, error) {
	key := "holders:" + address
	if v, ok := c.cache.Get(key); ok {
		return v.(entity.HolderStats), nil
	}
	out, err := c.inner.Holders(ctx, address)
	if err != nil {
		return entity.HolderStats{}, err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}

func (c *Cached) Security(ctx context.Context, address string) (entity.SecurityFlags, error) {
	key := "security:" + address
	if v, ok := c.cache.Get(key); ok {
		return v.(entity.SecurityFlags), nil
	}
	out, err := c.inner.Security(ctx, address)
	if err != nil {
		return entity.SecurityFlags{}, err
	}
	c.cache.SetDefault(key, out)
	return out, nil
}
