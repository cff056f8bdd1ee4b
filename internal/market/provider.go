package market

import (
	"context"
	"time"

	"autotrader/pkg/cache"
)

// DataProvider returns OHLCV history for a symbol, ascending by time.
type DataProvider interface {
	GetBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time, limit int) ([]Bar, error)
}

// CachedProvider memoizes bar windows for a short TTL. Evaluation windows
// roll forward once per scheduler tick, so a TTL below the tick interval
// keeps entries fresh while absorbing duplicate fetches inside one tick
// (several strategies on the same symbol and timeframe).
type CachedProvider struct {
	inner DataProvider
	cache *cache.Sharded
}

// NewCachedProvider wraps inner with a TTL bar cache.
func NewCachedProvider(inner DataProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{inner: inner, cache: cache.NewSharded(ttl)}
}

// GetBars serves from cache when a fresh window exists, otherwise delegates.
func (p *CachedProvider) GetBars(ctx context.Context, symbol string, tf Timeframe, start, end time.Time, limit int) ([]Bar, error) {
	key := symbol + "|" + string(tf)
	if v, ok := p.cache.Get(key); ok {
		if bars, ok := v.([]Bar); ok {
			return bars, nil
		}
	}
	bars, err := p.inner.GetBars(ctx, symbol, tf, start, end, limit)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, bars)
	return bars, nil
}

// CacheStats exposes the underlying cache statistics for status reporting.
func (p *CachedProvider) CacheStats() cache.Stats {
	return p.cache.Stats()
}
