package pricefeed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
)

// Cache holds the latest streamed price per symbol.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

func NewCache() *Cache {
	return &Cache{prices: make(map[string]decimal.Decimal)}
}

func (c *Cache) Set(symbol string, price decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = price
}

func (c *Cache) Get(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	price, ok := c.prices[symbol]
	return price, ok
}

// LatestProvider fetches the most recent traded price on demand, used
// when the stream has not delivered a quote for the symbol yet.
type LatestProvider interface {
	LatestPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// liveWindow is how far in the past an as-of time may lie and still be
// answered from live quotes rather than stored daily bars.
const liveWindow = 24 * time.Hour

// Source answers price lookups by combining the live cache, an optional
// on-demand provider and stored daily bars. As-of lookups in the past
// use the most recent bar at or before the requested time.
type Source struct {
	cache  *Cache
	latest LatestProvider
	bars   domain.PriceHistoryStore
	logger *zap.Logger
}

func NewSource(cache *Cache, latest LatestProvider, bars domain.PriceHistoryStore, logger *zap.Logger) *Source {
	return &Source{cache: cache, latest: latest, bars: bars, logger: logger}
}

func (s *Source) CurrentPrice(ctx context.Context, symbol string, asOf time.Time) (decimal.Decimal, error) {
	if time.Since(asOf) < liveWindow {
		if s.cache != nil {
			if price, ok := s.cache.Get(symbol); ok {
				return price, nil
			}
		}
		if s.latest != nil {
			price, err := s.latest.LatestPrice(ctx, symbol)
			if err == nil {
				if s.cache != nil {
					s.cache.Set(symbol, price)
				}
				return price, nil
			}
			s.logger.Debug("latest price lookup failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}

	if s.bars != nil {
		day, err := s.bars.LastAssetDayBefore(ctx, symbol, asOf)
		if err == nil {
			return day.Close, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return decimal.Zero, err
		}
	}
	return decimal.Zero, domain.ErrNotFound
}
