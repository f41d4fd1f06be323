package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Scope selects the events a replay runs over. An empty Portfolio means
// every portfolio the symbol appears in.
type Scope struct {
	Symbol    string
	Portfolio string
}

// EventStore is the append-only wallet log. ListOrdered returns events
// sorted by (time, sequence) ascending; the sequence tie-break makes the
// order total, so two replays of the same scope always fold the same way.
type EventStore interface {
	Append(ctx context.Context, event *Event) (string, error)
	ListOrdered(ctx context.Context, scope Scope) ([]*Event, error)
	ListAll(ctx context.Context) ([]*Event, error)
	Get(ctx context.Context, id string) (*Event, error)
	Update(ctx context.Context, id string, event *Event) error
	Remove(ctx context.Context, id string) (*Event, error)

	// DistinctSymbols lists every symbol that has at least one event,
	// optionally restricted to one portfolio.
	DistinctSymbols(ctx context.Context, portfolioID string) ([]string, error)
}

// ReferenceDirectory answers existence checks for the entities events
// refer to. The ledger never duplicates their data.
type ReferenceDirectory interface {
	PortfolioExists(ctx context.Context, id string) (bool, error)
	BrokerExists(ctx context.Context, id string) (bool, error)
}

// PortfolioRepository stores portfolio reference entities.
type PortfolioRepository interface {
	SavePortfolio(ctx context.Context, p *Portfolio) error
	GetPortfolio(ctx context.Context, id string) (*Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*Portfolio, error)
	DeletePortfolio(ctx context.Context, id string) error
}

// BrokerRepository stores broker reference entities.
type BrokerRepository interface {
	SaveBroker(ctx context.Context, b *Broker) error
	GetBroker(ctx context.Context, id string) (*Broker, error)
	ListBrokers(ctx context.Context) ([]*Broker, error)
	DeleteBroker(ctx context.Context, id string) error
}

// PriceSource supplies market prices. Prices feed current-value and
// performance figures only, never cost basis.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string, asOf time.Time) (decimal.Decimal, error)
}

// AssetDay is one daily bar of historical market data.
type AssetDay struct {
	Symbol string          `json:"symbol"`
	Time   time.Time       `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// PriceHistoryStore keeps daily bars for as-of price lookups.
type PriceHistoryStore interface {
	SaveAssetDays(ctx context.Context, days []AssetDay) error
	// LastAssetDayBefore returns the most recent bar at or before the
	// given time, or ErrNotFound.
	LastAssetDayBefore(ctx context.Context, symbol string, asOf time.Time) (*AssetDay, error)
	LastAssetDay(ctx context.Context, symbol string) (*AssetDay, error)
}

// HistoryProvider fetches daily bars from an external market-data feed.
type HistoryProvider interface {
	DailyHistory(ctx context.Context, symbol string, from, to time.Time) ([]AssetDay, error)
}
