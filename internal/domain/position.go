package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the current holding of one symbol inside one portfolio.
// It is a pure function of the ordered event log for that scope: two
// replays of the same events always produce the same values.
type Position struct {
	PortfolioID  string          `json:"portfolioId"`
	Symbol       string          `json:"symbol"`
	Quantity     decimal.Decimal `json:"quantity"`
	AveragePrice decimal.Decimal `json:"averagePrice"`
	CostBasis    decimal.Decimal `json:"costBasis"`
	Realized     decimal.Decimal `json:"realized"`
	Sales        []Sale          `json:"sales"`
	Time         time.Time       `json:"time"`

	// Derived at read time from an external price, never stored.
	CurrentPrice decimal.Decimal `json:"currentPrice"`
	Gain         decimal.Decimal `json:"gain"`

	// Inconsistent marks a scope whose log contains a sale exceeding the
	// held quantity. The values above are the last valid state before
	// the offending event.
	Inconsistent bool `json:"inconsistent,omitempty"`
}

// Sale records one disposal against the average cost at sale time.
type Sale struct {
	Time      time.Time       `json:"time"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostPrice decimal.Decimal `json:"costPrice"`
	SellPrice decimal.Decimal `json:"sellPrice"`
}

// NewPosition returns the empty position for a scope.
func NewPosition(portfolioID, symbol string) *Position {
	return &Position{
		PortfolioID:  portfolioID,
		Symbol:       symbol,
		Quantity:     decimal.Zero,
		AveragePrice: decimal.Zero,
		CostBasis:    decimal.Zero,
		Realized:     decimal.Zero,
		CurrentPrice: decimal.Zero,
		Gain:         decimal.Zero,
	}
}

// CurrentValue is the market value of the held quantity at the attached
// current price.
func (p *Position) CurrentValue() decimal.Decimal {
	return p.CurrentPrice.Mul(p.Quantity)
}

// SetCurrentPrice attaches a market price and recomputes the unrealized
// gain against cost basis.
func (p *Position) SetCurrentPrice(price decimal.Decimal) {
	p.CurrentPrice = price
	p.Gain = price.Mul(p.Quantity).Sub(p.CostBasis)
}
