package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockwallet/backend/internal/domain"
)

// Replay folds an ordered event log into the position for one
// (portfolio, symbol) scope. Events not listing the portfolio are
// skipped, so a log fetched for a wider scope can be reused.
//
// The returned position is always non-nil. When a sale exceeds the held
// quantity the fold stops, the position keeps the last valid state with
// Inconsistent set, and an InsufficientQuantityError identifies the
// offending event. Events after the cutoff are ignored; pass a zero
// cutoff to replay the whole log.
func Replay(events []*domain.Event, portfolioID, symbol string, cutoff time.Time) (*domain.Position, error) {
	pos := domain.NewPosition(portfolioID, symbol)

	for _, ev := range events {
		if !cutoff.IsZero() && ev.Time.After(cutoff) {
			break
		}
		if ev.Symbol != symbol || !ev.AppliesTo(portfolioID) {
			continue
		}

		switch d := ev.Detail.(type) {
		case domain.StockOperation:
			switch d.Kind {
			case domain.OperationPurchase:
				applyPurchase(pos, d)
			case domain.OperationSale:
				if pos.Quantity.LessThan(d.Quantity) {
					pos.Inconsistent = true
					return pos, &domain.InsufficientQuantityError{
						EventID:     ev.ID,
						PortfolioID: portfolioID,
						Symbol:      symbol,
						Held:        pos.Quantity,
						Requested:   d.Quantity,
					}
				}
				applySale(pos, ev.Time, d)
			}
		case domain.StockSplit:
			applySplit(pos, d)
		}
		pos.Time = ev.Time
	}

	return pos, nil
}

// applyPurchase folds a buy: fees are capitalized into cost basis and
// the average price is re-blended over the combined lot.
func applyPurchase(pos *domain.Position, op domain.StockOperation) {
	pos.CostBasis = pos.CostBasis.Add(op.Quantity.Mul(op.Price)).Add(op.Fees)
	pos.Quantity = pos.Quantity.Add(op.Quantity)
	pos.AveragePrice = pos.CostBasis.Div(pos.Quantity)
}

// applySale folds a disposal at average cost. The average price is left
// untouched; only the cost basis shrinks with the quantity.
func applySale(pos *domain.Position, at time.Time, op domain.StockOperation) {
	costPrice := pos.AveragePrice
	pos.Realized = pos.Realized.
		Add(op.Quantity.Mul(op.Price.Sub(costPrice))).
		Sub(op.Fees)
	pos.Quantity = pos.Quantity.Sub(op.Quantity)
	pos.CostBasis = pos.Quantity.Mul(pos.AveragePrice)

	pos.Sales = append(pos.Sales, domain.Sale{
		Time:      at,
		Quantity:  op.Quantity,
		CostPrice: costPrice,
		SellPrice: op.Price,
	})
}

// applySplit rescales quantity and average price in opposite directions
// so the cost basis is conserved. A split with factor f multiplies the
// quantity by f, a reverse split divides it; f is always greater than
// one by convention.
func applySplit(pos *domain.Position, sp domain.StockSplit) {
	if pos.Quantity.IsZero() {
		return
	}

	var newQuantity decimal.Decimal
	switch sp.Kind {
	case domain.SplitForward:
		newQuantity = pos.Quantity.Mul(sp.Factor)
	case domain.SplitReverse:
		newQuantity = pos.Quantity.Div(sp.Factor)
	default:
		return
	}

	// Cost basis is invariant under a split: only the per-unit price is
	// rescaled against the new share count.
	pos.Quantity = newQuantity
	pos.AveragePrice = pos.CostBasis.Div(newQuantity)
}
