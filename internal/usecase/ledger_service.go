package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
)

// LedgerService owns the event log and derives positions from it. Writes
// go through validation and reference checks before touching the store;
// reads fold the ordered log for the requested scope, serving from the
// materialized cache when it is fresh.
type LedgerService struct {
	events     domain.EventStore
	refs       domain.ReferenceDirectory
	portfolios domain.PortfolioRepository
	prices     domain.PriceSource
	cache      *PositionCache
	locks      *scopeLocks
	logger     *zap.Logger
}

func NewLedgerService(
	events domain.EventStore,
	refs domain.ReferenceDirectory,
	portfolios domain.PortfolioRepository,
	prices domain.PriceSource,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		events:     events,
		refs:       refs,
		portfolios: portfolios,
		prices:     prices,
		cache:      NewPositionCache(),
		locks:      newScopeLocks(),
		logger:     logger,
	}
}

// AddEvent validates, reference-checks and appends an event, then
// invalidates every scope it touches. Append and invalidation happen
// under the scope locks: a recompute of the same scope either finishes
// first and is invalidated afterwards, or starts after the append and
// sees it.
func (s *LedgerService) AddEvent(ctx context.Context, ev *domain.Event) (*domain.Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, ev); err != nil {
		return nil, err
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}

	unlock := s.locks.LockMany(eventScopes(ev))
	defer unlock()

	id, err := s.events.Append(ctx, ev)
	if err != nil {
		return nil, err
	}
	ev.ID = id

	s.invalidateScopes(ev)
	return ev, nil
}

// GetEvent looks one event up by id.
func (s *LedgerService) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return s.events.Get(ctx, id)
}

// ListEvents returns the whole log ordered by (time, sequence).
func (s *LedgerService) ListEvents(ctx context.Context) ([]*domain.Event, error) {
	return s.events.ListAll(ctx)
}

// UpdateEvent replaces an event in place. Both the scopes of the old
// event and of the new one are invalidated, since either set of
// positions may have depended on it.
func (s *LedgerService) UpdateEvent(ctx context.Context, id string, ev *domain.Event) (*domain.Event, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, ev); err != nil {
		return nil, err
	}

	old, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.LockMany(append(eventScopes(old), eventScopes(ev)...))
	defer unlock()

	ev.ID = id
	if err := s.events.Update(ctx, id, ev); err != nil {
		return nil, err
	}

	s.invalidateScopes(old)
	s.invalidateScopes(ev)
	return ev, nil
}

// RemoveEvent deletes an event and invalidates its scopes.
func (s *LedgerService) RemoveEvent(ctx context.Context, id string) (*domain.Event, error) {
	old, err := s.events.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.LockMany(eventScopes(old))
	defer unlock()

	removed, err := s.events.Remove(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateScopes(removed)
	return removed, nil
}

// ComputePosition materializes the position for one scope. When the
// scope's log contains a sale exceeding the held quantity, the returned
// position is the last valid state flagged inconsistent and the error is
// the corresponding InsufficientQuantityError; callers decide whether
// that is fatal.
func (s *LedgerService) ComputePosition(ctx context.Context, portfolioID, symbol string) (*domain.Position, error) {
	unlock := s.locks.Lock(portfolioID, symbol)
	pos, ok := s.cache.Get(portfolioID, symbol)
	var dataErr error
	if !ok {
		fresh, err := s.recompute(ctx, portfolioID, symbol)
		if err != nil {
			var iqe *domain.InsufficientQuantityError
			if !errors.As(err, &iqe) {
				unlock()
				return nil, err
			}
			dataErr = err
		}
		pos = fresh
	}
	unlock()

	s.attachCurrentPrice(ctx, pos)
	return pos, dataErr
}

// recompute replays the scope from the store. Consistent results are
// cached; inconsistent ones are not, so every read of a broken scope
// keeps reporting the offending event.
func (s *LedgerService) recompute(ctx context.Context, portfolioID, symbol string) (*domain.Position, error) {
	events, err := s.events.ListOrdered(ctx, domain.Scope{Symbol: symbol, Portfolio: portfolioID})
	if err != nil {
		return nil, fmt.Errorf("list events for %s/%s: %w", portfolioID, symbol, err)
	}

	pos, dataErr := Replay(events, portfolioID, symbol, time.Time{})
	if dataErr != nil {
		return pos, dataErr
	}

	s.cache.Put(pos)
	copied := *pos
	return &copied, nil
}

// PositionAsOf replays the scope up to a cutoff time, bypassing the
// cache. Used for historical snapshots; no market price is attached.
func (s *LedgerService) PositionAsOf(ctx context.Context, portfolioID, symbol string, cutoff time.Time) (*domain.Position, error) {
	events, err := s.events.ListOrdered(ctx, domain.Scope{Symbol: symbol, Portfolio: portfolioID})
	if err != nil {
		return nil, fmt.Errorf("list events for %s/%s: %w", portfolioID, symbol, err)
	}
	pos, dataErr := Replay(events, portfolioID, symbol, cutoff)
	if dataErr != nil {
		return pos, dataErr
	}
	return pos, nil
}

// ComputePositionsForPortfolio materializes every symbol the portfolio
// has events for. Inconsistent scopes are reported in the result with
// their flag set instead of failing the whole portfolio.
func (s *LedgerService) ComputePositionsForPortfolio(ctx context.Context, portfolioID string) (map[string]*domain.Position, error) {
	symbols, err := s.events.DistinctSymbols(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	positions := make(map[string]*domain.Position, len(symbols))
	for _, symbol := range symbols {
		pos, err := s.ComputePosition(ctx, portfolioID, symbol)
		if err != nil {
			var iqe *domain.InsufficientQuantityError
			if errors.As(err, &iqe) {
				s.logger.Warn("inconsistent scope",
					zap.String("portfolio", portfolioID),
					zap.String("symbol", symbol),
					zap.String("event", iqe.EventID))
			} else {
				return nil, err
			}
		}
		positions[symbol] = pos
	}
	return positions, nil
}

// ListAllPositions materializes positions for every known portfolio.
func (s *LedgerService) ListAllPositions(ctx context.Context) ([]*domain.Position, error) {
	portfolios, err := s.portfolios.ListPortfolios(ctx)
	if err != nil {
		return nil, err
	}

	var out []*domain.Position
	for _, p := range portfolios {
		positions, err := s.ComputePositionsForPortfolio(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		for _, pos := range positions {
			out = append(out, pos)
		}
	}
	return out, nil
}

func (s *LedgerService) checkReferences(ctx context.Context, ev *domain.Event) error {
	for _, pid := range ev.Detail.PortfolioIDs() {
		ok, err := s.refs.PortfolioExists(ctx, pid)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.ReferenceError{Entity: "portfolio", ID: pid}
		}
	}
	if op, ok := ev.Detail.(domain.StockOperation); ok {
		ok, err := s.refs.BrokerExists(ctx, op.Broker)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.ReferenceError{Entity: "broker", ID: op.Broker}
		}
	}
	return nil
}

// eventScopes lists every (portfolio, symbol) scope an event touches.
func eventScopes(ev *domain.Event) []scopeKey {
	ids := ev.Detail.PortfolioIDs()
	keys := make([]scopeKey, 0, len(ids))
	for _, pid := range ids {
		keys = append(keys, scopeKey{portfolioID: pid, symbol: ev.Symbol})
	}
	return keys
}

func (s *LedgerService) invalidateScopes(ev *domain.Event) {
	for _, pid := range ev.Detail.PortfolioIDs() {
		s.cache.Invalidate(pid, ev.Symbol)
	}
}

func (s *LedgerService) attachCurrentPrice(ctx context.Context, pos *domain.Position) {
	if s.prices == nil {
		return
	}
	price, err := s.prices.CurrentPrice(ctx, pos.Symbol, time.Now())
	if err != nil {
		s.logger.Debug("no current price", zap.String("symbol", pos.Symbol), zap.Error(err))
		return
	}
	pos.SetCurrentPrice(price)
}
