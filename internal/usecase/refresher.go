package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
)

// Refresher keeps stored daily bars up to date and warms the position
// cache, once at startup and then on a fixed interval. Failures are
// logged and retried on the next round, never fatal.
type Refresher struct {
	events   domain.EventStore
	bars     domain.PriceHistoryStore
	history  domain.HistoryProvider
	ledger   *LedgerService
	interval time.Duration
	logger   *zap.Logger
}

func NewRefresher(
	events domain.EventStore,
	bars domain.PriceHistoryStore,
	history domain.HistoryProvider,
	ledger *LedgerService,
	interval time.Duration,
	logger *zap.Logger,
) *Refresher {
	return &Refresher{
		events:   events,
		bars:     bars,
		history:  history,
		ledger:   ledger,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until the context is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *Refresher) refresh(ctx context.Context) {
	r.logger.Info("starting full refresh")

	if err := r.refreshHistory(ctx); err != nil {
		r.logger.Warn("historical refresh failed", zap.Error(err))
	}

	if _, err := r.ledger.ListAllPositions(ctx); err != nil {
		r.logger.Warn("position warm-up failed", zap.Error(err))
	}

	r.logger.Info("full refresh done")
}

// refreshHistory pulls daily bars for every symbol in the log, starting
// from the day after the last stored bar.
func (r *Refresher) refreshHistory(ctx context.Context) error {
	if r.history == nil || r.bars == nil {
		return nil
	}

	symbols, err := r.events.DistinctSymbols(ctx, "")
	if err != nil {
		return err
	}

	now := time.Now()
	for _, symbol := range symbols {
		var from time.Time
		last, err := r.bars.LastAssetDay(ctx, symbol)
		switch {
		case err == nil:
			from = last.Time.AddDate(0, 0, 1)
		case errors.Is(err, domain.ErrNotFound):
			// No bars yet, let the provider pick its earliest.
		default:
			return err
		}

		days, err := r.history.DailyHistory(ctx, symbol, from, now)
		if err != nil {
			r.logger.Warn("history fetch failed", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		if len(days) == 0 {
			continue
		}
		if err := r.bars.SaveAssetDays(ctx, days); err != nil {
			return err
		}
		r.logger.Info("stored daily bars", zap.String("symbol", symbol), zap.Int("count", len(days)))
	}
	return nil
}
