package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
)

// Bucketing selects the spacing of performance series points.
type Bucketing string

const (
	BucketWeekly  Bucketing = "weekly"
	BucketMonthly Bucketing = "monthly"
)

// ParseBucketing parses a bucketing name, defaulting to weekly.
func ParseBucketing(s string) (Bucketing, error) {
	switch s {
	case "", string(BucketWeekly):
		return BucketWeekly, nil
	case string(BucketMonthly):
		return BucketMonthly, nil
	default:
		return "", &domain.ValidationError{Field: "bucket", Reason: fmt.Sprintf("unknown bucketing %q", s)}
	}
}

// PerformancePoint is one entry of the percentage-gain time series.
type PerformancePoint struct {
	Label          string          `json:"label"`
	PercentualGain decimal.Decimal `json:"percentualGain"`
}

var hundred = decimal.NewFromInt(100)

// PerformanceService derives percentage-gain series by replaying the
// ledger at successive bucket boundaries. There is no separate
// accumulator: every point is a fold of the event log up to its cutoff.
type PerformanceService struct {
	events     domain.EventStore
	portfolios domain.PortfolioRepository
	prices     domain.PriceSource
	logger     *zap.Logger
}

func NewPerformanceService(
	events domain.EventStore,
	portfolios domain.PortfolioRepository,
	prices domain.PriceSource,
	logger *zap.Logger,
) *PerformanceService {
	return &PerformanceService{
		events:     events,
		portfolios: portfolios,
		prices:     prices,
		logger:     logger,
	}
}

// Series computes the gain series for one portfolio, or for all
// portfolios when portfolioID is empty. Buckets with zero aggregate cost
// basis yield a zero point rather than a division fault.
func (s *PerformanceService) Series(ctx context.Context, portfolioID string, bucket Bucketing) ([]PerformancePoint, error) {
	scopes, err := s.collectScopes(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if len(scopes) == 0 {
		return []PerformancePoint{}, nil
	}

	// Fetch each scope's ordered log once; the per-bucket replays fold
	// the same slice with successive cutoffs.
	logs := make(map[scopeKey][]*domain.Event, len(scopes))
	var from time.Time
	for _, sc := range scopes {
		events, err := s.events.ListOrdered(ctx, domain.Scope{Symbol: sc.symbol, Portfolio: sc.portfolioID})
		if err != nil {
			return nil, err
		}
		logs[sc] = events
		if len(events) > 0 && (from.IsZero() || events[0].Time.Before(from)) {
			from = events[0].Time
		}
	}
	if from.IsZero() {
		return []PerformancePoint{}, nil
	}

	points := make([]PerformancePoint, 0)
	for _, boundary := range bucketBoundaries(from, time.Now(), bucket) {
		costBasis := decimal.Zero
		currentValue := decimal.Zero

		for _, sc := range scopes {
			pos, err := Replay(logs[sc], sc.portfolioID, sc.symbol, boundary)
			if err != nil {
				var iqe *domain.InsufficientQuantityError
				if !errors.As(err, &iqe) {
					return nil, err
				}
				s.logger.Warn("inconsistent scope in performance series",
					zap.String("portfolio", sc.portfolioID),
					zap.String("symbol", sc.symbol))
			}
			if pos.Quantity.IsZero() && pos.CostBasis.IsZero() {
				continue
			}

			costBasis = costBasis.Add(pos.CostBasis)
			currentValue = currentValue.Add(s.valueAt(ctx, pos, boundary))
		}

		gain := decimal.Zero
		if !costBasis.IsZero() {
			gain = currentValue.Sub(costBasis).Div(costBasis).Mul(hundred)
		}
		points = append(points, PerformancePoint{
			Label:          boundary.Format("2006-01-02"),
			PercentualGain: gain,
		})
	}
	return points, nil
}

// valueAt prices the held quantity at the bucket boundary. A scope
// without a price contributes its cost basis, i.e. a neutral gain,
// instead of fabricating one.
func (s *PerformanceService) valueAt(ctx context.Context, pos *domain.Position, asOf time.Time) decimal.Decimal {
	if s.prices == nil {
		return pos.CostBasis
	}
	price, err := s.prices.CurrentPrice(ctx, pos.Symbol, asOf)
	if err != nil {
		s.logger.Debug("no price for bucket",
			zap.String("symbol", pos.Symbol),
			zap.Time("asOf", asOf),
			zap.Error(err))
		return pos.CostBasis
	}
	return price.Mul(pos.Quantity)
}

func (s *PerformanceService) collectScopes(ctx context.Context, portfolioID string) ([]scopeKey, error) {
	var ids []string
	if portfolioID != "" {
		p, err := s.portfolios.GetPortfolio(ctx, portfolioID)
		if err != nil {
			return nil, err
		}
		ids = []string{p.ID}
	} else {
		portfolios, err := s.portfolios.ListPortfolios(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range portfolios {
			ids = append(ids, p.ID)
		}
	}

	var scopes []scopeKey
	for _, id := range ids {
		symbols, err := s.events.DistinctSymbols(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, symbol := range symbols {
			scopes = append(scopes, scopeKey{portfolioID: id, symbol: symbol})
		}
	}
	return scopes, nil
}

// bucketBoundaries returns the cutoff times between from and to. Weekly
// buckets close on Fridays, monthly buckets on the last day of the
// month; boundaries land on end of day so same-day events are included.
func bucketBoundaries(from, to time.Time, bucket Bucketing) []time.Time {
	var boundaries []time.Time

	switch bucket {
	case BucketMonthly:
		// Last day of from's month, then month ends until to.
		cursor := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location()).AddDate(0, 1, -1)
		for !cursor.After(to) {
			boundaries = append(boundaries, endOfDay(cursor))
			cursor = time.Date(cursor.Year(), cursor.Month(), 1, 0, 0, 0, 0, cursor.Location()).AddDate(0, 2, -1)
		}
	default:
		cursor := from
		for cursor.Weekday() != time.Friday {
			cursor = cursor.AddDate(0, 0, 1)
		}
		for !cursor.After(to) {
			boundaries = append(boundaries, endOfDay(cursor))
			cursor = cursor.AddDate(0, 0, 7)
		}
	}
	return boundaries
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
