package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stockwallet/backend/internal/domain"
	"github.com/stockwallet/backend/internal/infrastructure/storage"
)

// failingPrices simulates a feed with no data at all.
type failingPrices struct{}

func (failingPrices) CurrentPrice(context.Context, string, time.Time) (decimal.Decimal, error) {
	return decimal.Zero, domain.ErrNotFound
}

func TestParseBucketing(t *testing.T) {
	b, err := ParseBucketing("")
	require.NoError(t, err)
	assert.Equal(t, BucketWeekly, b)

	b, err = ParseBucketing("monthly")
	require.NoError(t, err)
	assert.Equal(t, BucketMonthly, b)

	_, err = ParseBucketing("daily")
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "bucket", verr.Field)
}

func TestBucketBoundariesWeekly(t *testing.T) {
	// 2024-03-06 is a Wednesday; Fridays up to the end of March are the
	// 8th, 15th, 22nd and 29th.
	from := time.Date(2024, 3, 6, 10, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	boundaries := bucketBoundaries(from, to, BucketWeekly)
	require.Len(t, boundaries, 4)
	for i, d := range []int{8, 15, 22, 29} {
		assert.Equal(t, time.Friday, boundaries[i].Weekday())
		assert.Equal(t, d, boundaries[i].Day())
		assert.Equal(t, 23, boundaries[i].Hour(), "boundary lands on end of day")
	}
}

func TestBucketBoundariesMonthly(t *testing.T) {
	from := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

	boundaries := bucketBoundaries(from, to, BucketMonthly)
	require.Len(t, boundaries, 3)
	assert.Equal(t, time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC), boundaries[0])
	assert.Equal(t, time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC), boundaries[1])
	assert.Equal(t, time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC), boundaries[2])
}

func newPerfFixture(t *testing.T, prices domain.PriceSource) (*PerformanceService, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.SavePortfolio(ctx, &domain.Portfolio{ID: "p1", Name: "main"}))
	return NewPerformanceService(store, store, prices, zap.NewNop()), store
}

func addPastPurchase(t *testing.T, store *storage.MemoryStore, symbol string, daysAgo int, qty, price float64) {
	t.Helper()
	ev := opEvent(1, symbol, domain.OperationPurchase, []string{"p1"}, qty, price, 0)
	ev.ID = symbol + "-buy"
	ev.Time = time.Now().AddDate(0, 0, -daysAgo)
	_, err := store.Append(context.Background(), ev)
	require.NoError(t, err)
}

func TestSeriesEmptyPortfolio(t *testing.T) {
	svc, _ := newPerfFixture(t, failingPrices{})

	points, err := svc.Series(context.Background(), "p1", BucketWeekly)
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestSeriesUnknownPortfolio(t *testing.T) {
	svc, _ := newPerfFixture(t, failingPrices{})

	_, err := svc.Series(context.Background(), "ghost", BucketWeekly)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSeriesConstantGain(t *testing.T) {
	// 100 shares bought at 10 three weeks ago, priced at 12 ever since:
	// every bucket shows a 20% gain.
	svc, store := newPerfFixture(t, staticPrices{price: decimal.NewFromInt(12)})
	addPastPurchase(t, store, "PETR4", 21, 100, 10)

	points, err := svc.Series(context.Background(), "p1", BucketWeekly)
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, point := range points {
		assert.True(t, point.PercentualGain.Equal(decimal.NewFromInt(20)),
			"bucket %s: expected 20, got %s", point.Label, point.PercentualGain)
	}
}

func TestSeriesMissingPriceIsNeutral(t *testing.T) {
	svc, store := newPerfFixture(t, failingPrices{})
	addPastPurchase(t, store, "PETR4", 21, 100, 10)

	points, err := svc.Series(context.Background(), "p1", BucketWeekly)
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, point := range points {
		assert.True(t, point.PercentualGain.IsZero(),
			"bucket %s: expected neutral gain, got %s", point.Label, point.PercentualGain)
	}
}

func TestSeriesZeroCostBasis(t *testing.T) {
	// Shares acquired for free: cost basis stays zero and the gain is
	// reported as zero instead of dividing by it.
	svc, store := newPerfFixture(t, staticPrices{price: decimal.NewFromInt(5)})
	addPastPurchase(t, store, "BONUS3", 14, 100, 0)

	points, err := svc.Series(context.Background(), "p1", BucketWeekly)
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, point := range points {
		assert.True(t, point.PercentualGain.IsZero(),
			"bucket %s: expected 0, got %s", point.Label, point.PercentualGain)
	}
}

func TestSeriesLabelsAreDates(t *testing.T) {
	svc, store := newPerfFixture(t, staticPrices{price: decimal.NewFromInt(10)})
	addPastPurchase(t, store, "PETR4", 40, 10, 10)

	points, err := svc.Series(context.Background(), "p1", BucketMonthly)
	require.NoError(t, err)
	require.NotEmpty(t, points)
	for _, point := range points {
		parsed, err := time.Parse("2006-01-02", point.Label)
		require.NoError(t, err)
		next := parsed.AddDate(0, 0, 1)
		assert.NotEqual(t, parsed.Month(), next.Month(), "monthly label %s is not a month end", point.Label)
	}
}
