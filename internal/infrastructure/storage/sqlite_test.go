package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwallet/backend/internal/domain"
)

func newTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "wallet_test.db"))
	require.NoError(t, err)
	return store
}

func TestSQLiteEventRoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ev := &domain.Event{
		ID:     "ev-1",
		Symbol: "PETR4",
		Time:   at,
		Detail: domain.StockOperation{
			Kind:       domain.OperationPurchase,
			Portfolios: []string{"p1", "p2"},
			Broker:     "b1",
			Quantity:   decimal.NewFromFloat(100.5),
			Price:      decimal.NewFromFloat(10.33),
			Fees:       decimal.NewFromFloat(4.90),
		},
	}
	_, err := store.Append(ctx, ev)
	require.NoError(t, err)
	assert.NotZero(t, ev.Sequence, "append assigns the sequence")

	got, err := store.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, ev.Sequence, got.Sequence)
	assert.True(t, got.Time.Equal(at))

	op, ok := got.Detail.(domain.StockOperation)
	require.True(t, ok)
	assert.Equal(t, []string{"p1", "p2"}, op.Portfolios)
	assert.True(t, op.Quantity.Equal(decimal.NewFromFloat(100.5)))
	assert.True(t, op.Price.Equal(decimal.NewFromFloat(10.33)))
	assert.True(t, op.Fees.Equal(decimal.NewFromFloat(4.90)))
}

func TestSQLiteSplitRoundTrip(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	ev := &domain.Event{
		ID:     "sp-1",
		Symbol: "MGLU3",
		Time:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Detail: domain.StockSplit{
			Kind:       domain.SplitReverse,
			Portfolios: []string{"p1"},
			Factor:     decimal.NewFromInt(8),
		},
	}
	_, err := store.Append(ctx, ev)
	require.NoError(t, err)

	got, err := store.Get(ctx, "sp-1")
	require.NoError(t, err)
	sp, ok := got.Detail.(domain.StockSplit)
	require.True(t, ok)
	assert.Equal(t, domain.SplitReverse, sp.Kind)
	assert.True(t, sp.Factor.Equal(decimal.NewFromInt(8)))
}

func TestSQLiteOrderingAndScope(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, testEvent("late", "PETR4", base.Add(time.Hour), "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("tied-first", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("tied-second", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("other-scope", "PETR4", base, "p2"))
	require.NoError(t, err)

	events, err := store.ListOrdered(ctx, domain.Scope{Symbol: "PETR4", Portfolio: "p1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "tied-first", events[0].ID)
	assert.Equal(t, "tied-second", events[1].ID)
	assert.Equal(t, "late", events[2].ID)
}

func TestSQLiteUpdateKeepsSequence(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ev := testEvent("ev-1", "PETR4", base, "p1")
	_, err := store.Append(ctx, ev)
	require.NoError(t, err)

	updated := testEvent("ev-1", "VALE3", base.Add(time.Hour), "p1")
	require.NoError(t, store.Update(ctx, "ev-1", updated))

	got, err := store.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, ev.Sequence, got.Sequence)
	assert.Equal(t, "VALE3", got.Symbol)

	assert.ErrorIs(t, store.Update(ctx, "missing", updated), domain.ErrNotFound)
}

func TestSQLiteRemoveAndNotFound(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = store.Append(ctx, testEvent("ev-1", "PETR4", time.Now().UTC(), "p1"))
	require.NoError(t, err)

	removed, err := store.Remove(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "ev-1", removed.ID)

	_, err = store.Get(ctx, "ev-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSQLiteDistinctSymbols(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, testEvent("a", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("b", "VALE3", base, "p2"))
	require.NoError(t, err)

	symbols, err := store.DistinctSymbols(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"PETR4"}, symbols)
}

func TestSQLiteReferenceRepositories(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.SavePortfolio(ctx, &domain.Portfolio{ID: "p1", Name: "main"}))
	require.NoError(t, store.SaveBroker(ctx, &domain.Broker{ID: "b1", Name: "Clear", CNPJ: "00.000.000/0001-00"}))

	// Save is an upsert.
	require.NoError(t, store.SavePortfolio(ctx, &domain.Portfolio{ID: "p1", Name: "renamed"}))
	p, err := store.GetPortfolio(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", p.Name)

	brokers, err := store.ListBrokers(ctx)
	require.NoError(t, err)
	require.Len(t, brokers, 1)
	assert.Equal(t, "00.000.000/0001-00", brokers[0].CNPJ)

	ok, err := store.BrokerExists(ctx, "b1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.DeleteBroker(ctx, "b1"))
	ok, err = store.BrokerExists(ctx, "b1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteAssetDays(t *testing.T) {
	store := newTestSQLite(t)
	ctx := context.Background()
	day1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	days := []domain.AssetDay{
		{Symbol: "PETR4", Time: day1, Open: decimal.NewFromInt(9), High: decimal.NewFromInt(11), Low: decimal.NewFromInt(9), Close: decimal.NewFromInt(10), Volume: 1000},
		{Symbol: "PETR4", Time: day2, Open: decimal.NewFromInt(10), High: decimal.NewFromInt(12), Low: decimal.NewFromInt(10), Close: decimal.NewFromInt(11), Volume: 1100},
	}
	require.NoError(t, store.SaveAssetDays(ctx, days))

	last, err := store.LastAssetDay(ctx, "PETR4")
	require.NoError(t, err)
	assert.True(t, last.Close.Equal(decimal.NewFromInt(11)))

	before, err := store.LastAssetDayBefore(ctx, "PETR4", day1.Add(12*time.Hour))
	require.NoError(t, err)
	assert.True(t, before.Close.Equal(decimal.NewFromInt(10)))
	assert.EqualValues(t, 1000, before.Volume)

	_, err = store.LastAssetDayBefore(ctx, "GHOST", day2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
