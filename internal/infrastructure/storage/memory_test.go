package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwallet/backend/internal/domain"
)

func testEvent(id, symbol string, at time.Time, portfolios ...string) *domain.Event {
	return &domain.Event{
		ID:     id,
		Symbol: symbol,
		Time:   at,
		Detail: domain.StockOperation{
			Kind:       domain.OperationPurchase,
			Portfolios: portfolios,
			Broker:     "b1",
			Quantity:   decimal.NewFromInt(10),
			Price:      decimal.NewFromInt(5),
		},
	}
}

func TestMemoryStoreOrdering(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// Appended out of chronological order; two events share a timestamp
	// so the store-assigned sequence breaks the tie.
	_, err := store.Append(ctx, testEvent("late", "PETR4", base.Add(time.Hour), "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("tied-first", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("tied-second", "PETR4", base, "p1"))
	require.NoError(t, err)

	events, err := store.ListOrdered(ctx, domain.Scope{Symbol: "PETR4", Portfolio: "p1"})
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "tied-first", events[0].ID)
	assert.Equal(t, "tied-second", events[1].ID)
	assert.Equal(t, "late", events[2].ID)
}

func TestMemoryStoreScopeFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, testEvent("a", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("b", "PETR4", base, "p2"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("c", "VALE3", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("d", "PETR4", base, "p1", "p2"))
	require.NoError(t, err)

	events, err := store.ListOrdered(ctx, domain.Scope{Symbol: "PETR4", Portfolio: "p1"})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "a", events[0].ID)
	assert.Equal(t, "d", events[1].ID)

	// An empty portfolio matches every event of the symbol.
	events, err = store.ListOrdered(ctx, domain.Scope{Symbol: "PETR4"})
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestMemoryStoreListHandsOutCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, testEvent("ev-1", "PETR4", base, "p1"))
	require.NoError(t, err)

	listed, err := store.ListOrdered(ctx, domain.Scope{Symbol: "PETR4"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	listed[0].Symbol = "MUTATED"

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "PETR4", all[0].Symbol, "caller mutation must not reach the store")
	all[0].Symbol = "MUTATED"

	got, err := store.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", got.Symbol)
}

func TestMemoryStoreUpdateKeepsSequence(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ev := testEvent("ev-1", "PETR4", base, "p1")
	_, err := store.Append(ctx, ev)
	require.NoError(t, err)
	originalSeq := ev.Sequence

	updated := testEvent("ev-1", "PETR4", base, "p1", "p2")
	require.NoError(t, store.Update(ctx, "ev-1", updated))

	got, err := store.Get(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, originalSeq, got.Sequence)
	assert.True(t, got.AppliesTo("p2"))

	err = store.Update(ctx, "missing", updated)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoreRemove(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Append(ctx, testEvent("ev-1", "PETR4", time.Now(), "p1"))
	require.NoError(t, err)

	removed, err := store.Remove(ctx, "ev-1")
	require.NoError(t, err)
	assert.Equal(t, "ev-1", removed.ID)

	_, err = store.Get(ctx, "ev-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.Remove(ctx, "ev-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoreDistinctSymbols(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_, err := store.Append(ctx, testEvent("a", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("b", "PETR4", base, "p1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testEvent("c", "VALE3", base, "p2"))
	require.NoError(t, err)

	symbols, err := store.DistinctSymbols(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"PETR4"}, symbols)

	symbols, err = store.DistinctSymbols(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"PETR4", "VALE3"}, symbols)
}

func TestMemoryStoreReferenceRepositories(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SavePortfolio(ctx, &domain.Portfolio{ID: "p1", Name: "main"}))
	require.NoError(t, store.SaveBroker(ctx, &domain.Broker{ID: "b1", Name: "Clear", CNPJ: "00.000.000/0001-00"}))

	ok, err := store.PortfolioExists(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.BrokerExists(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok)

	p, err := store.GetPortfolio(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "main", p.Name)

	require.NoError(t, store.DeletePortfolio(ctx, "p1"))
	_, err = store.GetPortfolio(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryStoreAssetDays(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	day1 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	days := []domain.AssetDay{
		{Symbol: "PETR4", Time: day2, Close: decimal.NewFromInt(11)},
		{Symbol: "PETR4", Time: day1, Close: decimal.NewFromInt(10)},
	}
	require.NoError(t, store.SaveAssetDays(ctx, days))

	last, err := store.LastAssetDay(ctx, "PETR4")
	require.NoError(t, err)
	assert.True(t, last.Time.Equal(day2))

	before, err := store.LastAssetDayBefore(ctx, "PETR4", day1.Add(12*time.Hour))
	require.NoError(t, err)
	assert.True(t, before.Close.Equal(decimal.NewFromInt(10)))

	_, err = store.LastAssetDayBefore(ctx, "PETR4", day1.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = store.LastAssetDay(ctx, "GHOST")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
