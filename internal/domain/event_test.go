package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOperation() StockOperation {
	return StockOperation{
		Kind:       OperationPurchase,
		Portfolios: []string{"p1"},
		Broker:     "b1",
		Quantity:   decimal.NewFromInt(100),
		Price:      decimal.NewFromFloat(10.50),
		Fees:       decimal.NewFromFloat(4.90),
	}
}

func TestEventValidate(t *testing.T) {
	base := Event{
		Symbol: "PETR4",
		Time:   time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
		Detail: validOperation(),
	}
	require.NoError(t, base.Validate())

	var verr *ValidationError

	noSymbol := base
	noSymbol.Symbol = ""
	require.ErrorAs(t, noSymbol.Validate(), &verr)
	assert.Equal(t, "symbol", verr.Field)

	noTime := base
	noTime.Time = time.Time{}
	require.ErrorAs(t, noTime.Validate(), &verr)
	assert.Equal(t, "time", verr.Field)

	noDetail := base
	noDetail.Detail = nil
	require.ErrorAs(t, noDetail.Validate(), &verr)
	assert.Equal(t, "detail", verr.Field)
}

func TestStockOperationValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*StockOperation)
		field  string
	}{
		{"unknown kind", func(o *StockOperation) { o.Kind = "transfer" }, "type"},
		{"no portfolios", func(o *StockOperation) { o.Portfolios = nil }, "portfolios"},
		{"no broker", func(o *StockOperation) { o.Broker = "" }, "broker"},
		{"zero quantity", func(o *StockOperation) { o.Quantity = decimal.Zero }, "quantity"},
		{"negative quantity", func(o *StockOperation) { o.Quantity = decimal.NewFromInt(-1) }, "quantity"},
		{"negative price", func(o *StockOperation) { o.Price = decimal.NewFromInt(-1) }, "price"},
		{"negative fees", func(o *StockOperation) { o.Fees = decimal.NewFromInt(-1) }, "fees"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op := validOperation()
			tc.mutate(&op)
			var verr *ValidationError
			require.ErrorAs(t, op.Validate(), &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	// A free purchase (price zero) is allowed, only negatives are not.
	op := validOperation()
	op.Price = decimal.Zero
	assert.NoError(t, op.Validate())
}

func TestStockSplitValidate(t *testing.T) {
	sp := StockSplit{
		Kind:       SplitForward,
		Portfolios: []string{"p1"},
		Factor:     decimal.NewFromInt(2),
	}
	require.NoError(t, sp.Validate())

	var verr *ValidationError

	sp.Factor = decimal.Zero
	require.ErrorAs(t, sp.Validate(), &verr)
	assert.Equal(t, "factor", verr.Field)

	sp.Factor = decimal.NewFromInt(2)
	sp.Kind = "merge"
	require.ErrorAs(t, sp.Validate(), &verr)
	assert.Equal(t, "type", verr.Field)
}

func TestEventJSONRoundTrip(t *testing.T) {
	ev := Event{
		ID:       "ev-1",
		Sequence: 7,
		Symbol:   "PETR4",
		Time:     time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC),
		Detail:   validOperation(),
	}

	data, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"eventType":"stock-operation"`)

	var back Event
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.Sequence, back.Sequence)
	assert.True(t, ev.Time.Equal(back.Time))

	op, ok := back.Detail.(StockOperation)
	require.True(t, ok)
	assert.Equal(t, OperationPurchase, op.Kind)
	assert.True(t, op.Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, op.Fees.Equal(decimal.NewFromFloat(4.90)))
}

func TestEventJSONUnknownType(t *testing.T) {
	raw := `{"symbol":"PETR4","time":"2024-03-01T14:00:00Z","eventType":"dividend","detail":{}}`
	var ev Event
	err := json.Unmarshal([]byte(raw), &ev)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "eventType", verr.Field)
}

func TestAppliesTo(t *testing.T) {
	ev := Event{Symbol: "PETR4", Detail: StockOperation{Portfolios: []string{"a", "b"}}}
	assert.True(t, ev.AppliesTo("a"))
	assert.True(t, ev.AppliesTo("b"))
	assert.False(t, ev.AppliesTo("c"))
}
