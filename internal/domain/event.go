package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OperationKind is the direction of a stock operation.
type OperationKind string

const (
	OperationPurchase OperationKind = "purchase"
	OperationSale     OperationKind = "sale"
)

// SplitKind distinguishes forward splits from reverse splits. The factor
// is always a multiplier greater than one: a forward split multiplies the
// share count by the factor, a reverse split divides it.
type SplitKind string

const (
	SplitForward SplitKind = "split"
	SplitReverse SplitKind = "reverse-split"
)

const (
	eventTypeStockOperation = "stock-operation"
	eventTypeStockSplit     = "stock-split"
)

// EventDetail is the variant part of an Event.
type EventDetail interface {
	EventType() string
	PortfolioIDs() []string
	Validate() error
}

// Event is one entry of the append-only wallet log. Events are ordered by
// (Time, Sequence); Sequence is assigned by the store at append time and
// breaks ties between events carrying the same timestamp.
type Event struct {
	ID       string
	Sequence int64
	Symbol   string
	Time     time.Time
	Detail   EventDetail
}

// AppliesTo reports whether the event participates in the given
// portfolio's positions.
func (e *Event) AppliesTo(portfolioID string) bool {
	if e.Detail == nil {
		return false
	}
	for _, id := range e.Detail.PortfolioIDs() {
		if id == portfolioID {
			return true
		}
	}
	return false
}

// Validate checks the event envelope and its detail.
func (e *Event) Validate() error {
	if e.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if e.Time.IsZero() {
		return &ValidationError{Field: "time", Reason: "must be an absolute timestamp"}
	}
	if e.Detail == nil {
		return &ValidationError{Field: "detail", Reason: "must be present"}
	}
	return e.Detail.Validate()
}

// StockOperation is a purchase or sale of shares.
type StockOperation struct {
	Kind       OperationKind   `json:"type"`
	Portfolios []string        `json:"portfolios"`
	Broker     string          `json:"broker"`
	Quantity   decimal.Decimal `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Fees       decimal.Decimal `json:"fees"`
}

func (o StockOperation) EventType() string      { return eventTypeStockOperation }
func (o StockOperation) PortfolioIDs() []string { return o.Portfolios }

func (o StockOperation) Validate() error {
	if o.Kind != OperationPurchase && o.Kind != OperationSale {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown operation kind %q", o.Kind)}
	}
	if len(o.Portfolios) == 0 {
		return &ValidationError{Field: "portfolios", Reason: "must not be empty"}
	}
	if o.Broker == "" {
		return &ValidationError{Field: "broker", Reason: "must not be empty"}
	}
	if !o.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Reason: "must be positive"}
	}
	if o.Price.IsNegative() {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if o.Fees.IsNegative() {
		return &ValidationError{Field: "fees", Reason: "must not be negative"}
	}
	return nil
}

// StockSplit is a forward or reverse share split.
type StockSplit struct {
	Kind       SplitKind       `json:"type"`
	Portfolios []string        `json:"portfolios"`
	Factor     decimal.Decimal `json:"factor"`
}

func (s StockSplit) EventType() string      { return eventTypeStockSplit }
func (s StockSplit) PortfolioIDs() []string { return s.Portfolios }

func (s StockSplit) Validate() error {
	if s.Kind != SplitForward && s.Kind != SplitReverse {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown split kind %q", s.Kind)}
	}
	if len(s.Portfolios) == 0 {
		return &ValidationError{Field: "portfolios", Reason: "must not be empty"}
	}
	if !s.Factor.IsPositive() {
		return &ValidationError{Field: "factor", Reason: "must be positive"}
	}
	return nil
}

// eventEnvelope is the wire form of an Event: the variant is carried as
// an eventType discriminator next to an opaque detail object.
type eventEnvelope struct {
	ID        string          `json:"id,omitempty"`
	Sequence  int64           `json:"sequence,omitempty"`
	Symbol    string          `json:"symbol"`
	Time      time.Time       `json:"time"`
	EventType string          `json:"eventType"`
	Detail    json.RawMessage `json:"detail"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Detail == nil {
		return nil, &ValidationError{Field: "detail", Reason: "must be present"}
	}
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return nil, err
	}
	return json.Marshal(eventEnvelope{
		ID:        e.ID,
		Sequence:  e.Sequence,
		Symbol:    e.Symbol,
		Time:      e.Time,
		EventType: e.Detail.EventType(),
		Detail:    detail,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	detail, err := UnmarshalEventDetail(env.EventType, env.Detail)
	if err != nil {
		return err
	}

	e.ID = env.ID
	e.Sequence = env.Sequence
	e.Symbol = env.Symbol
	e.Time = env.Time
	e.Detail = detail
	return nil
}

// UnmarshalEventDetail decodes the variant part of an event given its
// eventType discriminator.
func UnmarshalEventDetail(eventType string, data []byte) (EventDetail, error) {
	switch eventType {
	case eventTypeStockOperation:
		var op StockOperation
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, err
		}
		return op, nil
	case eventTypeStockSplit:
		var sp StockSplit
		if err := json.Unmarshal(data, &sp); err != nil {
			return nil, err
		}
		return sp, nil
	default:
		return nil, &ValidationError{Field: "eventType", Reason: fmt.Sprintf("unknown event type %q", eventType)}
	}
}
