package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an event, portfolio, broker or position
// does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a malformed event before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// ReferenceError rejects an event referencing an unknown portfolio or
// broker at ingestion.
type ReferenceError struct {
	Entity string // "portfolio" or "broker"
	ID     string
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Entity, e.ID)
}

// InsufficientQuantityError reports a sale that would drive a scope's
// quantity negative. It is a data-integrity condition: the scope is
// flagged inconsistent, other scopes are unaffected.
type InsufficientQuantityError struct {
	EventID     string
	PortfolioID string
	Symbol      string
	Held        decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientQuantityError) Error() string {
	return fmt.Sprintf("event %s: sale of %s %s exceeds held quantity %s in portfolio %s",
		e.EventID, e.Requested, e.Symbol, e.Held, e.PortfolioID)
}

// StoreError wraps a transient storage failure. The engine performs no
// retries; callers decide whether to retry.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
