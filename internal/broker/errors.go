package broker

import "errors"

var (
	// ErrPriceUnavailable means no quote could be produced for the symbol;
	// callers skip the symbol for the current tick.
	ErrPriceUnavailable = errors.New("price unavailable")

	// ErrOrderRejected means the order failed validation or execution.
	ErrOrderRejected = errors.New("order rejected")

	// ErrNoPosition means an exit was requested for a symbol with no open
	// position.
	ErrNoPosition = errors.New("no open position")
)
