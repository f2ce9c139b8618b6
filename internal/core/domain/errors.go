// Domain errors come in two channels: rejections (the ledger refused the
// operation and nothing was written) and operation failures (the store or the
// atomic unit itself broke; the unit is rolled back before the error surfaces).
// The HTTP adapter maps rejections to 4xx codes and failures to 500.
package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoBalanceRecord means the account has never received funds.
	// Maps to HTTP 404.
	ErrNoBalanceRecord = errors.New("account has no balance record")

	// ErrInvalidAccountPair means a transfer names the same account on both
	// sides. Rejected before any store access. Maps to HTTP 422.
	ErrInvalidAccountPair = errors.New("cannot transfer to the same account")

	// ErrInvalidAmount means the amount is not positive or carries more than
	// two decimal places. Maps to HTTP 422.
	ErrInvalidAmount = errors.New("amount must be positive with at most two decimal places")
)

// InsufficientFundsError is the domain outcome of a withdraw or transfer that
// would drive a balance negative. It carries the state the caller needs to
// decide what to do next. Maps to HTTP 409.
type InsufficientFundsError struct {
	Current   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, requested %s",
		e.Current.StringFixed(AmountScale), e.Requested.StringFixed(AmountScale))
}

// OperationError wraps an infrastructure failure (I/O, timeout, constraint
// violation) inside one ledger operation. The atomic unit is guaranteed rolled
// back by the time this surfaces; nothing is retried internally.
type OperationError struct {
	Op  string
	Err error
}

func (e *OperationError) Error() string { return e.Op + " failed: " + e.Err.Error() }

func (e *OperationError) Unwrap() error { return e.Err }

// IsRejection reports whether err is a domain rejection rather than an
// infrastructure failure.
func IsRejection(err error) bool {
	var insufficient *InsufficientFundsError

	return errors.Is(err, ErrNoBalanceRecord) ||
		errors.Is(err, ErrInvalidAccountPair) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.As(err, &insufficient)
}
