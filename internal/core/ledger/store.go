package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yusufabdi/payledger/internal/core/domain"
)

// NewTransaction is the data for one audit record before the store assigns
// its id and timestamp.
type NewTransaction struct {
	AccountID            uuid.UUID
	Kind                 domain.Kind
	Amount               decimal.Decimal
	Comment              string
	RelatedTransactionID *int64
}

// StoreTx is the set of store operations available inside one atomic unit of
// work. Everything done through it commits with the unit or not at all.
type StoreTx interface {
	// GetOrCreateBalance returns the balance row for the account, creating it
	// at zero if absent. Two concurrent calls for the same fresh account must
	// not produce two rows. The row is locked for the rest of the unit.
	GetOrCreateBalance(ctx context.Context, accountID uuid.UUID) (domain.Balance, error)

	// GetBalanceForUpdate reads and locks the balance row.
	// Returns domain.ErrNoBalanceRecord when the account has no row.
	GetBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (domain.Balance, error)

	// ApplyDelta atomically adds delta (which may be negative) to the stored
	// balance and returns the new value. If the result would be negative it
	// returns a domain.InsufficientFundsError and leaves the row untouched.
	// Two concurrent deltas on the same account never lose an update.
	ApplyDelta(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)

	// AppendTransaction appends one immutable record and assigns its id.
	AppendTransaction(ctx context.Context, rec NewTransaction) (domain.Transaction, error)

	// LinkTransactions back-fills the two legs of a transfer so each record's
	// related_transaction_id points at the other.
	LinkTransactions(ctx context.Context, outID, inID int64) error

	// EnqueueEvent stages a notification event that becomes visible to the
	// delivery worker only when the unit commits.
	EnqueueEvent(ctx context.Context, eventType string, payload any) error
}

// Store is durable, concurrency-safe storage for balances and transaction
// records.
type Store interface {
	// Atomic runs fn inside one atomic unit of work with a bounded timeout.
	// The unit commits only when fn returns nil; any error, including a
	// timeout, rolls back every store call made through the StoreTx.
	Atomic(ctx context.Context, fn func(StoreTx) error) error

	// GetBalance is a pure read outside any unit.
	// Returns domain.ErrNoBalanceRecord when the account has no row.
	GetBalance(ctx context.Context, accountID uuid.UUID) (domain.Balance, error)

	// ListTransactions returns up to limit records for one account, newest
	// first.
	ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error)
}
