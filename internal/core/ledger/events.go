package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types staged on the outbox by committed ledger operations.
const (
	EventDeposited   = "balance.deposited"
	EventWithdrawn   = "balance.withdrawn"
	EventTransferred = "balance.transferred"
)

type depositEvent struct {
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID int64           `json:"transaction_id"`
}

type withdrawEvent struct {
	AccountID     uuid.UUID       `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	TransactionID int64           `json:"transaction_id"`
}

type transferEvent struct {
	FromAccountID    uuid.UUID       `json:"from_account_id"`
	ToAccountID      uuid.UUID       `json:"to_account_id"`
	Amount           decimal.Decimal `json:"amount"`
	OutTransactionID int64           `json:"out_transaction_id"`
	InTransactionID  int64           `json:"in_transaction_id"`
}
