package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Kind classifies a transaction record. A transfer produces one record of each
// transfer kind, linked to each other; deposit and withdraw records stand alone.
type Kind string

const (
	KindDeposit     Kind = "deposit"
	KindWithdraw    Kind = "withdraw"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

// Balance is the current funds held for one account.
// It is created lazily at zero on the first deposit or transfer-in and is
// only ever mutated inside an atomic unit of work.
type Balance struct {
	AccountID uuid.UUID       `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is one immutable audit entry for a money movement.
// Ids are monotonic. RelatedTransactionID is set only on transfer legs and
// points at the opposite leg.
type Transaction struct {
	ID                   int64           `json:"id"`
	AccountID            uuid.UUID       `json:"account_id"`
	Kind                 Kind            `json:"kind"`
	Amount               decimal.Decimal `json:"amount"`
	Comment              string          `json:"comment,omitempty"`
	RelatedTransactionID *int64          `json:"related_transaction_id,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}
