// Package ledger implements the balance-mutation engine: deposit, withdraw
// and transfer as all-or-nothing operations against a Store, plus the
// read-only balance and history lookups.
package ledger

import (
	"bytes"
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yusufabdi/payledger/internal/core/domain"
)

// DefaultHistoryLimit caps a history listing when the caller does not ask for
// a specific size.
const DefaultHistoryLimit = 10

// Service performs every money movement as one atomic unit of work.
// It is safe for concurrent use; the Store is the only shared state.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// DepositResult is the outcome of a committed deposit.
type DepositResult struct {
	AccountID       uuid.UUID       `json:"account_id"`
	Balance         decimal.Decimal `json:"balance"`
	DepositedAmount decimal.Decimal `json:"deposited_amount"`
}

// WithdrawResult is the outcome of a committed withdrawal.
type WithdrawResult struct {
	AccountID       uuid.UUID       `json:"account_id"`
	Balance         decimal.Decimal `json:"balance"`
	WithdrawnAmount decimal.Decimal `json:"withdrawn_amount"`
}

// TransferResult is the outcome of a committed transfer.
type TransferResult struct {
	FromAccountID      uuid.UUID       `json:"from_account_id"`
	ToAccountID        uuid.UUID       `json:"to_account_id"`
	Amount             decimal.Decimal `json:"amount"`
	SenderNewBalance   decimal.Decimal `json:"sender_new_balance"`
	ReceiverNewBalance decimal.Decimal `json:"receiver_new_balance"`
}

// Deposit credits amount to the account, creating its balance record at zero
// first if this is the account's first movement.
func (s *Service) Deposit(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, comment string) (*DepositResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var res *DepositResult

	err := s.store.Atomic(ctx, func(tx StoreTx) error {
		if _, err := tx.GetOrCreateBalance(ctx, accountID); err != nil {
			return err
		}

		newBalance, err := tx.ApplyDelta(ctx, accountID, amount)
		if err != nil {
			return err
		}

		rec, err := tx.AppendTransaction(ctx, NewTransaction{
			AccountID: accountID,
			Kind:      domain.KindDeposit,
			Amount:    amount,
			Comment:   comment,
		})
		if err != nil {
			return err
		}

		res = &DepositResult{AccountID: accountID, Balance: newBalance, DepositedAmount: amount}

		return tx.EnqueueEvent(ctx, EventDeposited, depositEvent{
			AccountID:     accountID,
			Amount:        amount,
			Balance:       newBalance,
			TransactionID: rec.ID,
		})
	})
	if err != nil {
		return nil, failure("deposit", err)
	}

	return res, nil
}

// Withdraw debits amount from the account. An account that has never received
// funds is a domain.ErrNoBalanceRecord; a balance smaller than amount is an
// InsufficientFundsError. Both leave the ledger untouched.
func (s *Service) Withdraw(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, comment string) (*WithdrawResult, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var res *WithdrawResult

	err := s.store.Atomic(ctx, func(tx StoreTx) error {
		bal, err := tx.GetBalanceForUpdate(ctx, accountID)
		if err != nil {
			return err
		}

		if bal.Balance.LessThan(amount) {
			return &domain.InsufficientFundsError{Current: bal.Balance, Requested: amount}
		}

		newBalance, err := tx.ApplyDelta(ctx, accountID, amount.Neg())
		if err != nil {
			return err
		}

		rec, err := tx.AppendTransaction(ctx, NewTransaction{
			AccountID: accountID,
			Kind:      domain.KindWithdraw,
			Amount:    amount,
			Comment:   comment,
		})
		if err != nil {
			return err
		}

		res = &WithdrawResult{AccountID: accountID, Balance: newBalance, WithdrawnAmount: amount}

		return tx.EnqueueEvent(ctx, EventWithdrawn, withdrawEvent{
			AccountID:     accountID,
			Amount:        amount,
			Balance:       newBalance,
			TransactionID: rec.ID,
		})
	})
	if err != nil {
		return nil, failure("withdraw", err)
	}

	return res, nil
}

// Transfer moves amount between two distinct accounts. The receiver's balance
// record is created at zero if absent. The sender is always debited before
// the receiver is credited, and both legs of the audit trail reference each
// other once committed.
func (s *Service) Transfer(ctx context.Context, fromID, toID uuid.UUID, amount decimal.Decimal, comment string) (*TransferResult, error) {
	if fromID == toID {
		return nil, domain.ErrInvalidAccountPair
	}

	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var res *TransferResult

	err := s.store.Atomic(ctx, func(tx StoreTx) error {
		// Lock the two balance rows in ascending account-id order, whatever
		// the call order, so crossing transfers cannot deadlock.
		var (
			sender domain.Balance
			err    error
		)

		if accountLess(fromID, toID) {
			if sender, err = tx.GetBalanceForUpdate(ctx, fromID); err != nil {
				return err
			}

			if _, err = tx.GetOrCreateBalance(ctx, toID); err != nil {
				return err
			}
		} else {
			if _, err = tx.GetOrCreateBalance(ctx, toID); err != nil {
				return err
			}

			if sender, err = tx.GetBalanceForUpdate(ctx, fromID); err != nil {
				return err
			}
		}

		if sender.Balance.LessThan(amount) {
			return &domain.InsufficientFundsError{Current: sender.Balance, Requested: amount}
		}

		// Debit before credit: once committed, the ledger sum is conserved at
		// every inspection point.
		senderNew, err := tx.ApplyDelta(ctx, fromID, amount.Neg())
		if err != nil {
			return err
		}

		receiverNew, err := tx.ApplyDelta(ctx, toID, amount)
		if err != nil {
			return err
		}

		outRec, err := tx.AppendTransaction(ctx, NewTransaction{
			AccountID: fromID,
			Kind:      domain.KindTransferOut,
			Amount:    amount,
			Comment:   comment,
		})
		if err != nil {
			return err
		}

		inRec, err := tx.AppendTransaction(ctx, NewTransaction{
			AccountID:            toID,
			Kind:                 domain.KindTransferIn,
			Amount:               amount,
			Comment:              comment,
			RelatedTransactionID: &outRec.ID,
		})
		if err != nil {
			return err
		}

		// Back-fill the out leg. Both writes sit inside the same unit, so a
		// one-sided link is never visible outside it.
		if err := tx.LinkTransactions(ctx, outRec.ID, inRec.ID); err != nil {
			return err
		}

		res = &TransferResult{
			FromAccountID:      fromID,
			ToAccountID:        toID,
			Amount:             amount,
			SenderNewBalance:   senderNew,
			ReceiverNewBalance: receiverNew,
		}

		return tx.EnqueueEvent(ctx, EventTransferred, transferEvent{
			FromAccountID:    fromID,
			ToAccountID:      toID,
			Amount:           amount,
			OutTransactionID: outRec.ID,
			InTransactionID:  inRec.ID,
		})
	})
	if err != nil {
		return nil, failure("transfer", err)
	}

	return res, nil
}

// GetBalance is the read-only balance lookup.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (domain.Balance, error) {
	bal, err := s.store.GetBalance(ctx, accountID)
	if err != nil {
		return domain.Balance{}, failure("get balance", err)
	}

	return bal, nil
}

// GetHistory lists the account's most recent transaction records.
func (s *Service) GetHistory(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	recs, err := s.store.ListTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, failure("get history", err)
	}

	return recs, nil
}

// failure keeps domain rejections on their own channel and wraps everything
// else as an infrastructure failure.
func failure(op string, err error) error {
	if domain.IsRejection(err) {
		return err
	}

	return &domain.OperationError{Op: op, Err: err}
}

func accountLess(a, b uuid.UUID) bool {
	return bytes.Compare(a[:], b[:]) < 0
}
