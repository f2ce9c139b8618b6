// Package storage provides the Store implementations behind the ledger:
// a postgres one for real deployments and an in-memory one for tests and
// database-less development runs.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/yusufabdi/payledger/internal/core/domain"
	"github.com/yusufabdi/payledger/internal/core/ledger"
)

const defaultOperationTimeout = 5 * time.Second

// LedgerStore implements ledger.Store on postgres. Each atomic unit is one
// database transaction bounded by the configured timeout; a timeout rolls the
// whole unit back.
type LedgerStore struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

func NewLedgerStore(db *pgxpool.Pool, timeout time.Duration) *LedgerStore {
	if timeout <= 0 {
		timeout = defaultOperationTimeout
	}

	return &LedgerStore{db: db, timeout: timeout}
}

func (s *LedgerStore) Atomic(ctx context.Context, fn func(ledger.StoreTx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit: %w", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, rbErr)
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("commit unit: %w", commitErr)
		}
	}()

	return fn(&ledgerTx{tx: tx})
}

func (s *LedgerStore) GetBalance(ctx context.Context, accountID uuid.UUID) (domain.Balance, error) {
	return scanBalance(s.db.QueryRow(ctx,
		`SELECT account_id, balance, created_at, updated_at FROM balances WHERE account_id = $1`,
		accountID))
}

func (s *LedgerStore) ListTransactions(ctx context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, kind, amount, comment, related_transaction_id, created_at
		FROM transactions
		WHERE account_id = $1
		ORDER BY id DESC
		LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var recs []domain.Transaction

	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}

		recs = append(recs, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return recs, nil
}

// ledgerTx runs the store operations of one atomic unit on a pgx transaction.
type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) GetOrCreateBalance(ctx context.Context, accountID uuid.UUID) (domain.Balance, error) {
	// ON CONFLICT DO NOTHING keeps two concurrent first-deposits from racing;
	// the locking read below works for both the fresh and the existing row.
	_, err := t.tx.Exec(ctx,
		`INSERT INTO balances (account_id, balance) VALUES ($1, 0) ON CONFLICT (account_id) DO NOTHING`,
		accountID)
	if err != nil {
		return domain.Balance{}, fmt.Errorf("create balance: %w", err)
	}

	return t.GetBalanceForUpdate(ctx, accountID)
}

func (t *ledgerTx) GetBalanceForUpdate(ctx context.Context, accountID uuid.UUID) (domain.Balance, error) {
	return scanBalance(t.tx.QueryRow(ctx,
		`SELECT account_id, balance, created_at, updated_at FROM balances WHERE account_id = $1 FOR UPDATE`,
		accountID))
}

func (t *ledgerTx) ApplyDelta(ctx context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	// One conditional update, not read-then-write: concurrent deltas on the
	// same account cannot lose an update whatever the isolation level.
	var newBalance decimal.Decimal

	err := t.tx.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance + $1, updated_at = now()
		WHERE account_id = $2 AND balance + $1 >= 0
		RETURNING balance`, delta, accountID).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("apply delta: %w", err)
	}

	// No row updated: the account is either missing or short of funds.
	var current decimal.Decimal

	err = t.tx.QueryRow(ctx, `SELECT balance FROM balances WHERE account_id = $1`, accountID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return decimal.Zero, domain.ErrNoBalanceRecord
	}

	if err != nil {
		return decimal.Zero, fmt.Errorf("apply delta: %w", err)
	}

	return decimal.Zero, &domain.InsufficientFundsError{Current: current, Requested: delta.Neg()}
}

func (t *ledgerTx) AppendTransaction(ctx context.Context, rec ledger.NewTransaction) (domain.Transaction, error) {
	row := t.tx.QueryRow(ctx, `
		INSERT INTO transactions (account_id, kind, amount, comment, related_transaction_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, account_id, kind, amount, comment, related_transaction_id, created_at`,
		rec.AccountID, rec.Kind, rec.Amount, rec.Comment, rec.RelatedTransactionID)

	out, err := scanTransaction(row)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}

	return out, nil
}

func (t *ledgerTx) LinkTransactions(ctx context.Context, outID, inID int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE transactions
		SET related_transaction_id = CASE id WHEN $1 THEN $2::bigint ELSE $1::bigint END
		WHERE id IN ($1, $2)`, outID, inID)
	if err != nil {
		return fmt.Errorf("link transactions: %w", err)
	}

	if tag.RowsAffected() != 2 {
		return fmt.Errorf("link transactions: expected 2 rows, updated %d", tag.RowsAffected())
	}

	return nil
}

func (t *ledgerTx) EnqueueEvent(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	_, err = t.tx.Exec(ctx,
		`INSERT INTO ledger_events (event_type, payload) VALUES ($1, $2)`,
		eventType, body)
	if err != nil {
		return fmt.Errorf("enqueue event: %w", err)
	}

	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBalance(row scannable) (domain.Balance, error) {
	var bal domain.Balance

	err := row.Scan(&bal.AccountID, &bal.Balance, &bal.CreatedAt, &bal.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Balance{}, domain.ErrNoBalanceRecord
	}

	if err != nil {
		return domain.Balance{}, fmt.Errorf("scan balance: %w", err)
	}

	return bal, nil
}

func scanTransaction(row scannable) (domain.Transaction, error) {
	var (
		rec     domain.Transaction
		comment *string
	)

	err := row.Scan(&rec.ID, &rec.AccountID, &rec.Kind, &rec.Amount, &comment,
		&rec.RelatedTransactionID, &rec.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}

	if comment != nil {
		rec.Comment = *comment
	}

	return rec, nil
}
