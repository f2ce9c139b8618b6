package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yusufabdi/payledger/internal/core/domain"
	"github.com/yusufabdi/payledger/internal/core/ledger"
)

// MemoryEvent is one staged notification event in the in-memory store.
type MemoryEvent struct {
	Type    string
	Payload any
}

// MemoryStore implements ledger.Store entirely in process memory. One mutex
// serializes atomic units; each unit works on a private copy of the state
// that replaces the live one only on commit, so a failed unit leaves nothing
// behind. It backs the test suite and DATABASE_URL-less development runs.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
}

type memoryState struct {
	balances map[uuid.UUID]domain.Balance
	records  []domain.Transaction
	events   []MemoryEvent
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: memoryState{balances: make(map[uuid.UUID]domain.Balance)}}
}

func (s *MemoryStore) Atomic(ctx context.Context, fn func(ledger.StoreTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	next := s.state.clone()

	if err := fn(&memoryTx{state: &next}); err != nil {
		return err
	}

	// A context that expired while fn ran aborts the commit; the copy is
	// simply discarded, matching a rolled-back database transaction.
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = next

	return nil
}

func (s *MemoryStore) GetBalance(_ context.Context, accountID uuid.UUID) (domain.Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal, ok := s.state.balances[accountID]
	if !ok {
		return domain.Balance{}, domain.ErrNoBalanceRecord
	}

	return bal, nil
}

func (s *MemoryStore) ListTransactions(_ context.Context, accountID uuid.UUID, limit int) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []domain.Transaction

	for i := len(s.state.records) - 1; i >= 0 && len(recs) < limit; i-- {
		if s.state.records[i].AccountID == accountID {
			recs = append(recs, s.state.records[i])
		}
	}

	return recs, nil
}

// Events returns a copy of every staged event, oldest first.
func (s *MemoryStore) Events() []MemoryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]MemoryEvent(nil), s.state.events...)
}

func (st memoryState) clone() memoryState {
	balances := make(map[uuid.UUID]domain.Balance, len(st.balances))
	for id, bal := range st.balances {
		balances[id] = bal
	}

	return memoryState{
		balances: balances,
		records:  append([]domain.Transaction(nil), st.records...),
		events:   append([]MemoryEvent(nil), st.events...),
		nextID:   st.nextID,
	}
}

// memoryTx mutates the unit's private state copy. The store mutex is held for
// the whole unit, so no further locking is needed here.
type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) GetOrCreateBalance(_ context.Context, accountID uuid.UUID) (domain.Balance, error) {
	if bal, ok := t.state.balances[accountID]; ok {
		return bal, nil
	}

	now := time.Now()
	bal := domain.Balance{AccountID: accountID, Balance: decimal.Zero, CreatedAt: now, UpdatedAt: now}
	t.state.balances[accountID] = bal

	return bal, nil
}

func (t *memoryTx) GetBalanceForUpdate(_ context.Context, accountID uuid.UUID) (domain.Balance, error) {
	bal, ok := t.state.balances[accountID]
	if !ok {
		return domain.Balance{}, domain.ErrNoBalanceRecord
	}

	return bal, nil
}

func (t *memoryTx) ApplyDelta(_ context.Context, accountID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	bal, ok := t.state.balances[accountID]
	if !ok {
		return decimal.Zero, domain.ErrNoBalanceRecord
	}

	next := bal.Balance.Add(delta)
	if next.IsNegative() {
		return decimal.Zero, &domain.InsufficientFundsError{Current: bal.Balance, Requested: delta.Neg()}
	}

	bal.Balance = next
	bal.UpdatedAt = time.Now()
	t.state.balances[accountID] = bal

	return next, nil
}

func (t *memoryTx) AppendTransaction(_ context.Context, rec ledger.NewTransaction) (domain.Transaction, error) {
	t.state.nextID++

	out := domain.Transaction{
		ID:                   t.state.nextID,
		AccountID:            rec.AccountID,
		Kind:                 rec.Kind,
		Amount:               rec.Amount,
		Comment:              rec.Comment,
		RelatedTransactionID: rec.RelatedTransactionID,
		CreatedAt:            time.Now(),
	}
	t.state.records = append(t.state.records, out)

	return out, nil
}

func (t *memoryTx) LinkTransactions(_ context.Context, outID, inID int64) error {
	linked := 0

	for i := range t.state.records {
		switch t.state.records[i].ID {
		case outID:
			related := inID
			t.state.records[i].RelatedTransactionID = &related
			linked++
		case inID:
			related := outID
			t.state.records[i].RelatedTransactionID = &related
			linked++
		}
	}

	if linked != 2 {
		return fmt.Errorf("link transactions: records %d and %d not both present", outID, inID)
	}

	return nil
}

func (t *memoryTx) EnqueueEvent(_ context.Context, eventType string, payload any) error {
	t.state.events = append(t.state.events, MemoryEvent{Type: eventType, Payload: payload})
	return nil
}
