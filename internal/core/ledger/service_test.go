package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yusufabdi/payledger/internal/adapter/storage"
	"github.com/yusufabdi/payledger/internal/core/domain"
	"github.com/yusufabdi/payledger/internal/core/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newService() (*ledger.Service, *storage.MemoryStore) {
	store := storage.NewMemoryStore()
	return ledger.NewService(store), store
}

func TestDepositCreatesBalanceAndRecord(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	account := uuid.New()

	res, err := svc.Deposit(ctx, account, dec("500.00"), "first deposit")
	require.NoError(t, err)
	require.Equal(t, account, res.AccountID)
	require.True(t, res.Balance.Equal(dec("500.00")), "balance = %s", res.Balance)
	require.True(t, res.DepositedAmount.Equal(dec("500.00")))

	bal, err := svc.GetBalance(ctx, account)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("500.00")))

	history, err := svc.GetHistory(ctx, account, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, domain.KindDeposit, history[0].Kind)
	require.True(t, history[0].Amount.Equal(dec("500.00")))
	require.Equal(t, "first deposit", history[0].Comment)
	require.Nil(t, history[0].RelatedTransactionID)
	require.False(t, history[0].CreatedAt.IsZero())

	events := store.Events()
	require.Len(t, events, 1)
	require.Equal(t, ledger.EventDeposited, events[0].Type)
}

func TestDepositRejectsBadAmounts(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	account := uuid.New()

	for _, amount := range []string{"0", "-10.00", "1.005"} {
		_, err := svc.Deposit(ctx, account, dec(amount), "")
		require.ErrorIs(t, err, domain.ErrInvalidAmount, "amount %s", amount)
	}

	// Nothing was written: the account still has no balance record.
	_, err := svc.GetBalance(ctx, account)
	require.ErrorIs(t, err, domain.ErrNoBalanceRecord)
	require.Empty(t, store.Events())
}

func TestWithdraw(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	account := uuid.New()

	_, err := svc.Deposit(ctx, account, dec("500.00"), "")
	require.NoError(t, err)

	res, err := svc.Withdraw(ctx, account, dec("200.00"), "rent")
	require.NoError(t, err)
	require.True(t, res.Balance.Equal(dec("300.00")), "balance = %s", res.Balance)
	require.True(t, res.WithdrawnAmount.Equal(dec("200.00")))

	history, err := svc.GetHistory(ctx, account, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, domain.KindWithdraw, history[0].Kind)
}

func TestWithdrawInsufficientIsNoOp(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	account := uuid.New()

	_, err := svc.Deposit(ctx, account, dec("100.00"), "")
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, account, dec("200.00"), "")

	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Current.Equal(dec("100.00")), "current = %s", insufficient.Current)
	require.True(t, insufficient.Requested.Equal(dec("200.00")), "requested = %s", insufficient.Requested)

	// Balance and audit trail are untouched.
	bal, err := svc.GetBalance(ctx, account)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("100.00")))

	history, err := svc.GetHistory(ctx, account, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, store.Events(), 1)
}

func TestWithdrawWithoutBalanceRecord(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Withdraw(context.Background(), uuid.New(), dec("10.00"), "")
	require.ErrorIs(t, err, domain.ErrNoBalanceRecord)
}

func TestTransfer(t *testing.T) {
	svc, store := newService()
	ctx := context.Background()
	sender := uuid.New()
	receiver := uuid.New()

	_, err := svc.Deposit(ctx, sender, dec("500.00"), "")
	require.NoError(t, err)

	res, err := svc.Transfer(ctx, sender, receiver, dec("150.00"), "split bill")
	require.NoError(t, err)
	require.True(t, res.SenderNewBalance.Equal(dec("350.00")), "sender = %s", res.SenderNewBalance)
	require.True(t, res.ReceiverNewBalance.Equal(dec("150.00")), "receiver = %s", res.ReceiverNewBalance)
	require.True(t, res.Amount.Equal(dec("150.00")))

	senderBal, err := svc.GetBalance(ctx, sender)
	require.NoError(t, err)
	require.True(t, senderBal.Balance.Equal(dec("350.00")))

	receiverBal, err := svc.GetBalance(ctx, receiver)
	require.NoError(t, err)
	require.True(t, receiverBal.Balance.Equal(dec("150.00")))

	events := store.Events()
	require.Len(t, events, 2)
	require.Equal(t, ledger.EventTransferred, events[1].Type)
}

func TestTransferLegsAreLinked(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	sender := uuid.New()
	receiver := uuid.New()

	_, err := svc.Deposit(ctx, sender, dec("500.00"), "")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, sender, receiver, dec("100.00"), "")
	require.NoError(t, err)

	senderHistory, err := svc.GetHistory(ctx, sender, 10)
	require.NoError(t, err)
	receiverHistory, err := svc.GetHistory(ctx, receiver, 10)
	require.NoError(t, err)

	var out, in *domain.Transaction

	for i := range senderHistory {
		if senderHistory[i].Kind == domain.KindTransferOut {
			out = &senderHistory[i]
		}
	}

	for i := range receiverHistory {
		if receiverHistory[i].Kind == domain.KindTransferIn {
			in = &receiverHistory[i]
		}
	}

	require.NotNil(t, out)
	require.NotNil(t, in)
	require.True(t, out.Amount.Equal(in.Amount))
	require.NotNil(t, out.RelatedTransactionID)
	require.NotNil(t, in.RelatedTransactionID)
	require.Equal(t, in.ID, *out.RelatedTransactionID)
	require.Equal(t, out.ID, *in.RelatedTransactionID)
}

func TestTransferSameAccountRejectedBeforeStoreAccess(t *testing.T) {
	svc, store := newService()
	account := uuid.New()

	_, err := svc.Transfer(context.Background(), account, account, dec("10.00"), "")
	require.ErrorIs(t, err, domain.ErrInvalidAccountPair)

	// Rejected up front: no balance record was created for either side.
	_, err = svc.GetBalance(context.Background(), account)
	require.ErrorIs(t, err, domain.ErrNoBalanceRecord)
	require.Empty(t, store.Events())
}

func TestTransferInsufficientIsNoOp(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	sender := uuid.New()
	receiver := uuid.New()

	_, err := svc.Deposit(ctx, sender, dec("100.00"), "")
	require.NoError(t, err)

	_, err = svc.Transfer(ctx, sender, receiver, dec("200.00"), "")

	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	require.True(t, insufficient.Current.Equal(dec("100.00")))
	require.True(t, insufficient.Requested.Equal(dec("200.00")))

	bal, err := svc.GetBalance(ctx, sender)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("100.00")))

	// The aborted unit must not leave a receiver balance record behind.
	_, err = svc.GetBalance(ctx, receiver)
	require.ErrorIs(t, err, domain.ErrNoBalanceRecord)
}

func TestTransferWithoutSenderRecord(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Transfer(context.Background(), uuid.New(), uuid.New(), dec("10.00"), "")
	require.ErrorIs(t, err, domain.ErrNoBalanceRecord)
}

func TestGetBalanceIsIdempotent(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	account := uuid.New()

	_, err := svc.Deposit(ctx, account, dec("350.00"), "")
	require.NoError(t, err)

	first, err := svc.GetBalance(ctx, account)
	require.NoError(t, err)
	second, err := svc.GetBalance(ctx, account)
	require.NoError(t, err)
	require.True(t, first.Balance.Equal(second.Balance))
	require.Equal(t, first.UpdatedAt, second.UpdatedAt)
}

func TestGetBalanceUnknownAccount(t *testing.T) {
	svc, _ := newService()

	_, err := svc.GetBalance(context.Background(), uuid.New())
	require.ErrorIs(t, err, domain.ErrNoBalanceRecord)
}

func TestConcurrentDepositsConverge(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	account := uuid.New()

	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers)

	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()

			_, err := svc.Deposit(ctx, account, dec("1.00"), "")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	bal, err := svc.GetBalance(ctx, account)
	require.NoError(t, err)
	require.True(t, bal.Balance.Equal(dec("50.00")), "balance = %s", bal.Balance)

	history, err := svc.GetHistory(ctx, account, workers+10)
	require.NoError(t, err)
	require.Len(t, history, workers)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()

	_, err := svc.Deposit(ctx, a, dec("1000.00"), "")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, b, dec("1000.00"), "")
	require.NoError(t, err)

	const n = 100

	var wg sync.WaitGroup
	wg.Add(2 * n)

	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()

			_, err := svc.Transfer(ctx, a, b, dec("1.00"), "")
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()

			_, err := svc.Transfer(ctx, b, a, dec("1.00"), "")
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	balA, err := svc.GetBalance(ctx, a)
	require.NoError(t, err)
	balB, err := svc.GetBalance(ctx, b)
	require.NoError(t, err)

	require.False(t, balA.Balance.IsNegative())
	require.False(t, balB.Balance.IsNegative())
	require.True(t, balA.Balance.Add(balB.Balance).Equal(dec("2000.00")),
		"total = %s", balA.Balance.Add(balB.Balance))
}

func TestConservationAcrossMixedOperations(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()
	a := uuid.New()
	b := uuid.New()
	c := uuid.New()

	_, err := svc.Deposit(ctx, a, dec("500.00"), "")
	require.NoError(t, err)
	_, err = svc.Deposit(ctx, b, dec("250.50"), "")
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, a, dec("100.00"), "")
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, a, c, dec("150.00"), "")
	require.NoError(t, err)
	_, err = svc.Transfer(ctx, b, a, dec("50.50"), "")
	require.NoError(t, err)
	_, err = svc.Withdraw(ctx, c, dec("25.00"), "")
	require.NoError(t, err)

	total := decimal.Zero

	for _, id := range []uuid.UUID{a, b, c} {
		bal, err := svc.GetBalance(ctx, id)
		require.NoError(t, err)
		require.False(t, bal.Balance.IsNegative())
		total = total.Add(bal.Balance)
	}

	// deposits - withdraws: 500.00 + 250.50 - 100.00 - 25.00
	require.True(t, total.Equal(dec("625.50")), "total = %s", total)
}

func TestStoreFailureSurfacesAsOperationError(t *testing.T) {
	boom := errors.New("connection reset")
	svc := ledger.NewService(&failingStore{err: boom})

	_, err := svc.Deposit(context.Background(), uuid.New(), dec("10.00"), "")

	var opErr *domain.OperationError
	require.ErrorAs(t, err, &opErr)
	require.Equal(t, "deposit", opErr.Op)
	require.ErrorIs(t, err, boom)
	require.False(t, domain.IsRejection(err))
}

// failingStore fails every atomic unit, standing in for a broken database.
type failingStore struct {
	err error
}

func (s *failingStore) Atomic(context.Context, func(ledger.StoreTx) error) error {
	return s.err
}

func (s *failingStore) GetBalance(context.Context, uuid.UUID) (domain.Balance, error) {
	return domain.Balance{}, s.err
}

func (s *failingStore) ListTransactions(context.Context, uuid.UUID, int) ([]domain.Transaction, error) {
	return nil, s.err
}
