package usecase_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/Nzyazin/wallettx/internal/core/repository"
	"github.com/Nzyazin/wallettx/internal/core/usecase"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRepo stores copies, so every Get behaves like a fresh load from storage.
type fakeRepo struct {
	mu  sync.Mutex
	txs map[string]models.Transaction
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{txs: make(map[string]models.Transaction)}
}

func (r *fakeRepo) Create(_ context.Context, tx *models.Transaction) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.txs[tx.ID]; ok {
		return &existing, nil
	}
	r.txs[tx.ID] = *tx
	stored := *tx
	return &stored, nil
}

func (r *fakeRepo) GetByID(_ context.Context, id string) (*models.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &tx, nil
}

func (r *fakeRepo) LoadStatus(ctx context.Context, id string) (models.Status, error) {
	tx, err := r.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return tx.Status, nil
}

func (r *fakeRepo) SaveStatus(_ context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.txs[tx.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Status = tx.Status
	stored.SettlementRef = tx.SettlementRef
	r.txs[tx.ID] = stored
	return nil
}

type fixedIDs string

func (g fixedIDs) GenerateTransactionID() string { return string(g) }

func newUsecase(t *testing.T, repo *fakeRepo, lock usecase.DistributedLock, mover usecase.MoneyMover) usecase.TransactionUsecase {
	t.Helper()
	executor := newExecutor(t, lock, mover, usecase.WithStatusStore(repo))
	return usecase.NewTransactionUsecase(repo, executor, fixedIDs("generated"), zap.NewNop())
}

func TestUsecaseCreateGeneratesPrefixedID(t *testing.T) {
	repo := newFakeRepo()
	uc := newUsecase(t, repo, &spyLock{acquireResult: true}, &spyMover{ref: "ref"})

	tx, err := uc.Create(context.Background(), usecase.CreateTransactionInput{
		PayerID: 111,
		PayeeID: 222,
		Amount:  decimal.NewNullDecimal(decimal.RequireFromString("11.1")),
		OrderID: "order-7",
	})

	require.NoError(t, err)
	assert.Equal(t, "t_generated", tx.ID)
	assert.Equal(t, models.StatusPending, tx.Status)
	assert.Equal(t, "order-7", tx.OrderID)
}

func TestUsecaseCreateIsIdempotentOnID(t *testing.T) {
	repo := newFakeRepo()
	uc := newUsecase(t, repo, &spyLock{acquireResult: true}, &spyMover{ref: "ref"})
	input := usecase.CreateTransactionInput{
		ID:      "abc",
		PayerID: 111,
		PayeeID: 222,
		Amount:  decimal.NewNullDecimal(decimal.NewFromInt(5)),
	}

	first, err := uc.Create(context.Background(), input)
	require.NoError(t, err)
	input.Amount = decimal.NewNullDecimal(decimal.NewFromInt(500))
	second, err := uc.Create(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, "t_abc", second.ID)
	assert.True(t, first.Amount.Decimal.Equal(second.Amount.Decimal), "the first stored record wins")
}

func TestUsecaseExecutePersistsOutcome(t *testing.T) {
	repo := newFakeRepo()
	mover := &spyMover{ref: "ref-123"}
	uc := newUsecase(t, repo, &spyLock{acquireResult: true}, mover)

	created, err := uc.Create(context.Background(), usecase.CreateTransactionInput{
		ID: "t_abc", PayerID: 111, PayeeID: 222,
		Amount: decimal.NewNullDecimal(decimal.RequireFromString("11.1")),
	})
	require.NoError(t, err)

	tx, executed, err := uc.Execute(context.Background(), "abc")
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, models.StatusExecuted, tx.Status)

	stored, err := uc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, stored.Status)
	assert.Equal(t, "ref-123", stored.SettlementRef)

	_, executed, err = uc.Execute(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Len(t, mover.calls, 1)
}

func TestUsecaseExecuteUnknownTransaction(t *testing.T) {
	uc := newUsecase(t, newFakeRepo(), &spyLock{acquireResult: true}, &spyMover{ref: "ref"})

	_, _, err := uc.Execute(context.Background(), "t_missing")

	assert.ErrorIs(t, err, usecase.ErrTransactionNotFound)
}

func TestUsecaseExecuteInvalidTransaction(t *testing.T) {
	repo := newFakeRepo()
	uc := newUsecase(t, repo, &spyLock{acquireResult: true}, &spyMover{ref: "ref"})

	created, err := uc.Create(context.Background(), usecase.CreateTransactionInput{PayerID: 111, PayeeID: 222})
	require.NoError(t, err)

	tx, executed, err := uc.Execute(context.Background(), created.ID)

	assert.ErrorIs(t, err, usecase.ErrInvalidTransaction)
	assert.False(t, executed)
	assert.Equal(t, models.StatusPending, tx.Status)
}
