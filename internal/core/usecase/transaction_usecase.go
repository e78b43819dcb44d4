package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/Nzyazin/wallettx/internal/core/repository"
	"github.com/shopspring/decimal"
)

type TransactionUsecase interface {
	Create(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error)
	Execute(ctx context.Context, id string) (*models.Transaction, bool, error)
	Get(ctx context.Context, id string) (*models.Transaction, error)
}

type Executor interface {
	Execute(ctx context.Context, tx *models.Transaction) (bool, error)
}

type CreateTransactionInput struct {
	ID        string
	PayerID   int64
	PayeeID   int64
	Amount    decimal.NullDecimal
	OrderID   string
	ProductID string
}

type transactionUsecase struct {
	repo     repository.TransactionRepository
	executor Executor
	ids      models.IDGenerator
	log      logger.Logger
}

// NewTransactionUsecase wires the store, the executor and the id generator.
// The executor should use repo as its StatusStore so that every process
// double-checks against the same record.
func NewTransactionUsecase(repo repository.TransactionRepository, executor Executor, ids models.IDGenerator, log logger.Logger) TransactionUsecase {
	return &transactionUsecase{repo: repo, executor: executor, ids: ids, log: log}
}

func (uc *transactionUsecase) Create(ctx context.Context, input CreateTransactionInput) (*models.Transaction, error) {
	tx := models.NewTransaction(uc.ids, input.ID, input.PayerID, input.PayeeID, input.Amount,
		models.WithOrderID(input.OrderID),
		models.WithProductID(input.ProductID),
	)

	stored, err := uc.repo.Create(ctx, tx)
	if err != nil {
		uc.log.Error("Transaction create failed",
			logger.StringField("transaction_id", tx.ID),
			logger.ErrorField("error", err))
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	uc.log.Info("Transaction created",
		logger.StringField("transaction_id", stored.ID),
		logger.StringField("status", string(stored.Status)))
	return stored, nil
}

func (uc *transactionUsecase) Execute(ctx context.Context, id string) (*models.Transaction, bool, error) {
	tx, err := uc.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}

	executed, err := uc.executor.Execute(ctx, tx)
	if err != nil {
		return tx, executed, err
	}

	uc.log.Info("Transaction execute finished",
		logger.StringField("transaction_id", tx.ID),
		logger.StringField("status", string(tx.Status)),
		logger.BoolField("executed", executed))
	return tx, executed, nil
}

func (uc *transactionUsecase) Get(ctx context.Context, id string) (*models.Transaction, error) {
	tx, err := uc.repo.GetByID(ctx, models.WithIDPrefix(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}
