package repository

import (
	"context"
	"errors"

	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/shopspring/decimal"
)

var ErrNotFound = errors.New("not found")

type TransactionRepository interface {
	// Create stores tx; when a record with the same id exists it is returned unchanged.
	Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error)
	GetByID(ctx context.Context, id string) (*models.Transaction, error)
	LoadStatus(ctx context.Context, id string) (models.Status, error)
	SaveStatus(ctx context.Context, tx *models.Transaction) error
}

type LedgerRepository interface {
	CreateWallet(ctx context.Context, id int64, balance decimal.Decimal) (*models.Wallet, error)
	GetWallet(ctx context.Context, id int64) (*models.Wallet, error)
	GetTransfer(ctx context.Context, transactionID string) (*models.Transfer, error)
	MoveMoney(ctx context.Context, transactionID string, payerID, payeeID int64, amount decimal.Decimal) (string, error)
}
