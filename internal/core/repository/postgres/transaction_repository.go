package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/Nzyazin/wallettx/internal/core/repository"
	"github.com/jmoiron/sqlx"
)

const transactionColumns = `id, payer_id, payee_id, amount, order_id, product_id, status, settlement_ref, created_at`

type postgresTransactionRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresTransactionRepo(db *sqlx.DB, log logger.Logger) repository.TransactionRepository {
	return &postgresTransactionRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresTransactionRepo) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	const query = `INSERT INTO wallet_transactions
		(id, payer_id, payee_id, amount, order_id, product_id, status, settlement_ref, created_at)
		VALUES (:id, :payer_id, :payee_id, :amount, :order_id, :product_id, :status, :settlement_ref, :created_at)
		ON CONFLICT (id) DO NOTHING`

	res, err := r.db.NamedExecContext(ctx, query, tx)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		r.log.Info("Transaction already stored", logger.StringField("transaction_id", tx.ID))
	}

	return r.GetByID(ctx, tx.ID)
}

func (r *postgresTransactionRepo) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1`
	err := r.db.GetContext(ctx, &tx, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("error getting transaction: %w", err)
	}
	return &tx, nil
}

func (r *postgresTransactionRepo) LoadStatus(ctx context.Context, id string) (models.Status, error) {
	var status models.Status
	err := r.db.GetContext(ctx, &status, `SELECT status FROM wallet_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: transaction %s", repository.ErrNotFound, id)
		}
		return "", fmt.Errorf("load status: %w", err)
	}
	return status, nil
}

func (r *postgresTransactionRepo) SaveStatus(ctx context.Context, tx *models.Transaction) error {
	// EXECUTED rows are never rewritten.
	const query = `UPDATE wallet_transactions
		SET status = $1, settlement_ref = $2, updated_at = NOW()
		WHERE id = $3 AND status <> 'EXECUTED'`

	res, err := r.db.ExecContext(ctx, query, tx.Status, tx.SettlementRef, tx.ID)
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save status: %w", err)
	}
	if n == 0 {
		r.log.Warn("Status update skipped",
			logger.StringField("transaction_id", tx.ID),
			logger.StringField("status", string(tx.Status)))
	}
	return nil
}
