package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/Nzyazin/wallettx/internal/core/repository"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type postgresLedgerRepo struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresLedgerRepo(db *sqlx.DB, log logger.Logger) repository.LedgerRepository {
	return &postgresLedgerRepo{
		db:  db,
		log: log,
	}
}

func (r *postgresLedgerRepo) CreateWallet(ctx context.Context, id int64, balance decimal.Decimal) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `INSERT INTO wallets (id, balance) VALUES ($1, $2)
		RETURNING id, balance, created_at, updated_at`
	if err := r.db.GetContext(ctx, &wallet, query, id, balance); err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}
	return &wallet, nil
}

func (r *postgresLedgerRepo) GetWallet(ctx context.Context, id int64) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `SELECT id, balance, created_at, updated_at FROM wallets WHERE id = $1`
	err := r.db.GetContext(ctx, &wallet, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: wallet %d", repository.ErrNotFound, id)
		}
		return nil, fmt.Errorf("error getting wallet: %w", err)
	}
	return &wallet, nil
}

func (r *postgresLedgerRepo) GetTransfer(ctx context.Context, transactionID string) (*models.Transfer, error) {
	var transfer models.Transfer
	query := `SELECT transaction_id, reference, payer_id, payee_id, amount, created_at
		FROM ledger_transfers WHERE transaction_id = $1`
	err := r.db.GetContext(ctx, &transfer, query, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: transfer %s", repository.ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("error getting transfer: %w", err)
	}
	return &transfer, nil
}

// MoveMoney debits payer and credits payee in one serializable transaction.
// A transfer already booked for transactionID returns its reference again.
// Unknown wallets and insufficient funds decline with an empty reference.
func (r *postgresLedgerRepo) MoveMoney(ctx context.Context, transactionID string, payerID, payeeID int64, amount decimal.Decimal) (ref string, err error) {
	var isCommitted bool
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		r.log.Error("Error beginning ledger transaction",
			logger.ErrorField("error", err))
		return "", fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if isCommitted {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("Ledger rollback failed",
				logger.StringField("transaction_id", transactionID),
				logger.ErrorField("error", rbErr))
			if err != nil {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	existing, err := r.findReference(ctx, tx, transactionID)
	if err != nil {
		return "", err
	}
	if existing != "" {
		r.log.Info("Transfer already booked",
			logger.StringField("transaction_id", transactionID),
			logger.StringField("reference", existing))
		return existing, nil
	}

	balances, err := r.lockWallets(ctx, tx, payerID, payeeID)
	if err != nil {
		return "", err
	}

	payerBalance, payerFound := balances[payerID]
	if !payerFound {
		r.log.Warn("Transfer declined: payer wallet not found", logger.Int64Field("payer_id", payerID))
		return "", nil
	}
	if _, ok := balances[payeeID]; !ok {
		r.log.Warn("Transfer declined: payee wallet not found", logger.Int64Field("payee_id", payeeID))
		return "", nil
	}
	if payerBalance.LessThan(amount) {
		r.log.Warn("Transfer declined: insufficient funds",
			logger.Int64Field("payer_id", payerID),
			logger.StringField("balance", payerBalance.String()),
			logger.StringField("requested", amount.String()))
		return "", nil
	}

	if err := r.updateBalance(ctx, tx, payerID, amount.Neg()); err != nil {
		return "", err
	}
	if err := r.updateBalance(ctx, tx, payeeID, amount); err != nil {
		return "", err
	}

	ref = uuid.NewString()
	if err := r.createTransfer(ctx, tx, transactionID, ref, payerID, payeeID, amount); err != nil {
		return "", err
	}

	if err = tx.Commit(); err != nil {
		r.log.Error("Error committing ledger transaction",
			logger.StringField("transaction_id", transactionID),
			logger.ErrorField("error", err))
		return "", fmt.Errorf("commit failed: %w", err)
	}

	isCommitted = true
	return ref, nil
}

func (r *postgresLedgerRepo) findReference(ctx context.Context, tx *sqlx.Tx, transactionID string) (string, error) {
	var ref string
	err := tx.GetContext(ctx, &ref, `SELECT reference FROM ledger_transfers WHERE transaction_id = $1`, transactionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find transfer: %w", err)
	}
	return ref, nil
}

// lockWallets takes row locks in ascending id order so opposite transfers
// between the same wallets cannot deadlock.
func (r *postgresLedgerRepo) lockWallets(ctx context.Context, tx *sqlx.Tx, payerID, payeeID int64) (map[int64]decimal.Decimal, error) {
	ids := []int64{payerID, payeeID}
	if payerID > payeeID {
		ids[0], ids[1] = payeeID, payerID
	}

	balances := make(map[int64]decimal.Decimal, 2)
	for _, id := range ids {
		if _, seen := balances[id]; seen {
			continue
		}
		var balance decimal.Decimal
		err := tx.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, fmt.Errorf("lock wallet %d: %w", id, err)
		}
		balances[id] = balance
	}
	return balances, nil
}

func (r *postgresLedgerRepo) updateBalance(ctx context.Context, tx *sqlx.Tx, walletID int64, delta decimal.Decimal) error {
	updateQuery := `
		UPDATE wallets
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`
	if _, err := tx.ExecContext(ctx, updateQuery, delta, walletID); err != nil {
		return fmt.Errorf("update balance of wallet %d: %w", walletID, err)
	}
	return nil
}

func (r *postgresLedgerRepo) createTransfer(ctx context.Context, tx *sqlx.Tx, transactionID, ref string, payerID, payeeID int64, amount decimal.Decimal) error {
	const query = `INSERT INTO ledger_transfers
		(transaction_id, reference, payer_id, payee_id, amount)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := tx.ExecContext(ctx, query, transactionID, ref, payerID, payeeID, amount); err != nil {
		return fmt.Errorf("create transfer: %w", err)
	}
	return nil
}
