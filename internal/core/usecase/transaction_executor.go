package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/logger"
	"github.com/Nzyazin/wallettx/internal/core/models"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/Nzyazin/wallettx/internal/core/usecase"

// Execution outcomes, as reported to an OutcomeRecorder.
const (
	OutcomeInvalid         = "invalid"
	OutcomeAlreadyExecuted = "already_executed"
	OutcomeLockBusy        = "lock_busy"
	OutcomeLockError       = "lock_error"
	OutcomeExpired         = "expired"
	OutcomeExecuted        = "executed"
	OutcomeDeclined        = "declined"
	OutcomeMoverError      = "mover_error"
	OutcomeStoreError      = "store_error"
	OutcomePanic           = "panic"
)

// DistributedLock is a fleet-wide try-lock keyed by transaction id.
// Acquire must not block waiting for another holder.
// The returned handle releases exactly the acquisition that produced it.
type DistributedLock interface {
	Acquire(ctx context.Context, key string) (LockHandle, bool, error)
}

type LockHandle interface {
	Release(ctx context.Context) error
}

// MoneyMover moves amount from payer to payee and returns a settlement
// reference. An empty reference means the move was declined.
type MoneyMover interface {
	MoveMoney(ctx context.Context, transactionID string, payerID, payeeID int64, amount decimal.Decimal) (string, error)
}

// StatusStore lets the executor read and write the shared copy of a
// transaction's status while it holds the lock.
type StatusStore interface {
	LoadStatus(ctx context.Context, id string) (models.Status, error)
	SaveStatus(ctx context.Context, tx *models.Transaction) error
}

type OutcomeRecorder interface {
	ObserveOutcome(outcome string, elapsed time.Duration)
}

type ExecutorOption func(*TransactionExecutor)

func WithStatusStore(store StatusStore) ExecutorOption {
	return func(e *TransactionExecutor) { e.store = store }
}

func WithOutcomeRecorder(recorder OutcomeRecorder) ExecutorOption {
	return func(e *TransactionExecutor) { e.recorder = recorder }
}

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *TransactionExecutor) { e.now = now }
}

type TransactionExecutor struct {
	lock        DistributedLock
	mover       MoneyMover
	maxLifetime time.Duration
	store       StatusStore
	recorder    OutcomeRecorder
	now         func() time.Time
	tracer      trace.Tracer
	log         logger.Logger
}

func NewTransactionExecutor(lock DistributedLock, mover MoneyMover, maxLifetime time.Duration, log logger.Logger, opts ...ExecutorOption) (*TransactionExecutor, error) {
	if lock == nil {
		return nil, fmt.Errorf("%w: distributed lock", ErrMissingDependency)
	}
	if mover == nil {
		return nil, fmt.Errorf("%w: money mover", ErrMissingDependency)
	}
	if log == nil {
		return nil, fmt.Errorf("%w: logger", ErrMissingDependency)
	}
	if maxLifetime <= 0 {
		return nil, fmt.Errorf("max lifetime must be positive, got %s", maxLifetime)
	}

	e := &TransactionExecutor{
		lock:        lock,
		mover:       mover,
		maxLifetime: maxLifetime,
		now:         time.Now,
		tracer:      otel.Tracer(tracerName),
		log:         log,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// Execute moves the transaction's money at most once. It returns true when
// the money has been moved, by this call or an earlier one, and false when it
// has not: the lock is held elsewhere, the mover declined (status FAILED), or
// the transaction expired (status EXPIRED). Only an invalid transaction or an
// infrastructure failure produces an error.
func (e *TransactionExecutor) Execute(ctx context.Context, tx *models.Transaction) (executed bool, err error) {
	start := e.now()
	// Overwritten on every return path; left as is only when a collaborator panics.
	outcome := OutcomePanic

	ctx, span := e.tracer.Start(ctx, "wallettx.execute")
	defer func() {
		span.SetAttributes(attribute.String("wallettx.outcome", outcome), attribute.Bool("wallettx.executed", executed))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
		e.observe(outcome, e.now().Sub(start))
	}()

	if err := validate(tx); err != nil {
		outcome = OutcomeInvalid
		e.log.Warn("Rejected invalid transaction", logger.ErrorField("error", err))
		return false, err
	}
	span.SetAttributes(attribute.String("wallettx.transaction_id", tx.ID))

	if tx.Status == models.StatusExecuted {
		outcome = OutcomeAlreadyExecuted
		return true, nil
	}

	handle, locked, err := e.lock.Acquire(ctx, tx.ID)
	if err != nil {
		outcome = OutcomeLockError
		e.log.Error("Lock acquisition failed",
			logger.StringField("transaction_id", tx.ID),
			logger.ErrorField("error", err))
		return false, fmt.Errorf("%w: acquire %s: %w", ErrLockFailed, tx.ID, err)
	}
	if !locked {
		outcome = OutcomeLockBusy
		e.log.Info("Transaction locked by another executor", logger.StringField("transaction_id", tx.ID))
		return false, nil
	}
	defer e.release(ctx, tx.ID, handle)

	return e.executeLocked(ctx, tx, &outcome)
}

func (e *TransactionExecutor) executeLocked(ctx context.Context, tx *models.Transaction, outcome *string) (bool, error) {
	if e.store != nil {
		status, err := e.store.LoadStatus(ctx, tx.ID)
		if err != nil {
			*outcome = OutcomeStoreError
			return false, fmt.Errorf("reload status of %s: %w", tx.ID, err)
		}
		tx.Status = status
	}

	if tx.Status.Terminal() {
		if tx.Status == models.StatusExecuted {
			*outcome = OutcomeAlreadyExecuted
			return true, nil
		}
		*outcome = OutcomeExpired
		return false, nil
	}

	if tx.IsExpired(e.now(), e.maxLifetime) {
		*outcome = OutcomeExpired
		e.log.Info("Transaction expired",
			logger.StringField("transaction_id", tx.ID),
			logger.StringField("created_at", tx.CreatedAt.String()))
		return false, e.settle(ctx, tx, models.StatusExpired, "", outcome)
	}

	ref, err := e.mover.MoveMoney(ctx, tx.ID, tx.PayerID, tx.PayeeID, tx.Amount.Decimal)
	if err != nil {
		*outcome = OutcomeMoverError
		e.log.Error("Money move failed",
			logger.StringField("transaction_id", tx.ID),
			logger.ErrorField("error", err))
		moveErr := fmt.Errorf("%w: %s: %w", ErrMoneyMoveFailed, tx.ID, err)
		if settleErr := e.settle(ctx, tx, models.StatusFailed, "", outcome); settleErr != nil {
			return false, errors.Join(moveErr, settleErr)
		}
		return false, moveErr
	}

	if ref == "" {
		*outcome = OutcomeDeclined
		e.log.Warn("Money move declined",
			logger.StringField("transaction_id", tx.ID),
			logger.Int64Field("payer_id", tx.PayerID),
			logger.Int64Field("payee_id", tx.PayeeID),
			logger.StringField("amount", tx.Amount.Decimal.String()))
		return false, e.settle(ctx, tx, models.StatusFailed, "", outcome)
	}

	*outcome = OutcomeExecuted
	e.log.Info("Transaction executed",
		logger.StringField("transaction_id", tx.ID),
		logger.StringField("settlement_ref", ref))
	// Money has moved; a store failure is reported alongside true.
	return true, e.settle(ctx, tx, models.StatusExecuted, ref, outcome)
}

// settle applies the status transition and, when a store is wired, persists
// it before the lock is released.
func (e *TransactionExecutor) settle(ctx context.Context, tx *models.Transaction, next models.Status, ref string, outcome *string) error {
	if err := tx.TransitionTo(next); err != nil {
		return err
	}
	if ref != "" {
		tx.SettlementRef = ref
	}

	if e.store == nil {
		return nil
	}
	if err := e.store.SaveStatus(ctx, tx); err != nil {
		*outcome = OutcomeStoreError
		e.log.Error("Failed to persist transaction status",
			logger.StringField("transaction_id", tx.ID),
			logger.StringField("status", string(tx.Status)),
			logger.ErrorField("error", err))
		return fmt.Errorf("persist status of %s: %w", tx.ID, err)
	}
	return nil
}

// release runs on every path after a successful Acquire, panics included.
// It ignores caller cancellation so a cancelled request cannot strand the lock.
func (e *TransactionExecutor) release(ctx context.Context, id string, handle LockHandle) {
	if err := handle.Release(context.WithoutCancel(ctx)); err != nil {
		e.log.Warn("Lock release failed",
			logger.StringField("transaction_id", id),
			logger.ErrorField("error", err))
	}
}

func (e *TransactionExecutor) observe(outcome string, elapsed time.Duration) {
	if e.recorder != nil {
		e.recorder.ObserveOutcome(outcome, elapsed)
	}
}

func validate(tx *models.Transaction) error {
	switch {
	case tx == nil:
		return fmt.Errorf("%w: transaction is nil", ErrInvalidTransaction)
	case tx.PayerID == 0:
		return fmt.Errorf("%w: payer id is required", ErrInvalidTransaction)
	case tx.PayeeID == 0:
		return fmt.Errorf("%w: payee id is required", ErrInvalidTransaction)
	case !tx.Amount.Valid:
		return fmt.Errorf("%w: amount is required", ErrInvalidTransaction)
	case tx.Amount.Decimal.IsNegative():
		return fmt.Errorf("%w: amount %s is negative", ErrInvalidTransaction, tx.Amount.Decimal)
	}
	return nil
}
