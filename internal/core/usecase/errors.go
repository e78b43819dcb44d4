package usecase

import "errors"

var (
	// ErrInvalidTransaction is a caller error: a party id or the amount is
	// missing, or the amount is negative. It is never retried.
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrMoneyMoveFailed     = errors.New("money move failed")
	ErrLockFailed          = errors.New("distributed lock failure")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrMissingDependency   = errors.New("missing dependency")
)
