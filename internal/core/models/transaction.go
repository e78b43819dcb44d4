package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Nzyazin/wallettx/internal/core/idgen"
	"github.com/shopspring/decimal"
)

// IDPrefix marks an identifier as a wallet transaction id.
const IDPrefix = "t_"

var ErrInvalidTransition = errors.New("invalid status transition")

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusExecuted Status = "EXECUTED"
	StatusFailed   Status = "FAILED"
	StatusExpired  Status = "EXPIRED"
)

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusExpired
}

func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	switch s {
	case StatusPending, StatusFailed:
		return next == StatusExecuted || next == StatusFailed || next == StatusExpired
	default:
		return false
	}
}

type IDGenerator interface {
	GenerateTransactionID() string
}

// Transaction is a single transfer from payer to payee. A zero party id means
// the party is absent; an invalid Amount means the amount is absent.
type Transaction struct {
	ID            string              `json:"id" db:"id"`
	PayerID       int64               `json:"payer_id" db:"payer_id"`
	PayeeID       int64               `json:"payee_id" db:"payee_id"`
	Amount        decimal.NullDecimal `json:"amount" db:"amount"`
	OrderID       string              `json:"order_id,omitempty" db:"order_id"`
	ProductID     string              `json:"product_id,omitempty" db:"product_id"`
	Status        Status              `json:"status" db:"status"`
	SettlementRef string              `json:"settlement_ref,omitempty" db:"settlement_ref"`
	CreatedAt     time.Time           `json:"created_at" db:"created_at"`
}

type TransactionOption func(*Transaction)

// WithCreatedAt overrides the creation time, for replays and tests.
func WithCreatedAt(t time.Time) TransactionOption {
	return func(tx *Transaction) { tx.CreatedAt = t }
}

func WithOrderID(id string) TransactionOption {
	return func(tx *Transaction) { tx.OrderID = id }
}

func WithProductID(id string) TransactionOption {
	return func(tx *Transaction) { tx.ProductID = id }
}

// NewTransaction builds a pending transaction. An empty preAssignedID is
// replaced by one from gen (a UUID generator when gen is nil). Nothing is
// validated here; Execute does that.
func NewTransaction(gen IDGenerator, preAssignedID string, payerID, payeeID int64, amount decimal.NullDecimal, opts ...TransactionOption) *Transaction {
	id := preAssignedID
	if id == "" {
		if gen == nil {
			gen = idgen.UUIDGenerator{}
		}
		id = gen.GenerateTransactionID()
	}

	tx := &Transaction{
		ID:        WithIDPrefix(id),
		PayerID:   payerID,
		PayeeID:   payeeID,
		Amount:    amount,
		Status:    StatusPending,
		CreatedAt: time.Now().UTC(),
	}

	for _, opt := range opts {
		opt(tx)
	}

	return tx
}

func WithIDPrefix(id string) string {
	if strings.HasPrefix(id, IDPrefix) {
		return id
	}
	return IDPrefix + id
}

func (t *Transaction) IsExpired(now time.Time, maxLifetime time.Duration) bool {
	return now.Sub(t.CreatedAt) > maxLifetime
}

func (t *Transaction) TransitionTo(next Status) error {
	if !t.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}
