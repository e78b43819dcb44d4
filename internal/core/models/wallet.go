package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is a ledger account the money mover debits and credits.
type Wallet struct {
	ID        int64           `json:"id" db:"id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// Transfer is the ledger's record of moved money, one per transaction id.
type Transfer struct {
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	Reference     string          `json:"reference" db:"reference"`
	PayerID       int64           `json:"payer_id" db:"payer_id"`
	PayeeID       int64           `json:"payee_id" db:"payee_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
}
