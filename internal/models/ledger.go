package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CreditTransactionType string

const (
	TxTripPurchase CreditTransactionType = "trip_purchase"
	TxTripEarning  CreditTransactionType = "trip_earning"
	TxTransfer     CreditTransactionType = "transfer"
	TxOther        CreditTransactionType = "other"
	TxTripRefund   CreditTransactionType = "trip_refund"
	TxCommission   CreditTransactionType = "commission"
)

// Valid reports whether t is a known transaction type.
func (t CreditTransactionType) Valid() bool {
	switch t {
	case TxTripPurchase, TxTripEarning, TxTransfer, TxOther, TxTripRefund, TxCommission:
		return true
	}
	return false
}

// Account is the materialized balance of a user. Balance always equals the
// sum of the user's committed credit transactions.
type Account struct {
	UserID    string          `json:"user_id" db:"user_id"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
	Version   int64           `json:"version" db:"version"` // for optimistic locking
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// CreditTransaction is one immutable ledger row. Amount is signed: credits
// are positive, debits negative.
type CreditTransaction struct {
	ID           string                `json:"id" db:"id"`
	UserID       string                `json:"user_id" db:"user_id"`
	Amount       decimal.Decimal       `json:"amount" db:"amount"`
	Type         CreditTransactionType `json:"type" db:"type"`
	Description  string                `json:"description" db:"description"`
	ReferenceID  string                `json:"reference_id,omitempty" db:"reference_id"`
	BalanceAfter decimal.Decimal       `json:"balance_after" db:"balance_after"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
}
