// Package events defines the domain events emitted after a commit and the
// RabbitMQ producer that publishes them.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Type doubles as the AMQP routing key.
type Type string

const (
	BookingConfirmed Type = "booking.confirmed"
	BookingCancelled Type = "booking.cancelled"
	LedgerAdjusted   Type = "ledger.adjusted"
	LedgerTransfer   Type = "ledger.transfer"
)

type Event struct {
	ID              string          `json:"id"`
	Type            Type            `json:"type"`
	OccurredAt      time.Time       `json:"occurred_at"`
	BookingID       string          `json:"booking_id,omitempty"`
	TripID          string          `json:"trip_id,omitempty"`
	RiderID         string          `json:"rider_id,omitempty"`
	DriverID        string          `json:"driver_id,omitempty"`
	UserID          string          `json:"user_id,omitempty"`
	CounterpartyID  string          `json:"counterparty_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	CommissionFee   decimal.Decimal `json:"commission_fee"`
	DriverPayout    decimal.Decimal `json:"driver_payout"`
	TransactionType string          `json:"transaction_type,omitempty"`
	Description     string          `json:"description,omitempty"`
}

// New stamps an event with an id and the current time.
func New(t Type) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}
