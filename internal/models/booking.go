package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is a rider's participation in a trip. PriceCharged is what the
// rider paid; CommissionFee, DriverPayout and FeeAccountID record how it was
// split so a cancellation can reverse exactly those entries. FeeAccountID is
// empty when no platform account collected the fee.
type Booking struct {
	ID             string          `json:"id" db:"id"`
	RiderID        string          `json:"rider_id" db:"rider_id"`
	TripID         string          `json:"trip_id" db:"trip_id"`
	Status         BookingStatus   `json:"status" db:"status"`
	PriceCharged   decimal.Decimal `json:"price_charged" db:"price_charged"`
	CommissionFee  decimal.Decimal `json:"commission_fee" db:"commission_fee"`
	DriverPayout   decimal.Decimal `json:"driver_payout" db:"driver_payout"`
	FeeAccountID   string          `json:"fee_account_id,omitempty" db:"fee_account_id"`
	IdempotencyKey string          `json:"-" db:"idempotency_key"`
	ReservedAt     time.Time       `json:"reserved_at" db:"reserved_at"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty" db:"cancelled_at"`
}
