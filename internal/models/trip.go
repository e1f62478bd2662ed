package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TripStatus string

const (
	TripPlanned   TripStatus = "planned"
	TripActive    TripStatus = "active"
	TripCompleted TripStatus = "completed"
	TripCancelled TripStatus = "cancelled"
)

// Trip is a ride offering published by a driver.
// Invariant: 0 <= AvailableSeats <= TotalSeats.
type Trip struct {
	ID             string          `json:"id" db:"id"`
	DriverID       string          `json:"driver_id" db:"driver_id"`
	Origin         string          `json:"origin" db:"origin"`
	Destination    string          `json:"destination" db:"destination"`
	DepartureAt    time.Time       `json:"departure_at" db:"departure_at"`
	TotalSeats     int             `json:"total_seats" db:"total_seats"`
	AvailableSeats int             `json:"available_seats" db:"available_seats"`
	PricePerSeat   decimal.Decimal `json:"price_per_seat" db:"price_per_seat"`
	Status         TripStatus      `json:"status" db:"status"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Bookable reports whether the trip still accepts riders.
func (t *Trip) Bookable() bool {
	return t.Status == TripPlanned || t.Status == TripActive
}
