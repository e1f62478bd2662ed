package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CreateTripInput struct {
	Origin       string
	Destination  string
	DepartureAt  time.Time
	TotalSeats   int
	PricePerSeat decimal.Decimal
}

type TripService struct {
	store store.Store
	log   *logrus.Entry
}

func NewTripService(st store.Store, logger *logrus.Logger) *TripService {
	return &TripService{store: st, log: logger.WithField("component", "trips")}
}

// CreateTrip publishes a planned trip with every seat available.
func (s *TripService) CreateTrip(ctx context.Context, driverID string, in CreateTripInput) (*models.Trip, error) {
	if strings.TrimSpace(driverID) == "" {
		return nil, invalid("driver_id", "is required")
	}
	if in.TotalSeats <= 0 {
		return nil, invalid("total_seats", "must be greater than zero")
	}
	if in.PricePerSeat.IsNegative() {
		return nil, invalid("price_per_seat", "must not be negative")
	}
	if !models.HasCreditPrecision(in.PricePerSeat) {
		return nil, invalid("price_per_seat", "must have at most two fraction digits")
	}
	if !models.WithinCreditRange(in.PricePerSeat) {
		return nil, invalid("price_per_seat", "must not exceed "+models.FormatCredits(models.MaxCredits))
	}

	now := time.Now().UTC()
	trip := &models.Trip{
		ID:             uuid.NewString(),
		DriverID:       driverID,
		Origin:         in.Origin,
		Destination:    in.Destination,
		DepartureAt:    in.DepartureAt.UTC(),
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.TotalSeats,
		PricePerSeat:   in.PricePerSeat,
		Status:         models.TripPlanned,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertTrip(ctx, trip); err != nil {
		return nil, classify("create trip", err)
	}

	s.log.WithFields(logrus.Fields{
		"trip_id":   trip.ID,
		"driver_id": driverID,
		"seats":     trip.TotalSeats,
	}).Info("Trip created")
	return trip, nil
}

func (s *TripService) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, classify("get trip", tripErr(err))
	}
	return trip, nil
}
