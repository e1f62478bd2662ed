package services

import (
	"context"
	"errors"

	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
)

type SeatService struct {
	store store.Store
}

func NewSeatService(st store.Store) *SeatService {
	return &SeatService{store: st}
}

func tripErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrTripNotFound
	}
	return err
}

func (s *SeatService) CheckAvailability(ctx context.Context, tripID string) (int, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return 0, classify("check availability", tripErr(err))
	}
	if !trip.Bookable() {
		return 0, nil
	}
	return trip.AvailableSeats, nil
}

// ReserveSeatTx locks the trip row and takes one seat with a conditional
// decrement. The returned trip reflects the decrement.
func (s *SeatService) ReserveSeatTx(ctx context.Context, r store.Repo, tripID string) (*models.Trip, error) {
	trip, err := r.LockTrip(ctx, tripID)
	if err != nil {
		return nil, tripErr(err)
	}
	if !trip.Bookable() || trip.AvailableSeats <= 0 {
		return nil, ErrNoSeatsAvailable
	}

	ok, err := r.DecrementAvailableSeats(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoSeatsAvailable
	}
	trip.AvailableSeats--
	return trip, nil
}

// ReleaseSeatTx gives one seat back. It reports false when the trip was
// already at total seats.
func (s *SeatService) ReleaseSeatTx(ctx context.Context, r store.Repo, tripID string) (bool, error) {
	if _, err := r.LockTrip(ctx, tripID); err != nil {
		return false, tripErr(err)
	}
	return r.IncrementAvailableSeats(ctx, tripID)
}

func (s *SeatService) ReserveSeat(ctx context.Context, tripID string) (*models.Trip, error) {
	var trip *models.Trip
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		var err error
		trip, err = s.ReserveSeatTx(ctx, r, tripID)
		return err
	})
	if err != nil {
		return nil, classify("reserve seat", err)
	}
	return trip, nil
}

func (s *SeatService) ReleaseSeat(ctx context.Context, tripID string) (bool, error) {
	var released bool
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		var err error
		released, err = s.ReleaseSeatTx(ctx, r, tripID)
		return err
	})
	if err != nil {
		return false, classify("release seat", err)
	}
	return released, nil
}
