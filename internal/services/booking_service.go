package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ridecredit/backend/internal/events"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const maxIdempotencyKeyLength = 128

// errReplay signals that a concurrent request with the same idempotency key
// committed first.
var errReplay = errors.New("booking already recorded for idempotency key")

type Quote struct {
	TripID         string          `json:"trip_id"`
	Price          decimal.Decimal `json:"price"`
	CommissionFee  decimal.Decimal `json:"commission_fee"`
	DriverPayout   decimal.Decimal `json:"driver_payout"`
	Balance        decimal.Decimal `json:"balance"`
	SeatsAvailable int             `json:"seats_available"`
}

type ConfirmRequest struct {
	RiderID        string
	TripID         string
	IdempotencyKey string
}

type Confirmation struct {
	Booking    *models.Booking `json:"booking"`
	NewBalance decimal.Decimal `json:"new_balance"`
	Replayed   bool            `json:"replayed"`
}

type Cancellation struct {
	Booking    *models.Booking `json:"booking"`
	Refunded   decimal.Decimal `json:"refunded"`
	NewBalance decimal.Decimal `json:"new_balance"`
}

// BookingService books and cancels seats. Each booking is one transaction
// covering the seat count, every ledger entry and the booking row.
type BookingService struct {
	store    store.Store
	ledger   *LedgerService
	pricing  *PricingService
	seats    *SeatService
	notifier *Notifier
	timeout  time.Duration
	log      *logrus.Entry
}

func NewBookingService(st store.Store, ledger *LedgerService, pricing *PricingService, seats *SeatService, notifier *Notifier, timeout time.Duration, logger *logrus.Logger) *BookingService {
	return &BookingService{
		store:    st,
		ledger:   ledger,
		pricing:  pricing,
		seats:    seats,
		notifier: notifier,
		timeout:  timeout,
		log:      logger.WithField("component", "booking"),
	}
}

// preflight loads the trip outside any transaction and rejects requests that
// can never succeed.
func (s *BookingService) preflight(ctx context.Context, riderID, tripID string) (*models.Trip, error) {
	if strings.TrimSpace(riderID) == "" {
		return nil, invalid("rider_id", "is required")
	}
	if strings.TrimSpace(tripID) == "" {
		return nil, invalid("trip_id", "is required")
	}

	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, classify("load trip", tripErr(err))
	}
	if trip.DriverID == riderID {
		return nil, invalid("rider_id", "drivers cannot book their own trip")
	}
	return trip, nil
}

// Quote is read-only: it reports what a booking would cost and fails the
// same way Confirm would right now.
func (s *BookingService) Quote(ctx context.Context, riderID, tripID string) (*Quote, error) {
	trip, err := s.preflight(ctx, riderID, tripID)
	if err != nil {
		return nil, err
	}
	if !trip.Bookable() || trip.AvailableSeats <= 0 {
		return nil, ErrNoSeatsAvailable
	}

	price := s.pricing.TripCost(trip)
	split, err := s.pricing.Commission(ctx, price)
	if err != nil {
		return nil, classify("quote", err)
	}

	balance, err := s.ledger.GetBalance(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if balance.LessThan(price) {
		return nil, NewInsufficientFundsError(riderID, balance, price)
	}

	return &Quote{
		TripID:         trip.ID,
		Price:          price,
		CommissionFee:  split.Fee,
		DriverPayout:   split.Net,
		Balance:        balance,
		SeatsAvailable: trip.AvailableSeats,
	}, nil
}

// Confirm books one seat for the rider. With an idempotency key, a retried
// request returns the booking recorded the first time.
func (s *BookingService) Confirm(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	if len(req.IdempotencyKey) > maxIdempotencyKeyLength {
		return nil, invalid("idempotency_key", fmt.Sprintf("must be at most %d characters", maxIdempotencyKeyLength))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if req.IdempotencyKey != "" {
		if conf, err := s.replay(ctx, req); conf != nil || err != nil {
			return conf, err
		}
	}

	if _, err := s.preflight(ctx, req.RiderID, req.TripID); err != nil {
		return nil, err
	}

	var (
		booking    *models.Booking
		driverID   string
		newBalance decimal.Decimal
	)
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		trip, err := s.seats.ReserveSeatTx(ctx, r, req.TripID)
		if err != nil {
			return err
		}
		driverID = trip.DriverID

		price := s.pricing.TripCost(trip)
		split, err := s.pricing.Commission(ctx, price)
		if err != nil {
			return err
		}
		feeAccount := s.pricing.PlatformAccount()
		if feeAccount == req.RiderID || feeAccount == trip.DriverID || split.Fee.IsZero() {
			feeAccount = ""
		}

		accounts, err := s.ledger.LockAccounts(ctx, r, req.RiderID, trip.DriverID, feeAccount)
		if err != nil {
			return err
		}
		newBalance = accounts[req.RiderID].Balance

		booking = &models.Booking{
			ID:             uuid.NewString(),
			RiderID:        req.RiderID,
			TripID:         trip.ID,
			Status:         models.BookingConfirmed,
			PriceCharged:   price,
			CommissionFee:  split.Fee,
			DriverPayout:   split.Net,
			FeeAccountID:   feeAccount,
			IdempotencyKey: req.IdempotencyKey,
			ReservedAt:     time.Now().UTC(),
		}

		if price.IsPositive() {
			debit, err := s.ledger.DebitTx(ctx, r, Posting{
				UserID:      req.RiderID,
				Amount:      price,
				Type:        models.TxTripPurchase,
				Description: "Seat on trip " + trip.ID,
				ReferenceID: booking.ID,
			})
			if err != nil {
				return err
			}
			newBalance = debit.BalanceAfter
		}

		if split.Net.IsPositive() {
			if _, err := s.ledger.CreditTx(ctx, r, Posting{
				UserID:      trip.DriverID,
				Amount:      split.Net,
				Type:        models.TxTripEarning,
				Description: "Earning for trip " + trip.ID,
				ReferenceID: booking.ID,
			}); err != nil {
				return err
			}
		}

		if feeAccount != "" {
			if _, err := s.ledger.CreditTx(ctx, r, Posting{
				UserID:      feeAccount,
				Amount:      split.Fee,
				Type:        models.TxCommission,
				Description: "Commission for booking " + booking.ID,
				ReferenceID: booking.ID,
			}); err != nil {
				return err
			}
		}

		if err := r.InsertBooking(ctx, booking); err != nil {
			if errors.Is(err, store.ErrDuplicate) && req.IdempotencyKey != "" {
				return errReplay
			}
			return err
		}
		return nil
	})

	if err != nil && req.IdempotencyKey != "" && (errors.Is(err, errReplay) || IsClientError(err)) {
		// A concurrent request with the same key may have committed first and
		// taken the last seat or the rider's funds. Its booking is authoritative.
		conf, rerr := s.replay(ctx, req)
		if rerr != nil && errors.Is(err, errReplay) {
			return nil, rerr
		}
		if rerr == nil && conf != nil {
			return conf, nil
		}
	}
	if err != nil {
		err = classify("confirm booking", err)
		s.logRejection(req, err)
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"trip_id":    booking.TripID,
		"user_id":    booking.RiderID,
		"price":      booking.PriceCharged.StringFixed(2),
	}).Info("Booking confirmed")

	evt := events.New(events.BookingConfirmed)
	evt.BookingID = booking.ID
	evt.TripID = booking.TripID
	evt.RiderID = booking.RiderID
	evt.DriverID = driverID
	evt.Amount = booking.PriceCharged
	evt.CommissionFee = booking.CommissionFee
	evt.DriverPayout = booking.DriverPayout
	s.notifier.Notify(evt)

	return &Confirmation{Booking: booking, NewBalance: newBalance}, nil
}

// replay returns (nil, nil) when no booking exists for the key yet.
func (s *BookingService) replay(ctx context.Context, req ConfirmRequest) (*Confirmation, error) {
	existing, err := s.store.FindBookingByIdempotencyKey(ctx, req.RiderID, req.IdempotencyKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("idempotency lookup", err)
	}
	if existing.TripID != req.TripID {
		return nil, ErrIdempotencyConflict
	}

	balance, err := s.ledger.GetBalance(ctx, req.RiderID)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": existing.ID,
		"user_id":    req.RiderID,
	}).Info("Replayed booking for idempotency key")
	return &Confirmation{Booking: existing, NewBalance: balance, Replayed: true}, nil
}

func (s *BookingService) logRejection(req ConfirmRequest, err error) {
	entry := s.log.WithFields(logrus.Fields{
		"trip_id": req.TripID,
		"user_id": req.RiderID,
	}).WithError(err)

	if IsClientError(err) {
		entry.Info("Booking rejected")
		return
	}
	entry.Error("Booking aborted")
}

// Cancel reverses a confirmed booking: the seat goes back, the rider is
// refunded and the driver payout and commission are taken back. Only the
// rider or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, bookingID string, actor models.Identity) (*Cancellation, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, invalid("booking_id", "is required")
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		result   Cancellation
		driverID string
	)
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		booking, err := r.LockBooking(ctx, bookingID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrBookingNotFound
		}
		if err != nil {
			return err
		}
		if booking.RiderID != actor.UserID && !actor.IsAdmin() {
			return ErrForbidden
		}
		if booking.Status != models.BookingConfirmed {
			return ErrBookingNotCancellable
		}

		trip, err := r.LockTrip(ctx, booking.TripID)
		if err != nil {
			return tripErr(err)
		}
		if trip.Status == models.TripCompleted {
			return ErrBookingNotCancellable
		}
		driverID = trip.DriverID

		released, err := s.seats.ReleaseSeatTx(ctx, r, trip.ID)
		if err != nil {
			return err
		}
		if !released {
			// The refund still goes through; the seat count was already at
			// total and needs an operator to look at the trip.
			s.log.WithFields(logrus.Fields{
				"booking_id": booking.ID,
				"trip_id":    trip.ID,
				"seats":      trip.TotalSeats,
			}).Warn("Cancelled booking released no seat, trip already at total seats")
		}

		accounts, err := s.ledger.LockAccounts(ctx, r, booking.RiderID, trip.DriverID, booking.FeeAccountID)
		if err != nil {
			return err
		}
		result.NewBalance = accounts[booking.RiderID].Balance

		if booking.DriverPayout.IsPositive() {
			if _, err := s.ledger.DebitTx(ctx, r, Posting{
				UserID:      trip.DriverID,
				Amount:      booking.DriverPayout,
				Type:        models.TxTripRefund,
				Description: "Reversal of earning for booking " + booking.ID,
				ReferenceID: booking.ID,
			}); err != nil {
				return err
			}
		}

		if booking.FeeAccountID != "" && booking.CommissionFee.IsPositive() {
			if _, err := s.ledger.DebitTx(ctx, r, Posting{
				UserID:      booking.FeeAccountID,
				Amount:      booking.CommissionFee,
				Type:        models.TxTripRefund,
				Description: "Reversal of commission for booking " + booking.ID,
				ReferenceID: booking.ID,
			}); err != nil {
				return err
			}
		}

		if booking.PriceCharged.IsPositive() {
			refund, err := s.ledger.CreditTx(ctx, r, Posting{
				UserID:      booking.RiderID,
				Amount:      booking.PriceCharged,
				Type:        models.TxTripRefund,
				Description: "Refund for booking " + booking.ID,
				ReferenceID: booking.ID,
			})
			if err != nil {
				return err
			}
			result.NewBalance = refund.BalanceAfter
		}

		now := time.Now().UTC()
		booking.Status = models.BookingCancelled
		booking.CancelledAt = &now
		if err := r.UpdateBooking(ctx, booking); err != nil {
			return err
		}

		result.Booking = booking
		result.Refunded = booking.PriceCharged
		return nil
	})
	if err != nil {
		return nil, classify("cancel booking", err)
	}

	s.log.WithFields(logrus.Fields{
		"booking_id": result.Booking.ID,
		"trip_id":    result.Booking.TripID,
		"user_id":    result.Booking.RiderID,
		"refunded":   result.Refunded.StringFixed(2),
	}).Info("Booking cancelled")

	evt := events.New(events.BookingCancelled)
	evt.BookingID = result.Booking.ID
	evt.TripID = result.Booking.TripID
	evt.RiderID = result.Booking.RiderID
	evt.DriverID = driverID
	evt.Amount = result.Booking.PriceCharged
	evt.CommissionFee = result.Booking.CommissionFee
	evt.DriverPayout = result.Booking.DriverPayout
	s.notifier.Notify(evt)

	return &result, nil
}

// GetBooking is visible to its rider and to admins.
func (s *BookingService) GetBooking(ctx context.Context, bookingID string, actor models.Identity) (*models.Booking, error) {
	booking, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, classify("get booking", err)
	}
	if booking.RiderID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return booking, nil
}
