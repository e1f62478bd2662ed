package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var accountCols = []string{"user_id", "balance", "version", "created_at", "updated_at"}

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestStore_WithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		s, mock := newMock(t)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO accounts").
			WithArgs("rider-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT user_id, balance, version, created_at, updated_at FROM accounts WHERE user_id = \\$1 FOR UPDATE").
			WithArgs("rider-1").
			WillReturnRows(sqlmock.NewRows(accountCols).AddRow("rider-1", "25.50", int64(3), time.Now(), time.Now()))
		mock.ExpectCommit()

		err := s.WithTx(ctx, func(r store.Repo) error {
			acc, err := r.LockAccount(ctx, "rider-1")
			if err != nil {
				return err
			}
			assert.True(t, acc.Balance.Equal(decimal.RequireFromString("25.50")))
			assert.Equal(t, int64(3), acc.Version)
			return nil
		})
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		s, mock := newMock(t)
		boom := errors.New("boom")

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := s.WithTx(ctx, func(r store.Repo) error { return boom })
		assert.ErrorIs(t, err, boom)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

		err := s.WithTx(ctx, func(r store.Repo) error {
			t.Fatal("fn must not run")
			return nil
		})
		assert.ErrorContains(t, err, "begin transaction")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_UpdateAccountBalance(t *testing.T) {
	ctx := context.Background()

	t.Run("version matches", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE accounts SET balance = \\$1, version = version \\+ 1, updated_at = NOW\\(\\) WHERE user_id = \\$2 AND version = \\$3").
			WithArgs("8", "driver-1", int64(2)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := s.UpdateAccountBalance(ctx, "driver-1", decimal.RequireFromString("8.00"), 2)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE accounts SET balance").
			WithArgs("8", "driver-1", int64(1)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdateAccountBalance(ctx, "driver-1", decimal.RequireFromString("8.00"), 1)
		assert.ErrorIs(t, err, store.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_GetAccount_NotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT user_id, balance, version, created_at, updated_at FROM accounts WHERE user_id = \\$1").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows(accountCols))

	_, err := s.GetAccount(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_MalformedIDIsNotFound(t *testing.T) {
	malformed := &pq.Error{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}

	t.Run("trip", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM trips WHERE id = \\$1").
			WithArgs("nope").
			WillReturnError(malformed)

		_, err := s.GetTrip(context.Background(), "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("booking", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectQuery("SELECT (.+) FROM bookings WHERE id = \\$1").
			WithArgs("nope").
			WillReturnError(malformed)

		_, err := s.GetBooking(context.Background(), "nope")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_InsertCreditTransaction(t *testing.T) {
	s, mock := newMock(t)
	tx := &models.CreditTransaction{
		ID:           "tx-1",
		UserID:       "rider-1",
		Amount:       decimal.RequireFromString("-10.00"),
		Type:         models.TxTripPurchase,
		Description:  "Seat on trip trip-1",
		ReferenceID:  "booking-1",
		BalanceAfter: decimal.RequireFromString("5.00"),
		CreatedAt:    time.Now(),
	}

	mock.ExpectExec("INSERT INTO credit_transactions").
		WithArgs("tx-1", "rider-1", "-10", "trip_purchase", "Seat on trip trip-1", "booking-1", "5", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assert.NoError(t, s.InsertCreditTransaction(context.Background(), tx))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_ListCreditTransactions(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "user_id", "amount", "type", "description", "reference_id", "balance_after", "created_at"}

	mock.ExpectQuery("SELECT (.+) FROM credit_transactions WHERE user_id = \\$1 ORDER BY seq DESC LIMIT \\$2").
		WithArgs("rider-1", 2).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("tx-2", "rider-1", "-10.00", "trip_purchase", "seat", "booking-1", "5.00", time.Now()).
			AddRow("tx-1", "rider-1", "15.00", "other", "top up", nil, "15.00", time.Now()))

	txs, err := s.ListCreditTransactions(context.Background(), "rider-1", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, models.TxTripPurchase, txs[0].Type)
	assert.Equal(t, "booking-1", txs[0].ReferenceID)
	assert.Equal(t, "", txs[1].ReferenceID)
	assert.Equal(t, "15.00", txs[1].Amount.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_SumCreditTransactions(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(amount\\), 0\\) FROM credit_transactions WHERE user_id = \\$1").
		WithArgs("rider-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow("7.60"))

	sum, err := s.SumCreditTransactions(context.Background(), "rider-1")
	require.NoError(t, err)
	assert.Equal(t, "7.60", sum.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_Seats(t *testing.T) {
	ctx := context.Background()

	t.Run("conditional decrement takes a seat", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE trips SET available_seats = available_seats - 1, updated_at = NOW\\(\\) WHERE id = \\$1 AND available_seats > 0").
			WithArgs("trip-1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := s.DecrementAvailableSeats(ctx, "trip-1")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no row affected means sold out", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE trips SET available_seats = available_seats - 1").
			WithArgs("trip-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := s.DecrementAvailableSeats(ctx, "trip-1")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("increment is bounded by total seats", func(t *testing.T) {
		s, mock := newMock(t)
		mock.ExpectExec("UPDATE trips SET available_seats = available_seats \\+ 1, updated_at = NOW\\(\\) WHERE id = \\$1 AND available_seats < total_seats").
			WithArgs("trip-1").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := s.IncrementAvailableSeats(ctx, "trip-1")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_LockTrip(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "driver_id", "origin", "destination", "departure_at", "total_seats", "available_seats", "price_per_seat", "status", "created_at", "updated_at"}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM trips WHERE id = \\$1 FOR UPDATE").
		WithArgs("trip-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("trip-1", "driver-1", "Lagos", "Ibadan", now, 4, 1, "10.00", "planned", now, now))

	trip, err := s.LockTrip(context.Background(), "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 1, trip.AvailableSeats)
	assert.Equal(t, models.TripPlanned, trip.Status)
	assert.Equal(t, "10.00", trip.PricePerSeat.StringFixed(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_InsertBooking_DuplicateKey(t *testing.T) {
	s, mock := newMock(t)
	b := &models.Booking{
		ID:             "booking-2",
		RiderID:        "rider-1",
		TripID:         "trip-1",
		Status:         models.BookingConfirmed,
		PriceCharged:   decimal.RequireFromString("10.00"),
		CommissionFee:  decimal.RequireFromString("2.00"),
		DriverPayout:   decimal.RequireFromString("8.00"),
		IdempotencyKey: "key-1",
		ReservedAt:     time.Now(),
	}

	mock.ExpectExec("INSERT INTO bookings").
		WithArgs("booking-2", "rider-1", "trip-1", "confirmed", "10", "2", "8", nil, "key-1", sqlmock.AnyArg(), nil).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "bookings_rider_id_idempotency_key_key"})

	err := s.InsertBooking(context.Background(), b)
	assert.ErrorIs(t, err, store.ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_FindBookingByIdempotencyKey(t *testing.T) {
	s, mock := newMock(t)
	cols := []string{"id", "rider_id", "trip_id", "status", "price_charged", "commission_fee", "driver_payout", "fee_account_id", "idempotency_key", "reserved_at", "cancelled_at"}
	now := time.Now()

	mock.ExpectQuery("SELECT (.+) FROM bookings WHERE rider_id = \\$1 AND idempotency_key = \\$2").
		WithArgs("rider-1", "key-1").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow("booking-1", "rider-1", "trip-1", "cancelled", "10.00", "2.00", "8.00", "platform", "key-1", now, now))

	b, err := s.FindBookingByIdempotencyKey(context.Background(), "rider-1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, b.Status)
	assert.Equal(t, "key-1", b.IdempotencyKey)
	assert.Equal(t, "platform", b.FeeAccountID)
	require.NotNil(t, b.CancelledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_UpdateBooking_Missing(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("UPDATE bookings SET status = \\$1, cancelled_at = \\$2 WHERE id = \\$3").
		WithArgs("cancelled", sqlmock.AnyArg(), "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	now := time.Now()
	err := s.UpdateBooking(context.Background(), &models.Booking{ID: "ghost", Status: models.BookingCancelled, CancelledAt: &now})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListAccountIDs(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectQuery("SELECT user_id FROM accounts ORDER BY user_id").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("alice").AddRow("bob"))

	ids, err := s.ListAccountIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}
