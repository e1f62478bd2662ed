package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedTrip(t *testing.T, m *Memory, id string, seats int) {
	t.Helper()
	require.NoError(t, m.InsertTrip(context.Background(), &models.Trip{
		ID:             id,
		DriverID:       "driver-1",
		TotalSeats:     seats,
		AvailableSeats: seats,
		PricePerSeat:   decimal.RequireFromString("10.00"),
		Status:         models.TripPlanned,
		DepartureAt:    time.Now().Add(time.Hour),
	}))
}

func TestWithTx_RollbackOnError(t *testing.T) {
	m := New()
	ctx := context.Background()
	seedTrip(t, m, "trip-1", 2)

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(r store.Repo) error {
		acc, err := r.LockAccount(ctx, "rider-1")
		require.NoError(t, err)
		require.NoError(t, r.UpdateAccountBalance(ctx, "rider-1", decimal.NewFromInt(5), acc.Version))
		ok, err := r.DecrementAvailableSeats(ctx, "trip-1")
		require.NoError(t, err)
		require.True(t, ok)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = m.GetAccount(ctx, "rider-1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	trip, err := m.GetTrip(ctx, "trip-1")
	require.NoError(t, err)
	assert.Equal(t, 2, trip.AvailableSeats)
}

func TestWithTx_RollbackOnCancelledContext(t *testing.T) {
	m := New()
	ctx, cancel := context.WithCancel(context.Background())

	err := m.WithTx(ctx, func(r store.Repo) error {
		_, err := r.LockAccount(ctx, "rider-1")
		cancel()
		return err
	})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.GetAccount(context.Background(), "rider-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateAccountBalance_VersionCheck(t *testing.T) {
	m := New()
	ctx := context.Background()

	acc, err := m.LockAccount(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, m.UpdateAccountBalance(ctx, "u1", decimal.NewFromInt(3), acc.Version))

	err = m.UpdateAccountBalance(ctx, "u1", decimal.NewFromInt(4), acc.Version)
	assert.ErrorIs(t, err, store.ErrConflict)

	got, err := m.GetAccount(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, int64(1), got.Version)
}

func TestSeats_Bounds(t *testing.T) {
	m := New()
	ctx := context.Background()
	seedTrip(t, m, "trip-1", 1)

	ok, err := m.IncrementAvailableSeats(ctx, "trip-1")
	require.NoError(t, err)
	assert.False(t, ok, "cannot exceed total seats")

	ok, _ = m.DecrementAvailableSeats(ctx, "trip-1")
	assert.True(t, ok)
	ok, _ = m.DecrementAvailableSeats(ctx, "trip-1")
	assert.False(t, ok, "cannot go below zero")

	ok, _ = m.DecrementAvailableSeats(ctx, "missing")
	assert.False(t, ok)
}

func TestBookings_IdempotencyIndex(t *testing.T) {
	m := New()
	ctx := context.Background()

	b := &models.Booking{ID: "b1", RiderID: "r1", TripID: "t1", Status: models.BookingConfirmed, IdempotencyKey: "k1"}
	require.NoError(t, m.InsertBooking(ctx, b))

	dup := &models.Booking{ID: "b2", RiderID: "r1", TripID: "t2", IdempotencyKey: "k1"}
	assert.ErrorIs(t, m.InsertBooking(ctx, dup), store.ErrDuplicate)

	other := &models.Booking{ID: "b3", RiderID: "r2", TripID: "t1", IdempotencyKey: "k1"}
	assert.NoError(t, m.InsertBooking(ctx, other), "keys are scoped per rider")

	found, err := m.FindBookingByIdempotencyKey(ctx, "r1", "k1")
	require.NoError(t, err)
	assert.Equal(t, "b1", found.ID)

	_, err = m.FindBookingByIdempotencyKey(ctx, "r1", "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreditTransactions_ListAndSum(t *testing.T) {
	m := New()
	ctx := context.Background()

	for i, amt := range []string{"10.00", "-2.50", "0.10"} {
		require.NoError(t, m.InsertCreditTransaction(ctx, &models.CreditTransaction{
			ID:     string(rune('a' + i)),
			UserID: "u1",
			Amount: decimal.RequireFromString(amt),
			Type:   models.TxOther,
		}))
	}

	sum, err := m.SumCreditTransactions(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "7.60", sum.StringFixed(2))

	txs, err := m.ListCreditTransactions(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "c", txs[0].ID)
	assert.Equal(t, "b", txs[1].ID)
}
