package postgres

import (
	"context"
	"database/sql"

	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
)

const bookingColumns = `id, rider_id, trip_id, status, price_charged, commission_fee, driver_payout, fee_account_id, idempotency_key, reserved_at, cancelled_at`

func scanBooking(row *sql.Row) (*models.Booking, error) {
	var (
		b         models.Booking
		status    string
		feeAcct   sql.NullString
		key       sql.NullString
		cancelled sql.NullTime
	)
	err := row.Scan(&b.ID, &b.RiderID, &b.TripID, &status, &b.PriceCharged, &b.CommissionFee,
		&b.DriverPayout, &feeAcct, &key, &b.ReservedAt, &cancelled)
	if err != nil {
		return nil, mapErr(err)
	}
	b.Status = models.BookingStatus(status)
	b.FeeAccountID = feeAcct.String
	b.IdempotencyKey = key.String
	if cancelled.Valid {
		t := cancelled.Time
		b.CancelledAt = &t
	}
	return &b, nil
}

func (r *repo) InsertBooking(ctx context.Context, b *models.Booking) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		b.ID, b.RiderID, b.TripID, string(b.Status), b.PriceCharged, b.CommissionFee, b.DriverPayout,
		sql.NullString{String: b.FeeAccountID, Valid: b.FeeAccountID != ""},
		sql.NullString{String: b.IdempotencyKey, Valid: b.IdempotencyKey != ""},
		b.ReservedAt, cancelledAt(b))
	return mapErr(err)
}

func cancelledAt(b *models.Booking) any {
	if b.CancelledAt == nil {
		return nil
	}
	return *b.CancelledAt
}

func (r *repo) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return scanBooking(r.q.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1`, bookingID))
}

func (r *repo) LockBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return scanBooking(r.q.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
		FOR UPDATE`, bookingID))
}

func (r *repo) FindBookingByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error) {
	return scanBooking(r.q.QueryRowContext(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE rider_id = $1 AND idempotency_key = $2`, riderID, key))
}

func (r *repo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	ok, err := r.execOne(ctx, `
		UPDATE bookings SET status = $1, cancelled_at = $2
		WHERE id = $3`, string(b.Status), cancelledAt(b), b.ID)
	if err != nil {
		return err
	}
	if !ok {
		return store.ErrNotFound
	}
	return nil
}
