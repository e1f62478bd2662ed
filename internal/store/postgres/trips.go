package postgres

import (
	"context"
	"database/sql"

	"github.com/ridecredit/backend/internal/models"
)

const tripColumns = `id, driver_id, origin, destination, departure_at, total_seats, available_seats, price_per_seat, status, created_at, updated_at`

func scanTrip(row *sql.Row) (*models.Trip, error) {
	var (
		trip   models.Trip
		status string
	)
	err := row.Scan(&trip.ID, &trip.DriverID, &trip.Origin, &trip.Destination, &trip.DepartureAt,
		&trip.TotalSeats, &trip.AvailableSeats, &trip.PricePerSeat, &status, &trip.CreatedAt, &trip.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	trip.Status = models.TripStatus(status)
	return &trip, nil
}

func (r *repo) InsertTrip(ctx context.Context, trip *models.Trip) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO trips (`+tripColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		trip.ID, trip.DriverID, trip.Origin, trip.Destination, trip.DepartureAt,
		trip.TotalSeats, trip.AvailableSeats, trip.PricePerSeat, string(trip.Status),
		trip.CreatedAt, trip.UpdatedAt)
	return mapErr(err)
}

func (r *repo) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return scanTrip(r.q.QueryRowContext(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE id = $1`, tripID))
}

func (r *repo) LockTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return scanTrip(r.q.QueryRowContext(ctx, `
		SELECT `+tripColumns+`
		FROM trips
		WHERE id = $1
		FOR UPDATE`, tripID))
}

func (r *repo) DecrementAvailableSeats(ctx context.Context, tripID string) (bool, error) {
	return r.execOne(ctx, `
		UPDATE trips SET available_seats = available_seats - 1, updated_at = NOW()
		WHERE id = $1 AND available_seats > 0`, tripID)
}

func (r *repo) IncrementAvailableSeats(ctx context.Context, tripID string) (bool, error) {
	return r.execOne(ctx, `
		UPDATE trips SET available_seats = available_seats + 1, updated_at = NOW()
		WHERE id = $1 AND available_seats < total_seats`, tripID)
}

// execOne runs a conditional statement and reports whether it touched a row.
func (r *repo) execOne(ctx context.Context, query string, args ...any) (bool, error) {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
