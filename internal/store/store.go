// Package store defines persistence for accounts, credit transactions, trips
// and bookings.
//
// Credit transactions are append-only: there is no update or delete for them.
// The account balance is a cache of their sum and only changes together with
// an appended transaction inside the same WithTx scope.
//
// Implementations:
//   - store/postgres: database/sql + lib/pq, row locks via SELECT ... FOR UPDATE
//   - store/memory:   in-process maps with snapshot rollback, for tests and local runs
package store

import (
	"context"
	"errors"

	"github.com/ridecredit/backend/internal/models"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate is returned when a unique key (id or idempotency key) already exists.
	ErrDuplicate = errors.New("store: duplicate key")

	// ErrConflict is returned when an optimistic version check fails.
	ErrConflict = errors.New("store: concurrent modification")
)

// Repo is the set of operations available both inside and outside a
// transaction. Lock* methods only make sense inside WithTx.
type Repo interface {
	// GetAccount returns ErrNotFound for users that never transacted.
	GetAccount(ctx context.Context, userID string) (*models.Account, error)

	// LockAccount creates the account with a zero balance if needed and
	// locks it until the enclosing transaction ends.
	LockAccount(ctx context.Context, userID string) (*models.Account, error)

	// UpdateAccountBalance writes the cached balance, guarded by version.
	// Returns ErrConflict when the version no longer matches.
	UpdateAccountBalance(ctx context.Context, userID string, balance decimal.Decimal, version int64) error

	InsertCreditTransaction(ctx context.Context, tx *models.CreditTransaction) error

	// ListCreditTransactions returns the newest limit transactions first.
	ListCreditTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error)

	// SumCreditTransactions returns the sum of every committed amount for userID.
	SumCreditTransactions(ctx context.Context, userID string) (decimal.Decimal, error)

	InsertTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)
	LockTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// DecrementAvailableSeats takes one seat only if one is left. It reports
	// false when no row was changed.
	DecrementAvailableSeats(ctx context.Context, tripID string) (bool, error)

	// IncrementAvailableSeats returns one seat only while below total seats.
	IncrementAvailableSeats(ctx context.Context, tripID string) (bool, error)

	// InsertBooking returns ErrDuplicate when (rider, idempotency key) exists.
	InsertBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	LockBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	FindBookingByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
}

// Store is a Repo that can open transactional scopes.
type Store interface {
	Repo

	// WithTx runs fn inside one transaction. The transaction commits only if
	// fn returns nil; every other exit path rolls back.
	WithTx(ctx context.Context, fn func(Repo) error) error

	// ListAccountIDs returns every account's user id in ascending order.
	ListAccountIDs(ctx context.Context) ([]string, error)

	Ping(ctx context.Context) error
}
