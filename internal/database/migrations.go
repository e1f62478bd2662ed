package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		user_id    TEXT          PRIMARY KEY,
		balance    NUMERIC(14,2) NOT NULL DEFAULT 0 CHECK (balance >= 0),
		version    BIGINT        NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS credit_transactions (
		seq           BIGSERIAL     UNIQUE,
		id            UUID          PRIMARY KEY,
		user_id       TEXT          NOT NULL REFERENCES accounts(user_id),
		amount        NUMERIC(14,2) NOT NULL CHECK (amount <> 0),
		type          VARCHAR(32)   NOT NULL CHECK (type IN ('trip_purchase', 'trip_earning', 'transfer', 'other', 'trip_refund', 'commission')),
		description   TEXT          NOT NULL DEFAULT '',
		reference_id  TEXT,
		balance_after NUMERIC(14,2) NOT NULL,
		created_at    TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_credit_transactions_user_seq
		ON credit_transactions(user_id, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS trips (
		id              UUID          PRIMARY KEY,
		driver_id       TEXT          NOT NULL,
		origin          TEXT          NOT NULL DEFAULT '',
		destination     TEXT          NOT NULL DEFAULT '',
		departure_at    TIMESTAMPTZ   NOT NULL,
		total_seats     INTEGER       NOT NULL CHECK (total_seats > 0),
		available_seats INTEGER       NOT NULL CHECK (available_seats >= 0 AND available_seats <= total_seats),
		price_per_seat  NUMERIC(14,2) NOT NULL CHECK (price_per_seat >= 0),
		status          VARCHAR(16)   NOT NULL CHECK (status IN ('planned', 'active', 'completed', 'cancelled')),
		created_at      TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		updated_at      TIMESTAMPTZ   NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id              UUID          PRIMARY KEY,
		rider_id        TEXT          NOT NULL,
		trip_id         UUID          NOT NULL REFERENCES trips(id),
		status          VARCHAR(16)   NOT NULL CHECK (status IN ('pending', 'confirmed', 'cancelled')),
		price_charged   NUMERIC(14,2) NOT NULL,
		commission_fee  NUMERIC(14,2) NOT NULL DEFAULT 0,
		driver_payout   NUMERIC(14,2) NOT NULL DEFAULT 0,
		fee_account_id  TEXT,
		idempotency_key TEXT,
		reserved_at     TIMESTAMPTZ   NOT NULL DEFAULT NOW(),
		cancelled_at    TIMESTAMPTZ,
		UNIQUE (rider_id, idempotency_key)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_trip_id
		ON bookings(trip_id)`,
}

// Migrate creates tables and indexes inside one transaction.
func Migrate(ctx context.Context, db *sql.DB, logger *logrus.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration begin: %w", err)
	}
	defer tx.Rollback()

	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration commit: %w", err)
	}
	logger.WithField("statements", len(schema)).Info("Database schema is up to date")
	return nil
}
