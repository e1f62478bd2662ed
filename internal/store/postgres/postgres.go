// Package postgres implements store.Store on database/sql with lib/pq.
//
// Rows that a unit of work mutates are locked with SELECT ... FOR UPDATE, and
// seat counts only move through conditional UPDATEs whose affected-row count
// is checked.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/ridecredit/backend/internal/store"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	repo
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{repo: repo{q: db}, db: db}
}

// WithTx begins a transaction, hands a tx-bound Repo to fn and commits only
// when fn succeeds. The deferred Rollback is a no-op after Commit.
func (s *Store) WithTx(ctx context.Context, fn func(store.Repo) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&repo{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *Store) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM accounts ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type repo struct {
	q queryer
}

// mapErr translates driver errors into store errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s", store.ErrDuplicate, pqErr.Constraint)
		case invalidTextRepresentation:
			// A malformed UUID cannot name any row.
			return fmt.Errorf("%w: %s", store.ErrNotFound, pqErr.Message)
		}
	}
	return err
}

var (
	_ store.Store = (*Store)(nil)
	_ store.Repo  = (*repo)(nil)
)
