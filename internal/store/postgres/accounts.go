package postgres

import (
	"context"
	"database/sql"

	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
)

func scanAccount(row *sql.Row) (*models.Account, error) {
	var acc models.Account
	err := row.Scan(&acc.UserID, &acc.Balance, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &acc, nil
}

func (r *repo) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	return scanAccount(r.q.QueryRowContext(ctx, `
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1`, userID))
}

func (r *repo) LockAccount(ctx context.Context, userID string) (*models.Account, error) {
	if _, err := r.q.ExecContext(ctx, `
		INSERT INTO accounts (user_id, balance, version)
		VALUES ($1, 0, 0)
		ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return nil, mapErr(err)
	}

	return scanAccount(r.q.QueryRowContext(ctx, `
		SELECT user_id, balance, version, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
		FOR UPDATE`, userID))
}

func (r *repo) UpdateAccountBalance(ctx context.Context, userID string, balance decimal.Decimal, version int64) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE user_id = $2 AND version = $3`,
		balance, userID, version)
	if err != nil {
		return mapErr(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (r *repo) InsertCreditTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO credit_transactions (id, user_id, amount, type, description, reference_id, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, tx.UserID, tx.Amount, string(tx.Type), tx.Description,
		sql.NullString{String: tx.ReferenceID, Valid: tx.ReferenceID != ""},
		tx.BalanceAfter, tx.CreatedAt)
	return mapErr(err)
}

func (r *repo) ListCreditTransactions(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	query := `
		SELECT id, user_id, amount, type, description, reference_id, balance_after, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY seq DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var txs []models.CreditTransaction
	for rows.Next() {
		var (
			tx  models.CreditTransaction
			typ string
			ref sql.NullString
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &tx.Amount, &typ, &tx.Description, &ref, &tx.BalanceAfter, &tx.CreatedAt); err != nil {
			return nil, err
		}
		tx.Type = models.CreditTransactionType(typ)
		tx.ReferenceID = ref.String
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *repo) SumCreditTransactions(ctx context.Context, userID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.q.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE user_id = $1`, userID).Scan(&sum)
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return sum, nil
}
