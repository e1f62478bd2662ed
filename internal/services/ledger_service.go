package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ridecredit/backend/internal/events"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Posting describes one side of a ledger movement. Amount is always positive;
// the direction comes from the call (DebitTx or CreditTx).
type Posting struct {
	UserID      string
	Amount      decimal.Decimal
	Type        models.CreditTransactionType
	Description string
	ReferenceID string
}

func (p Posting) validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return invalid("user_id", "is required")
	}
	if err := validateAmount("amount", p.Amount); err != nil {
		return err
	}
	if !p.Type.Valid() {
		return invalid("type", "unknown transaction type "+string(p.Type))
	}
	return nil
}

func validateAmount(field string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return invalid(field, "must be greater than zero")
	}
	if !models.HasCreditPrecision(amount) {
		return invalid(field, "must have at most two fraction digits")
	}
	if !models.WithinCreditRange(amount) {
		return invalid(field, "must not exceed "+models.FormatCredits(models.MaxCredits))
	}
	return nil
}

type TransferResult struct {
	Debit  *models.CreditTransaction `json:"debit"`
	Credit *models.CreditTransaction `json:"credit"`
}

type Reconciliation struct {
	UserID        string          `json:"user_id"`
	CachedBalance decimal.Decimal `json:"cached_balance"`
	LedgerSum     decimal.Decimal `json:"ledger_sum"`
	Consistent    bool            `json:"consistent"`
}

// LedgerService owns every change to account balances. Balances only move
// together with an appended credit transaction.
type LedgerService struct {
	store    store.Store
	notifier *Notifier
	log      *logrus.Entry
}

func NewLedgerService(st store.Store, notifier *Notifier, logger *logrus.Logger) *LedgerService {
	return &LedgerService{
		store:    st,
		notifier: notifier,
		log:      logger.WithField("component", "ledger"),
	}
}

// GetBalance returns zero for users that never transacted.
func (s *LedgerService) GetBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, classify("get balance", err)
	}
	return acc.Balance, nil
}

// GetAccount is the strict variant of GetBalance.
func (s *LedgerService) GetAccount(ctx context.Context, userID string) (*models.Account, error) {
	acc, err := s.store.GetAccount(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, classify("get account", err)
	}
	return acc, nil
}

// LockAccounts locks every distinct user id in sorted order. Units of work
// that touch several accounts call it first so two of them never wait on
// each other in opposite order.
func (s *LedgerService) LockAccounts(ctx context.Context, r store.Repo, userIDs ...string) (map[string]*models.Account, error) {
	ids := make([]string, 0, len(userIDs))
	seen := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)

	locked := make(map[string]*models.Account, len(ids))
	for _, id := range ids {
		acc, err := r.LockAccount(ctx, id)
		if err != nil {
			return nil, err
		}
		locked[id] = acc
	}
	return locked, nil
}

// DebitTx appends a negative transaction inside the caller's transaction.
func (s *LedgerService) DebitTx(ctx context.Context, r store.Repo, p Posting) (*models.CreditTransaction, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, r, p, p.Amount.Neg())
}

// CreditTx appends a positive transaction inside the caller's transaction.
func (s *LedgerService) CreditTx(ctx context.Context, r store.Repo, p Posting) (*models.CreditTransaction, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return s.apply(ctx, r, p, p.Amount)
}

func (s *LedgerService) apply(ctx context.Context, r store.Repo, p Posting, signed decimal.Decimal) (*models.CreditTransaction, error) {
	acc, err := r.LockAccount(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	newBalance := acc.Balance.Add(signed)
	if newBalance.IsNegative() {
		return nil, NewInsufficientFundsError(p.UserID, acc.Balance, p.Amount)
	}
	if !models.WithinCreditRange(newBalance) {
		return nil, invalid("amount", "would take the balance of "+p.UserID+" above "+models.FormatCredits(models.MaxCredits))
	}

	tx := &models.CreditTransaction{
		ID:           uuid.NewString(),
		UserID:       p.UserID,
		Amount:       signed,
		Type:         p.Type,
		Description:  p.Description,
		ReferenceID:  p.ReferenceID,
		BalanceAfter: newBalance,
		CreatedAt:    time.Now().UTC(),
	}

	if err := r.InsertCreditTransaction(ctx, tx); err != nil {
		return nil, err
	}
	if err := r.UpdateAccountBalance(ctx, p.UserID, newBalance, acc.Version); err != nil {
		return nil, err
	}
	return tx, nil
}

// Debit runs DebitTx in its own transaction.
func (s *LedgerService) Debit(ctx context.Context, p Posting) (*models.CreditTransaction, error) {
	var tx *models.CreditTransaction
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		var err error
		tx, err = s.DebitTx(ctx, r, p)
		return err
	})
	if err != nil {
		return nil, classify("debit", err)
	}
	return tx, nil
}

// Credit runs CreditTx in its own transaction.
func (s *LedgerService) Credit(ctx context.Context, p Posting) (*models.CreditTransaction, error) {
	var tx *models.CreditTransaction
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		var err error
		tx, err = s.CreditTx(ctx, r, p)
		return err
	})
	if err != nil {
		return nil, classify("credit", err)
	}
	return tx, nil
}

// Transfer moves amount between two users as one unit of work.
func (s *LedgerService) Transfer(ctx context.Context, fromUserID, toUserID string, amount decimal.Decimal, description string) (*TransferResult, error) {
	if fromUserID == toUserID {
		return nil, invalid("to_user_id", "must differ from from_user_id")
	}
	if description == "" {
		description = "Transfer"
	}
	reference := uuid.NewString()

	var result TransferResult
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		if _, err := s.LockAccounts(ctx, r, fromUserID, toUserID); err != nil {
			return err
		}

		var err error
		result.Debit, err = s.DebitTx(ctx, r, Posting{
			UserID: fromUserID, Amount: amount, Type: models.TxTransfer,
			Description: description, ReferenceID: reference,
		})
		if err != nil {
			return err
		}

		result.Credit, err = s.CreditTx(ctx, r, Posting{
			UserID: toUserID, Amount: amount, Type: models.TxTransfer,
			Description: description, ReferenceID: reference,
		})
		return err
	})
	if err != nil {
		return nil, classify("transfer", err)
	}

	s.log.WithFields(logrus.Fields{
		"from_user_id": fromUserID,
		"to_user_id":   toUserID,
		"amount":       amount.StringFixed(2),
	}).Info("Transfer committed")

	evt := events.New(events.LedgerTransfer)
	evt.UserID = fromUserID
	evt.CounterpartyID = toUserID
	evt.Amount = amount
	evt.TransactionType = string(models.TxTransfer)
	evt.Description = description
	s.notifier.Notify(evt)

	return &result, nil
}

// AdminAdjust applies a signed amount to one account: positive credits,
// negative debits.
func (s *LedgerService) AdminAdjust(ctx context.Context, userID string, amount decimal.Decimal, typ models.CreditTransactionType, description string) (*models.CreditTransaction, error) {
	if amount.IsZero() {
		return nil, invalid("amount", "must not be zero")
	}

	p := Posting{
		UserID:      userID,
		Amount:      amount.Abs(),
		Type:        typ,
		Description: description,
	}

	var (
		tx  *models.CreditTransaction
		err error
	)
	if amount.IsNegative() {
		tx, err = s.Debit(ctx, p)
	} else {
		tx, err = s.Credit(ctx, p)
	}
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  tx.Amount.StringFixed(2),
		"type":    typ,
	}).Info("Account adjusted")

	evt := events.New(events.LedgerAdjusted)
	evt.UserID = userID
	evt.Amount = tx.Amount
	evt.TransactionType = string(typ)
	evt.Description = description
	s.notifier.Notify(evt)

	return tx, nil
}

// History returns the newest transactions first.
func (s *LedgerService) History(ctx context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	txs, err := s.store.ListCreditTransactions(ctx, userID, limit)
	if err != nil {
		return nil, classify("history", err)
	}
	if txs == nil {
		txs = []models.CreditTransaction{}
	}
	return txs, nil
}

// Reconcile compares the cached balance with the sum of the ledger.
func (s *LedgerService) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.store.WithTx(ctx, func(r store.Repo) error {
		acc, err := r.GetAccount(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		sum, err := r.SumCreditTransactions(ctx, userID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{
			UserID:        userID,
			CachedBalance: acc.Balance,
			LedgerSum:     sum,
			Consistent:    acc.Balance.Equal(sum),
		}
		return nil
	})
	if err != nil {
		return nil, classify("reconcile", err)
	}

	if !rec.Consistent {
		s.log.WithFields(logrus.Fields{
			"user_id":        userID,
			"cached_balance": rec.CachedBalance.StringFixed(2),
			"ledger_sum":     rec.LedgerSum.StringFixed(2),
		}).Error("Balance does not match ledger")
	}
	return rec, nil
}
