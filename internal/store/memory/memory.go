// Package memory provides an in-process store.Store.
//
// All transactions are serialized behind one mutex. WithTx snapshots the
// state before running fn and restores it on any error, which gives the
// same all-or-nothing behaviour as a database transaction.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/shopspring/decimal"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

func New() *Memory {
	return &Memory{st: newState()}
}

type state struct {
	accounts    map[string]models.Account
	txs         map[string][]models.CreditTransaction
	trips       map[string]models.Trip
	bookings    map[string]models.Booking
	bookingKeys map[string]string
}

func newState() *state {
	return &state{
		accounts:    make(map[string]models.Account),
		txs:         make(map[string][]models.CreditTransaction),
		trips:       make(map[string]models.Trip),
		bookings:    make(map[string]models.Booking),
		bookingKeys: make(map[string]string),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.accounts {
		c.accounts[k] = v
	}
	for k, v := range s.txs {
		c.txs[k] = append([]models.CreditTransaction(nil), v...)
	}
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.bookingKeys {
		c.bookingKeys[k] = v
	}
	return c
}

// WithTx executes fn with exclusive access to the store. Writes go straight
// to the live state; on error (or a cancelled context) the snapshot taken
// before fn ran is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(store.Repo) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()

	if err := fn(&view{st: m.st}); err != nil {
		m.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) read(fn func(v *view) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(&view{st: m.st})
}

func (m *Memory) write(fn func(v *view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(&view{st: m.st})
}

func (m *Memory) GetAccount(ctx context.Context, userID string) (acc *models.Account, err error) {
	err = m.read(func(v *view) error {
		acc, err = v.GetAccount(ctx, userID)
		return err
	})
	return acc, err
}

func (m *Memory) LockAccount(ctx context.Context, userID string) (acc *models.Account, err error) {
	err = m.write(func(v *view) error {
		acc, err = v.LockAccount(ctx, userID)
		return err
	})
	return acc, err
}

func (m *Memory) UpdateAccountBalance(ctx context.Context, userID string, balance decimal.Decimal, version int64) error {
	return m.write(func(v *view) error {
		return v.UpdateAccountBalance(ctx, userID, balance, version)
	})
}

func (m *Memory) InsertCreditTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	return m.write(func(v *view) error {
		return v.InsertCreditTransaction(ctx, tx)
	})
}

func (m *Memory) ListCreditTransactions(ctx context.Context, userID string, limit int) (txs []models.CreditTransaction, err error) {
	err = m.read(func(v *view) error {
		txs, err = v.ListCreditTransactions(ctx, userID, limit)
		return err
	})
	return txs, err
}

func (m *Memory) SumCreditTransactions(ctx context.Context, userID string) (sum decimal.Decimal, err error) {
	err = m.read(func(v *view) error {
		sum, err = v.SumCreditTransactions(ctx, userID)
		return err
	})
	return sum, err
}

func (m *Memory) InsertTrip(ctx context.Context, trip *models.Trip) error {
	return m.write(func(v *view) error {
		return v.InsertTrip(ctx, trip)
	})
}

func (m *Memory) GetTrip(ctx context.Context, tripID string) (trip *models.Trip, err error) {
	err = m.read(func(v *view) error {
		trip, err = v.GetTrip(ctx, tripID)
		return err
	})
	return trip, err
}

func (m *Memory) LockTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return m.GetTrip(ctx, tripID)
}

func (m *Memory) DecrementAvailableSeats(ctx context.Context, tripID string) (ok bool, err error) {
	err = m.write(func(v *view) error {
		ok, err = v.DecrementAvailableSeats(ctx, tripID)
		return err
	})
	return ok, err
}

func (m *Memory) IncrementAvailableSeats(ctx context.Context, tripID string) (ok bool, err error) {
	err = m.write(func(v *view) error {
		ok, err = v.IncrementAvailableSeats(ctx, tripID)
		return err
	})
	return ok, err
}

func (m *Memory) InsertBooking(ctx context.Context, booking *models.Booking) error {
	return m.write(func(v *view) error {
		return v.InsertBooking(ctx, booking)
	})
}

func (m *Memory) GetBooking(ctx context.Context, bookingID string) (b *models.Booking, err error) {
	err = m.read(func(v *view) error {
		b, err = v.GetBooking(ctx, bookingID)
		return err
	})
	return b, err
}

func (m *Memory) LockBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return m.GetBooking(ctx, bookingID)
}

func (m *Memory) FindBookingByIdempotencyKey(ctx context.Context, riderID, key string) (b *models.Booking, err error) {
	err = m.read(func(v *view) error {
		b, err = v.FindBookingByIdempotencyKey(ctx, riderID, key)
		return err
	})
	return b, err
}

func (m *Memory) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	return m.write(func(v *view) error {
		return v.UpdateBooking(ctx, booking)
	})
}

// =============================================================================
// VIEW - lock-free operations on the state, used by both paths
// =============================================================================

type view struct {
	st *state
}

func now() time.Time {
	return time.Now().UTC()
}

func (v *view) GetAccount(_ context.Context, userID string) (*models.Account, error) {
	acc, ok := v.st.accounts[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &acc, nil
}

func (v *view) LockAccount(_ context.Context, userID string) (*models.Account, error) {
	acc, ok := v.st.accounts[userID]
	if !ok {
		t := now()
		acc = models.Account{UserID: userID, Balance: decimal.Zero, CreatedAt: t, UpdatedAt: t}
		v.st.accounts[userID] = acc
	}
	return &acc, nil
}

func (v *view) UpdateAccountBalance(_ context.Context, userID string, balance decimal.Decimal, version int64) error {
	acc, ok := v.st.accounts[userID]
	if !ok {
		return store.ErrNotFound
	}
	if acc.Version != version {
		return store.ErrConflict
	}
	acc.Balance = balance
	acc.Version++
	acc.UpdatedAt = now()
	v.st.accounts[userID] = acc
	return nil
}

func (v *view) InsertCreditTransaction(_ context.Context, tx *models.CreditTransaction) error {
	for _, existing := range v.st.txs[tx.UserID] {
		if existing.ID == tx.ID {
			return store.ErrDuplicate
		}
	}
	v.st.txs[tx.UserID] = append(v.st.txs[tx.UserID], *tx)
	return nil
}

func (v *view) ListCreditTransactions(_ context.Context, userID string, limit int) ([]models.CreditTransaction, error) {
	all := v.st.txs[userID]
	result := make([]models.CreditTransaction, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		result = append(result, all[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (v *view) SumCreditTransactions(_ context.Context, userID string) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, tx := range v.st.txs[userID] {
		sum = sum.Add(tx.Amount)
	}
	return sum, nil
}

func (v *view) InsertTrip(_ context.Context, trip *models.Trip) error {
	if _, ok := v.st.trips[trip.ID]; ok {
		return store.ErrDuplicate
	}
	v.st.trips[trip.ID] = *trip
	return nil
}

func (v *view) GetTrip(_ context.Context, tripID string) (*models.Trip, error) {
	trip, ok := v.st.trips[tripID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &trip, nil
}

func (v *view) LockTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	return v.GetTrip(ctx, tripID)
}

func (v *view) DecrementAvailableSeats(_ context.Context, tripID string) (bool, error) {
	trip, ok := v.st.trips[tripID]
	if !ok || trip.AvailableSeats <= 0 {
		return false, nil
	}
	trip.AvailableSeats--
	trip.UpdatedAt = now()
	v.st.trips[tripID] = trip
	return true, nil
}

func (v *view) IncrementAvailableSeats(_ context.Context, tripID string) (bool, error) {
	trip, ok := v.st.trips[tripID]
	if !ok || trip.AvailableSeats >= trip.TotalSeats {
		return false, nil
	}
	trip.AvailableSeats++
	trip.UpdatedAt = now()
	v.st.trips[tripID] = trip
	return true, nil
}

func bookingKey(riderID, key string) string {
	return riderID + "\x00" + key
}

func (v *view) InsertBooking(_ context.Context, booking *models.Booking) error {
	if _, ok := v.st.bookings[booking.ID]; ok {
		return store.ErrDuplicate
	}
	if booking.IdempotencyKey != "" {
		k := bookingKey(booking.RiderID, booking.IdempotencyKey)
		if _, ok := v.st.bookingKeys[k]; ok {
			return store.ErrDuplicate
		}
		v.st.bookingKeys[k] = booking.ID
	}
	v.st.bookings[booking.ID] = *booking
	return nil
}

func (v *view) GetBooking(_ context.Context, bookingID string) (*models.Booking, error) {
	b, ok := v.st.bookings[bookingID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &b, nil
}

func (v *view) LockBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return v.GetBooking(ctx, bookingID)
}

func (v *view) FindBookingByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error) {
	id, ok := v.st.bookingKeys[bookingKey(riderID, key)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v.GetBooking(ctx, id)
}

func (v *view) UpdateBooking(_ context.Context, booking *models.Booking) error {
	if _, ok := v.st.bookings[booking.ID]; !ok {
		return store.ErrNotFound
	}
	v.st.bookings[booking.ID] = *booking
	return nil
}

// Trips returns every trip ordered by id. Used by tests to check seat bounds.
func (m *Memory) Trips() []models.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trips := make([]models.Trip, 0, len(m.st.trips))
	for _, t := range m.st.trips {
		trips = append(trips, t)
	}
	sort.Slice(trips, func(i, j int) bool { return trips[i].ID < trips[j].ID })
	return trips
}

func (m *Memory) ListAccountIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	accounts := m.Accounts()
	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.UserID
	}
	return ids, nil
}

// Accounts returns every account ordered by user id.
func (m *Memory) Accounts() []models.Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accounts := make([]models.Account, 0, len(m.st.accounts))
	for _, a := range m.st.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].UserID < accounts[j].UserID })
	return accounts
}

var (
	_ store.Store = (*Memory)(nil)
	_ store.Repo  = (*view)(nil)
)
