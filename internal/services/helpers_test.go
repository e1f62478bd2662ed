package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ridecredit/backend/internal/events"
	"github.com/ridecredit/backend/internal/logging"
	"github.com/ridecredit/backend/internal/models"
	"github.com/ridecredit/backend/internal/store"
	"github.com/ridecredit/backend/internal/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var errInjected = errors.New("injected failure")

func credits(s string) decimal.Decimal {
	return models.MustParseCredits(s)
}

type staticSettings struct {
	mu       sync.Mutex
	fee      decimal.Decimal
	rate     decimal.Decimal
	platform string
	calls    int
}

func (s *staticSettings) CommissionFee(context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.fee, nil
}

func (s *staticSettings) RatePerKM(context.Context) (decimal.Decimal, error) {
	return s.rate, nil
}

func (s *staticSettings) PlatformAccount() string {
	return s.platform
}

type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Name() string { return "recorder" }

func (s *recordingSink) Handle(_ context.Context, evt events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *recordingSink) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// faultyStore injects an error into one Repo method while fail is set.
type faultyStore struct {
	*memory.Memory
	mu     sync.Mutex
	failOn string

	// gate holds idempotency lookups until gateParties callers are waiting.
	gate        chan struct{}
	gateParties int
}

func (f *faultyStore) holdLookups(parties int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	f.gateParties = parties
}

func (f *faultyStore) FindBookingByIdempotencyKey(ctx context.Context, riderID, key string) (*models.Booking, error) {
	f.mu.Lock()
	gate := f.gate
	if gate != nil {
		f.gateParties--
		if f.gateParties == 0 {
			close(gate)
			f.gate = nil
		}
	}
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.Memory.FindBookingByIdempotencyKey(ctx, riderID, key)
}

func (f *faultyStore) setFailure(method string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = method
}

func (f *faultyStore) failing(method string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failOn == method
}

func (f *faultyStore) WithTx(ctx context.Context, fn func(store.Repo) error) error {
	return f.Memory.WithTx(ctx, func(r store.Repo) error {
		return fn(&faultyRepo{Repo: r, store: f})
	})
}

type faultyRepo struct {
	store.Repo
	store *faultyStore
}

func (r *faultyRepo) InsertBooking(ctx context.Context, b *models.Booking) error {
	if r.store.failing("InsertBooking") {
		return errInjected
	}
	return r.Repo.InsertBooking(ctx, b)
}

func (r *faultyRepo) InsertCreditTransaction(ctx context.Context, tx *models.CreditTransaction) error {
	if r.store.failing("InsertCreditTransaction") {
		return errInjected
	}
	return r.Repo.InsertCreditTransaction(ctx, tx)
}

func (r *faultyRepo) UpdateAccountBalance(ctx context.Context, userID string, balance decimal.Decimal, version int64) error {
	if r.store.failing("UpdateAccountBalance") {
		return store.ErrConflict
	}
	return r.Repo.UpdateAccountBalance(ctx, userID, balance, version)
}

type fixture struct {
	mem      *memory.Memory
	faulty   *faultyStore
	settings *staticSettings
	sink     *recordingSink
	notifier *Notifier
	ledger   *LedgerService
	pricing  *PricingService
	seats    *SeatService
	trips    *TripService
	bookings *BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := logging.Discard()
	mem := memory.New()
	faulty := &faultyStore{Memory: mem}
	settings := &staticSettings{fee: credits("2.00"), rate: credits("1.50")}
	sink := &recordingSink{}
	notifier := NewNotifier(logger, time.Second, sink)

	ledger := NewLedgerService(faulty, notifier, logger)
	pricing := NewPricingService(settings)
	seats := NewSeatService(faulty)

	f := &fixture{
		mem:      mem,
		faulty:   faulty,
		settings: settings,
		sink:     sink,
		notifier: notifier,
		ledger:   ledger,
		pricing:  pricing,
		seats:    seats,
		trips:    NewTripService(faulty, logger),
		bookings: NewBookingService(faulty, ledger, pricing, seats, notifier, 5*time.Second, logger),
	}
	t.Cleanup(notifier.Wait)
	return f
}

func (f *fixture) trip(t *testing.T, driverID string, seats int, price string) *models.Trip {
	t.Helper()
	trip, err := f.trips.CreateTrip(context.Background(), driverID, CreateTripInput{
		Origin:       "Yaba",
		Destination:  "Ikeja",
		DepartureAt:  time.Now().Add(time.Hour),
		TotalSeats:   seats,
		PricePerSeat: credits(price),
	})
	require.NoError(t, err)
	return trip
}

func (f *fixture) tripWithStatus(t *testing.T, driverID string, status models.TripStatus) *models.Trip {
	t.Helper()
	trip := &models.Trip{
		ID:             "trip-" + string(status),
		DriverID:       driverID,
		TotalSeats:     3,
		AvailableSeats: 3,
		PricePerSeat:   credits("10.00"),
		Status:         status,
		DepartureAt:    time.Now(),
	}
	require.NoError(t, f.mem.InsertTrip(context.Background(), trip))
	return trip
}

func (f *fixture) fund(t *testing.T, userID, amount string) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), Posting{
		UserID: userID, Amount: credits(amount), Type: models.TxOther, Description: "top up",
	})
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string) string {
	t.Helper()
	b, err := f.ledger.GetBalance(context.Background(), userID)
	require.NoError(t, err)
	return b.StringFixed(2)
}

func (f *fixture) seatsLeft(t *testing.T, tripID string) int {
	t.Helper()
	trip, err := f.mem.GetTrip(context.Background(), tripID)
	require.NoError(t, err)
	return trip.AvailableSeats
}

// requireLedgerInvariants checks every account: balance equals the sum of
// its transactions and is never negative.
func (f *fixture) requireLedgerInvariants(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	for _, acc := range f.mem.Accounts() {
		sum, err := f.mem.SumCreditTransactions(ctx, acc.UserID)
		require.NoError(t, err)
		require.Truef(t, acc.Balance.Equal(sum), "account %s: balance %s != ledger %s", acc.UserID, acc.Balance, sum)
		require.Falsef(t, acc.Balance.IsNegative(), "account %s is negative", acc.UserID)
	}
	for _, trip := range f.mem.Trips() {
		require.GreaterOrEqual(t, trip.AvailableSeats, 0)
		require.LessOrEqual(t, trip.AvailableSeats, trip.TotalSeats)
	}
}
