package services

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/ridecredit/backend/internal/events"
	"github.com/shopspring/decimal"
)

// StatsService keeps running counters in Redis hashes. Amounts are stored in
// cents so increments stay exact.
type StatsService struct {
	rdb *redis.Client
}

func NewStatsService(rdb *redis.Client) *StatsService {
	return &StatsService{rdb: rdb}
}

func (s *StatsService) Name() string { return "stats" }

func cents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

func (s *StatsService) Handle(ctx context.Context, evt events.Event) error {
	if s.rdb == nil {
		return nil
	}

	switch evt.Type {
	case events.BookingConfirmed:
		if err := s.rdb.HIncrBy(ctx, "stats:trip:"+evt.TripID, "bookings", 1).Err(); err != nil {
			return err
		}
		if err := s.rdb.HIncrBy(ctx, "stats:rider:"+evt.RiderID, "spent_cents", cents(evt.Amount)).Err(); err != nil {
			return err
		}
		if err := s.rdb.HIncrBy(ctx, "stats:driver:"+evt.DriverID, "earned_cents", cents(evt.DriverPayout)).Err(); err != nil {
			return err
		}
		return s.rdb.HIncrBy(ctx, "stats:platform", "commission_cents", cents(evt.CommissionFee)).Err()

	case events.BookingCancelled:
		if err := s.rdb.HIncrBy(ctx, "stats:trip:"+evt.TripID, "cancellations", 1).Err(); err != nil {
			return err
		}
		if err := s.rdb.HIncrBy(ctx, "stats:rider:"+evt.RiderID, "spent_cents", -cents(evt.Amount)).Err(); err != nil {
			return err
		}
		if err := s.rdb.HIncrBy(ctx, "stats:driver:"+evt.DriverID, "earned_cents", -cents(evt.DriverPayout)).Err(); err != nil {
			return err
		}
		return s.rdb.HIncrBy(ctx, "stats:platform", "commission_cents", -cents(evt.CommissionFee)).Err()

	case events.LedgerAdjusted, events.LedgerTransfer:
		return s.rdb.HIncrBy(ctx, "stats:ledger", string(evt.Type), 1).Err()
	}
	return nil
}
