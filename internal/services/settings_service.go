package services

import (
	"context"
	"errors"

	"github.com/go-redis/redis/v8"
	"github.com/ridecredit/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const commissionFeeKey = "settings:credits.commission_fee"

var ErrOverridesUnavailable = errors.New("runtime settings overrides require redis")

// SettingsProvider is the configuration the pricing rules depend on.
type SettingsProvider interface {
	CommissionFee(ctx context.Context) (decimal.Decimal, error)
	RatePerKM(ctx context.Context) (decimal.Decimal, error)
	PlatformAccount() string
}

// SettingsService layers runtime overrides kept in Redis over the static
// configuration. Without Redis it behaves exactly like the base provider.
type SettingsService struct {
	base SettingsProvider
	rdb  *redis.Client
	log  *logrus.Entry
}

func NewSettingsService(base SettingsProvider, rdb *redis.Client, logger *logrus.Logger) *SettingsService {
	return &SettingsService{
		base: base,
		rdb:  rdb,
		log:  logger.WithField("component", "settings"),
	}
}

// CommissionFee prefers a valid Redis override and falls back to config.
func (s *SettingsService) CommissionFee(ctx context.Context) (decimal.Decimal, error) {
	if s.rdb != nil {
		val, err := s.rdb.Get(ctx, commissionFeeKey).Result()
		switch {
		case err == nil:
			fee, perr := models.ParseCredits(val)
			if perr == nil && !fee.IsNegative() {
				return fee, nil
			}
			s.log.WithField("value", val).Warn("Ignoring invalid commission fee override")
		case !errors.Is(err, redis.Nil):
			s.log.WithError(err).Warn("Commission fee override unavailable, using configuration")
		}
	}
	return s.base.CommissionFee(ctx)
}

func (s *SettingsService) SetCommissionFee(ctx context.Context, fee decimal.Decimal) error {
	if fee.IsNegative() {
		return invalid("commission_fee", "must not be negative")
	}
	if !models.HasCreditPrecision(fee) {
		return invalid("commission_fee", "must have at most two fraction digits")
	}
	if s.rdb == nil {
		return ErrOverridesUnavailable
	}
	if err := s.rdb.Set(ctx, commissionFeeKey, models.FormatCredits(fee), 0).Err(); err != nil {
		return err
	}
	s.log.WithField("commission_fee", models.FormatCredits(fee)).Info("Commission fee override set")
	return nil
}

// ClearCommissionFee removes the override so configuration applies again.
func (s *SettingsService) ClearCommissionFee(ctx context.Context) error {
	if s.rdb == nil {
		return ErrOverridesUnavailable
	}
	return s.rdb.Del(ctx, commissionFeeKey).Err()
}

func (s *SettingsService) RatePerKM(ctx context.Context) (decimal.Decimal, error) {
	return s.base.RatePerKM(ctx)
}

func (s *SettingsService) PlatformAccount() string {
	return s.base.PlatformAccount()
}
