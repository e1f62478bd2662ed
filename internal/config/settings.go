package config

import (
	"context"
	"fmt"

	"github.com/ridecredit/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Settings exposes the values that may change while the process runs. Every
// call re-reads viper so a changed key takes effect on the next computation.
type Settings struct {
	v *viper.Viper
}

func NewSettings(v *viper.Viper) *Settings {
	return &Settings{v: v}
}

// CommissionFee returns credits.commission_fee.
func (s *Settings) CommissionFee(_ context.Context) (decimal.Decimal, error) {
	fee, err := models.ParseCredits(s.v.GetString("credits.commission_fee"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("credits.commission_fee: %w", err)
	}
	if fee.IsNegative() {
		return decimal.Zero, fmt.Errorf("credits.commission_fee must not be negative")
	}
	return fee, nil
}

func (s *Settings) RatePerKM(_ context.Context) (decimal.Decimal, error) {
	rate, err := models.ParseCredits(s.v.GetString("credits.rate_per_km"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("credits.rate_per_km: %w", err)
	}
	return rate, nil
}

// PlatformAccount is the user id that collects commission. Empty disables it.
func (s *Settings) PlatformAccount() string {
	return s.v.GetString("credits.platform_account")
}
