package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "2.00", cfg.Credits.CommissionFee.StringFixed(2))
	assert.Equal(t, "1.50", cfg.Credits.RatePerKM.StringFixed(2))
	assert.Equal(t, 10*time.Second, cfg.Booking.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Notify.Timeout)
	assert.Equal(t, "ride_events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "@every 1h", cfg.Reconcile.Schedule)
	assert.Equal(t, "host=localhost port=5432 user=postgres password=password dbname=ride_credits sslmode=disable", cfg.Database.DSN())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CREDITS_COMMISSION_FEE", "1.25")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("BOOKING_TIMEOUT", "3s")

	cfg, err := Load(New(""))
	require.NoError(t, err)
	assert.Equal(t, "1.25", cfg.Credits.CommissionFee.StringFixed(2))
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, 3*time.Second, cfg.Booking.Timeout)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("CREDITS_PLATFORM_ACCOUNT=platform\nLOG_LEVEL=debug\n"), 0o600))

	cfg, err := Load(New(path))
	require.NoError(t, err)
	assert.Equal(t, "platform", cfg.Credits.PlatformAccount)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
	}{
		{"fee with three decimals", "CREDITS_COMMISSION_FEE", "1.005"},
		{"negative fee", "CREDITS_COMMISSION_FEE", "-1.00"},
		{"rate not a number", "CREDITS_RATE_PER_KM", "abc"},
		{"unknown driver", "STORE_DRIVER", "sqlite"},
		{"zero booking timeout", "BOOKING_TIMEOUT", "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			_, err := Load(New(""))
			assert.Error(t, err)
		})
	}
}

func TestSettings_ReadsOnEveryCall(t *testing.T) {
	v := New("")
	s := NewSettings(v)
	ctx := context.Background()

	fee, err := s.CommissionFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2.00", fee.StringFixed(2))

	v.Set("credits.commission_fee", "3.50")
	fee, err = s.CommissionFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3.50", fee.StringFixed(2))

	v.Set("credits.commission_fee", "bad")
	_, err = s.CommissionFee(ctx)
	assert.Error(t, err)
}
