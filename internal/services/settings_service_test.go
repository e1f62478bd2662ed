package services

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/ridecredit/backend/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsService_CommissionFee(t *testing.T) {
	ctx := context.Background()
	base := &staticSettings{fee: credits("2.00"), rate: credits("1.50"), platform: "platform"}

	t.Run("redis override wins", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())

		mock.ExpectGet(commissionFeeKey).SetVal("3.25")

		fee, err := s.CommissionFee(ctx)
		require.NoError(t, err)
		assert.Equal(t, "3.25", fee.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing override falls back", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())

		mock.ExpectGet(commissionFeeKey).RedisNil()

		fee, err := s.CommissionFee(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2.00", fee.StringFixed(2))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid override falls back", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())

		mock.ExpectGet(commissionFeeKey).SetVal("two dollars")

		fee, err := s.CommissionFee(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2.00", fee.StringFixed(2))
	})

	t.Run("redis error falls back", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())

		mock.ExpectGet(commissionFeeKey).SetErr(errors.New("connection refused"))

		fee, err := s.CommissionFee(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2.00", fee.StringFixed(2))
	})

	t.Run("no redis uses configuration", func(t *testing.T) {
		s := NewSettingsService(base, nil, logging.Discard())
		fee, err := s.CommissionFee(ctx)
		require.NoError(t, err)
		assert.Equal(t, "2.00", fee.StringFixed(2))
		assert.Equal(t, "platform", s.PlatformAccount())
	})
}

func TestSettingsService_SetCommissionFee(t *testing.T) {
	ctx := context.Background()
	base := &staticSettings{fee: credits("2.00")}

	t.Run("stores two decimal places", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())

		mock.ExpectSet(commissionFeeKey, "2.50", 0).SetVal("OK")

		require.NoError(t, s.SetCommissionFee(ctx, credits("2.5")))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("clear removes the key", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())

		mock.ExpectDel(commissionFeeKey).SetVal(1)

		require.NoError(t, s.ClearCommissionFee(ctx))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects negative fee", func(t *testing.T) {
		db, _ := redismock.NewClientMock()
		s := NewSettingsService(base, db, logging.Discard())
		assert.ErrorIs(t, s.SetCommissionFee(ctx, credits("-1.00")), ErrInvalidRequest)
	})

	t.Run("requires redis", func(t *testing.T) {
		s := NewSettingsService(base, nil, logging.Discard())
		assert.ErrorIs(t, s.SetCommissionFee(ctx, credits("1.00")), ErrOverridesUnavailable)
		assert.ErrorIs(t, s.ClearCommissionFee(ctx), ErrOverridesUnavailable)
	})
}
