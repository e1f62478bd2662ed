package database

import (
	"context"

	"github.com/go-redis/redis/v8"
	"github.com/ridecredit/backend/internal/config"
	"github.com/sirupsen/logrus"
)

// InitRedis returns nil when Redis cannot be reached; callers treat Redis
// as optional.
func InitRedis(ctx context.Context, cfg config.RedisConfig, logger *logrus.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Warn("Redis connection failed, continuing without Redis")
		rdb.Close()
		return nil
	}

	logger.WithField("addr", cfg.Addr()).Info("Redis connection established")
	return rdb
}
