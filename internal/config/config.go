package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ridecredit/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	RabbitMQ  RabbitMQConfig
	JWT       JWTConfig
	Credits   CreditsConfig
	Booking   BookingConfig
	Notify    NotifyConfig
	Log       LogConfig
	Store     StoreConfig
	Reconcile ReconcileConfig
}

type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
}

// DSN returns the lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return c.Host + ":" + c.Port
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type JWTConfig struct {
	SecretKey string
}

type CreditsConfig struct {
	CommissionFee   decimal.Decimal
	RatePerKM       decimal.Decimal
	PlatformAccount string
}

type BookingConfig struct {
	Timeout time.Duration
}

type NotifyConfig struct {
	Timeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type StoreConfig struct {
	Driver string
}

// ReconcileConfig schedules the balance reconciliation job. Schedule uses
// cron syntax or descriptors like "@every 1h"; empty disables the job.
type ReconcileConfig struct {
	Schedule string
}

// envBindings maps dotted keys to the environment variables that override them.
var envBindings = map[string]string{
	"server.port":              "PORT",
	"database.host":            "DATABASE_HOST",
	"database.port":            "DATABASE_PORT",
	"database.user":            "DATABASE_USER",
	"database.password":        "DATABASE_PASSWORD",
	"database.name":            "DATABASE_NAME",
	"database.ssl_mode":        "DATABASE_SSL_MODE",
	"database.auto_migrate":    "DATABASE_AUTO_MIGRATE",
	"redis.host":               "REDIS_HOST",
	"redis.port":               "REDIS_PORT",
	"redis.password":           "REDIS_PASSWORD",
	"redis.db":                 "REDIS_DB",
	"rabbitmq.url":             "RABBITMQ_URL",
	"rabbitmq.exchange":        "RABBITMQ_EXCHANGE",
	"jwt.secret_key":           "JWT_SECRET_KEY",
	"credits.commission_fee":   "CREDITS_COMMISSION_FEE",
	"credits.rate_per_km":      "CREDITS_RATE_PER_KM",
	"credits.platform_account": "CREDITS_PLATFORM_ACCOUNT",
	"booking.timeout":          "BOOKING_TIMEOUT",
	"notify.timeout":           "NOTIFY_TIMEOUT",
	"log.level":                "LOG_LEVEL",
	"log.format":               "LOG_FORMAT",
	"store.driver":             "STORE_DRIVER",
	"reconcile.schedule":       "RECONCILE_SCHEDULE",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.name", "ride_credits")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Minute*5)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.exchange", "ride_events")

	v.SetDefault("credits.commission_fee", "2.00")
	v.SetDefault("credits.rate_per_km", "1.50")
	v.SetDefault("credits.platform_account", "")

	v.SetDefault("booking.timeout", 10*time.Second)
	v.SetDefault("notify.timeout", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", DriverPostgres)

	v.SetDefault("reconcile.schedule", "@every 1h")
}

// New builds a viper instance from defaults, an optional .env style file
// and the environment. A missing file is not an error.
func New(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	}
	v.AutomaticEnv()
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}
	if file != "" {
		if err := v.ReadInConfig(); err == nil {
			// dotenv keys arrive flat (credits_commission_fee); expose them
			// under their dotted names below the environment.
			for key, env := range envBindings {
				if fileKey := strings.ToLower(env); v.InConfig(fileKey) {
					v.SetDefault(key, v.Get(fileKey))
				}
			}
		}
	}
	return v
}

// Load reads and validates the full configuration.
func Load(v *viper.Viper) (*Config, error) {
	fee, err := models.ParseCredits(v.GetString("credits.commission_fee"))
	if err != nil {
		return nil, fmt.Errorf("credits.commission_fee: %w", err)
	}
	if fee.IsNegative() {
		return nil, fmt.Errorf("credits.commission_fee must not be negative")
	}

	rate, err := models.ParseCredits(v.GetString("credits.rate_per_km"))
	if err != nil {
		return nil, fmt.Errorf("credits.rate_per_km: %w", err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("credits.rate_per_km must not be negative")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetString("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			Name:            v.GetString("database.name"),
			SSLMode:         v.GetString("database.ssl_mode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetString("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
		},
		JWT: JWTConfig{
			SecretKey: v.GetString("jwt.secret_key"),
		},
		Credits: CreditsConfig{
			CommissionFee:   fee,
			RatePerKM:       rate,
			PlatformAccount: v.GetString("credits.platform_account"),
		},
		Booking: BookingConfig{Timeout: v.GetDuration("booking.timeout")},
		Notify:  NotifyConfig{Timeout: v.GetDuration("notify.timeout")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Store:     StoreConfig{Driver: v.GetString("store.driver")},
		Reconcile: ReconcileConfig{Schedule: v.GetString("reconcile.schedule")},
	}

	if cfg.Booking.Timeout <= 0 {
		return nil, fmt.Errorf("booking.timeout must be positive")
	}
	switch cfg.Store.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return nil, fmt.Errorf("store.driver %q is not one of %s, %s", cfg.Store.Driver, DriverPostgres, DriverMemory)
	}
	return cfg, nil
}
