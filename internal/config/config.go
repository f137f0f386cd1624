package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const PROD_STRING = "prod"

// Config holds all application configuration loaded from environment.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"dev"`
	ProdOrigins       string        `envconfig:"PROD_ORIGINS"`
	HTTPAddr          string        `envconfig:"HTTP_ADDR" default:":8080"`
	DBDSN             string        `envconfig:"DB_DSN" required:"true"`
	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenTTL time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"15m"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Empty RabbitURL disables domain event publishing.
	RabbitURL       string `envconfig:"RABBITMQ_URL"`
	BookingExchange string `envconfig:"BOOKING_EXCHANGE" default:"booking.exchange"`

	SlotTimeZone             string        `envconfig:"SLOT_TIME_ZONE" default:"UTC"`
	ReservationTTL           time.Duration `envconfig:"RESERVATION_TTL" default:"15m"`
	ReservationSweepSchedule string        `envconfig:"RESERVATION_SWEEP_SCHEDULE" default:"@every 1m"`
	PaymentLockTTL           time.Duration `envconfig:"PAYMENT_LOCK_TTL" default:"300s"`
	PaymentGatewaySecret     string        `envconfig:"PAYMENT_GATEWAY_SECRET" required:"true"`

	IsProduction bool           `ignored:"true"`
	Location     *time.Location `ignored:"true"`
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Printf("failed to load .env file: %v", err)
	}

	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	cfg.IsProduction = cfg.AppEnv == PROD_STRING
	if cfg.IsProduction && strings.TrimSpace(cfg.ProdOrigins) == "" {
		return nil, fmt.Errorf("PROD_ORIGINS is required in production")
	}

	loc, err := time.LoadLocation(cfg.SlotTimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid SLOT_TIME_ZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.ReservationTTL <= 0 {
		return nil, fmt.Errorf("RESERVATION_TTL must be positive")
	}
	if cfg.PaymentLockTTL < time.Second {
		return nil, fmt.Errorf("PAYMENT_LOCK_TTL must be at least one second")
	}

	return cfg, nil
}
