// Package config reads the service settings from the environment, after an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	ServiceName    = "hotel"
	ServiceVersion = "0.1.0"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

var (
	ErrUnknownDriver      = errors.New("STORAGE_DRIVER must be memory or postgres")
	ErrDatabaseURLMissing = errors.New("DATABASE_URL environment variable is required for the postgres driver")
	ErrInvalidTaxRate     = errors.New("TAX_RATE must be between 0 and 1")
)

type Config struct {
	HTTPHost              string
	HTTPPort              string
	HTTPReadHeaderTimeout time.Duration

	StorageDriver string
	DatabaseURL   string
	DBMaxConns    int32

	TaxRate            decimal.Decimal
	RevenueAccountCode string

	OtelEndpoint string
	OtelInsecure bool
	SeedDemoData bool
	LogLevel     string
}

// Load reads .env when present, then the environment. A missing .env is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	return FromEnv()
}

func FromEnv() (*Config, error) {
	timeout, err := duration("HTTP_READ_HEADER_TIMEOUT", 20*time.Second) //nolint:mnd
	if err != nil {
		return nil, err
	}

	maxConns, err := integer("DB_MAX_CONNS", 10) //nolint:mnd
	if err != nil {
		return nil, err
	}

	seed, err := boolean("SEED_DEMO_DATA", false)
	if err != nil {
		return nil, err
	}

	otelInsecure, err := boolean("OTEL_INSECURE", false)
	if err != nil {
		return nil, err
	}

	taxRate, err := decimal.NewFromString(str("TAX_RATE", "0.15"))
	if err != nil {
		return nil, fmt.Errorf("TAX_RATE: %w", err)
	}

	conf := &Config{
		HTTPHost:              str("HTTP_HOST", "localhost"),
		HTTPPort:              str("HTTP_PORT", "8092"),
		HTTPReadHeaderTimeout: timeout,
		StorageDriver:         str("STORAGE_DRIVER", DriverMemory),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DBMaxConns:            int32(maxConns), //nolint:gosec // parsed with bitSize 32
		TaxRate:               taxRate,
		RevenueAccountCode:    str("REVENUE_ACCOUNT_CODE", "4.1.01"),
		OtelEndpoint:          os.Getenv("OTEL_ENDPOINT"),
		OtelInsecure:          otelInsecure,
		SeedDemoData:          seed,
		LogLevel:              str("LOG_LEVEL", "info"),
	}

	if err = conf.validate(); err != nil {
		return nil, err
	}

	return conf, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return ErrDatabaseURLMissing
		}
	default:
		return fmt.Errorf("%w, got %q", ErrUnknownDriver, c.StorageDriver)
	}

	if c.TaxRate.IsNegative() || c.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidTaxRate
	}

	return nil
}

func str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}

	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	return d, nil
}

func integer(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}

	return int(n), nil
}

func boolean(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}

	return b, nil
}
