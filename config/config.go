package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var (
	ErrMissing       = errors.New("required environment variable is missing")
	ErrInvalidDriver = errors.New("unsupported database driver")
	ErrInvalidValue  = errors.New("invalid environment variable value")
)

// Config is built once at startup and passed by value afterwards.
type Config struct {
	Token         string
	EncryptionKey string

	DatabaseDriver string
	DatabasePath   string
	DatabaseDSN    string

	// Emojis maps a removal result to the reaction acknowledging it.
	Emojis map[bool]string

	MetricsAddr string
	IgnoreBots  bool
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	cfg := Config{
		Token:          os.Getenv("TELEGRAM_BOT_TOKEN"),
		EncryptionKey:  os.Getenv("ENCRYPTION_KEY"),
		DatabaseDriver: getEnv("DATABASE_DRIVER", DriverSQLite),
		DatabasePath:   getEnv("DATABASE_PATH", "data.sqlite"),
		DatabaseDSN:    os.Getenv("DATABASE_DSN"),
		Emojis: map[bool]string{
			true:  getEnv("SUCCESS_EMOJI", "👍"),
			false: getEnv("FAILURE_EMOJI", "👎"),
		},
		MetricsAddr: os.Getenv("METRICS_ADDR"),
		IgnoreBots:  true,
	}

	if cfg.Token == "" {
		return Config{}, fmt.Errorf("%w: TELEGRAM_BOT_TOKEN", ErrMissing)
	}
	if cfg.EncryptionKey == "" {
		return Config{}, fmt.Errorf("%w: ENCRYPTION_KEY", ErrMissing)
	}

	switch cfg.DatabaseDriver {
	case DriverSQLite:
		slog.Debug("config: Using sqlite database", "path", cfg.DatabasePath)
	case DriverPostgres:
		if cfg.DatabaseDSN == "" {
			return Config{}, fmt.Errorf("%w: DATABASE_DSN", ErrMissing)
		}
		slog.Debug("config: Using postgres database")
	default:
		return Config{}, fmt.Errorf("%w: %q", ErrInvalidDriver, cfg.DatabaseDriver)
	}

	if raw, ok := os.LookupEnv("IGNORE_BOTS"); ok {
		ignore, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%w: IGNORE_BOTS=%q", ErrInvalidValue, raw)
		}
		cfg.IgnoreBots = ignore
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}
