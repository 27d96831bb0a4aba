// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ListenAddr  string
	DBPath      string
	DatabaseURL string
	RedisURL    string

	EventLabel string
	EventNotes string

	AdminPasswordHash  []byte
	SessionTTL         time.Duration
	SessionSweepPeriod time.Duration
	CookieSecure       bool

	StorageTimeout time.Duration
	RetryDelay     time.Duration

	QRRenderURL string
	QRSize      int

	LogLevel  slog.Level
	LogFormat string
}

// UsesPostgres reports whether the PostgreSQL store is selected.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// UsesRedisSessions reports whether sessions live in Redis instead of the SQL store.
func (c *Config) UsesRedisSessions() bool {
	return c.RedisURL != ""
}

// Load reads an optional .env file from the working directory, then the
// GATECHECK_ environment variables, and returns a validated Config.
// Variables already present in the environment win over the .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the process environment only.
// One of GATECHECK_ADMIN_PASSWORD_HASH (bcrypt) or GATECHECK_ADMIN_PASSWORD
// (plaintext, hashed here) is required.
func FromEnv() (*Config, error) {
	cfg := &Config{
		ListenAddr: stringVar("GATECHECK_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:     stringVar("GATECHECK_DB_PATH", "gatecheck.db"),
		EventLabel: stringVar("GATECHECK_EVENT_LABEL", "Event"),
		LogFormat:  strings.ToLower(stringVar("GATECHECK_LOG_FORMAT", "text")),
	}
	cfg.DatabaseURL = os.Getenv("GATECHECK_DATABASE_URL")
	cfg.RedisURL = os.Getenv("GATECHECK_REDIS_URL")
	cfg.EventNotes = os.Getenv("GATECHECK_EVENT_NOTES")
	cfg.QRRenderURL = os.Getenv("GATECHECK_QR_RENDER_URL")

	if strings.TrimSpace(cfg.EventLabel) == "" {
		cfg.EventLabel = "Event"
	}

	var err error
	if cfg.SessionTTL, err = durationVar("GATECHECK_SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SessionSweepPeriod, err = durationVar("GATECHECK_SESSION_SWEEP_INTERVAL", 10*time.Minute); err != nil {
		return nil, err
	}
	if cfg.StorageTimeout, err = durationVar("GATECHECK_STORAGE_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = durationVar("GATECHECK_RETRY_DELAY", 200*time.Millisecond); err != nil {
		return nil, err
	}

	cfg.QRSize = 300
	if v, ok := os.LookupEnv("GATECHECK_QR_SIZE"); ok {
		size, err := strconv.Atoi(v)
		if err != nil || size < 21 || size > 2000 {
			return nil, fmt.Errorf("GATECHECK_QR_SIZE must be an integer between 21 and 2000, got %q", v)
		}
		cfg.QRSize = size
	}
	if cfg.QRRenderURL != "" && !strings.Contains(cfg.QRRenderURL, "{data}") {
		return nil, fmt.Errorf("GATECHECK_QR_RENDER_URL must contain the {data} placeholder")
	}

	if v, ok := os.LookupEnv("GATECHECK_COOKIE_SECURE"); ok {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("GATECHECK_COOKIE_SECURE has invalid boolean %q: %w", v, err)
		}
		cfg.CookieSecure = secure
	}

	if v, ok := os.LookupEnv("GATECHECK_LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("GATECHECK_LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("GATECHECK_LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}

	if cfg.AdminPasswordHash, err = adminPasswordHash(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func adminPasswordHash() ([]byte, error) {
	if v := os.Getenv("GATECHECK_ADMIN_PASSWORD_HASH"); v != "" {
		if _, err := bcrypt.Cost([]byte(v)); err != nil {
			return nil, fmt.Errorf("GATECHECK_ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
		return []byte(v), nil
	}
	if v := os.Getenv("GATECHECK_ADMIN_PASSWORD"); v != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(v), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash GATECHECK_ADMIN_PASSWORD: %w", err)
		}
		return hash, nil
	}
	return nil, fmt.Errorf("GATECHECK_ADMIN_PASSWORD_HASH or GATECHECK_ADMIN_PASSWORD is required")
}

func stringVar(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func durationVar(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s has invalid duration %q: %w", key, v, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", key, v)
	}
	return parsed, nil
}
