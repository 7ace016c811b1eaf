package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

const (
	DefaultQueueURL     = "https://queue.fal.run"
	DefaultPollInterval = 500 * time.Millisecond
	DefaultAddr         = ":8080"
)

// Config is everything the service reads from its environment at startup.
type Config struct {
	FalKey       string
	FalKeyParam  string
	Model        string
	QueueURL     string
	PollInterval time.Duration
	// Timeout bounds one batch. Zero means no bound.
	Timeout  time.Duration
	Addr     string
	LogLevel string
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, which has the signature of os.LookupEnv.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	get := func(key, fallback string) string {
		v, ok := lookup(key)
		return lo.Ternary(ok && v != "", v, fallback)
	}

	cfg := &Config{
		FalKey:      get("FAL_KEY", ""),
		FalKeyParam: get("FAL_KEY_PARAM", ""),
		Model:       get("FAL_MODEL", get("NEXT_PUBLIC_FAL_MODEL", "")),
		QueueURL:    get("FAL_QUEUE_URL", DefaultQueueURL),
		Addr:        get("ADDR", DefaultAddr),
		LogLevel:    get("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.PollInterval, err = time.ParseDuration(get("FAL_POLL_INTERVAL", DefaultPollInterval.String())); err != nil {
		return nil, fmt.Errorf("FAL_POLL_INTERVAL: %w", err)
	}
	if cfg.Timeout, err = time.ParseDuration(get("GENERATION_TIMEOUT", "0s")); err != nil {
		return nil, fmt.Errorf("GENERATION_TIMEOUT: %w", err)
	}

	if cfg.Model == "" {
		return nil, errors.New("FAL_MODEL is required")
	}
	if cfg.FalKey == "" && cfg.FalKeyParam == "" {
		return nil, errors.New("one of FAL_KEY or FAL_KEY_PARAM is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("FAL_POLL_INTERVAL must be positive, got %s", cfg.PollInterval)
	}
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("GENERATION_TIMEOUT must not be negative, got %s", cfg.Timeout)
	}
	return cfg, nil
}
