// Package config loads the intake server settings from a .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalid is returned for settings that cannot be used.
var ErrInvalid = errors.New("invalid configuration")

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds every INTAKE_* setting.
type Config struct {
	Addr     string
	LogLevel string
	LogJSON  bool

	// CatalogPath points to a YAML option catalog; empty uses the embedded one.
	CatalogPath string

	StoreDriver string
	StoreDSN    string

	PreviewCacheSize int
	SessionTTL       time.Duration
	SnapshotTTL      time.Duration

	AllowedOrigins []string
	DevMode        bool

	Codec string
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Addr:             ":8080",
		LogLevel:         "info",
		StoreDriver:      DriverMemory,
		PreviewCacheSize: 512,
		SessionTTL:       30 * time.Minute,
		SnapshotTTL:      24 * time.Hour,
		Codec:            "json",
	}
}

// Load reads the given .env files (default ".env"), ignoring missing ones,
// then builds the configuration from the process environment. Variables
// already set in the environment win over .env values.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds the configuration from lookup.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()
	env := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := env("INTAKE_ADDR"); ok {
		if !strings.Contains(v, ":") {
			v = ":" + v
		}
		cfg.Addr = v
	}
	if v, ok := env("INTAKE_LOG_LEVEL"); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := env("INTAKE_CATALOG"); ok {
		cfg.CatalogPath = v
	}
	if v, ok := env("INTAKE_STORE_DRIVER"); ok {
		cfg.StoreDriver = strings.ToLower(v)
	}
	if v, ok := env("INTAKE_STORE_DSN"); ok {
		cfg.StoreDSN = v
	}
	if v, ok := env("INTAKE_CODEC"); ok {
		cfg.Codec = strings.ToLower(v)
	}
	if v, ok := env("INTAKE_ALLOWED_ORIGINS"); ok {
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
			}
		}
	}

	var err error
	if cfg.LogJSON, err = boolVar(env, "INTAKE_LOG_JSON", cfg.LogJSON); err != nil {
		return nil, err
	}
	if cfg.DevMode, err = boolVar(env, "INTAKE_DEV_MODE", cfg.DevMode); err != nil {
		return nil, err
	}
	if cfg.PreviewCacheSize, err = intVar(env, "INTAKE_PREVIEW_CACHE", cfg.PreviewCacheSize); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = durationVar(env, "INTAKE_SESSION_TTL", cfg.SessionTTL); err != nil {
		return nil, err
	}
	if cfg.SnapshotTTL, err = durationVar(env, "INTAKE_SNAPSHOT_TTL", cfg.SnapshotTTL); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are usable together.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.StoreDSN == "" {
			return fmt.Errorf("%w: INTAKE_STORE_DSN is required for %s", ErrInvalid, c.StoreDriver)
		}
	default:
		return fmt.Errorf("%w: unknown store driver %q", ErrInvalid, c.StoreDriver)
	}
	switch c.Codec {
	case "json", "msgpack":
	default:
		return fmt.Errorf("%w: unknown codec %q", ErrInvalid, c.Codec)
	}
	if c.PreviewCacheSize <= 0 {
		return fmt.Errorf("%w: INTAKE_PREVIEW_CACHE must be positive", ErrInvalid)
	}
	if c.SessionTTL <= 0 || c.SnapshotTTL <= 0 {
		return fmt.Errorf("%w: TTLs must be positive", ErrInvalid)
	}
	return nil
}

type envFunc func(string) (string, bool)

func boolVar(env envFunc, key string, def bool) (bool, error) {
	v, ok := env(key)
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalid, key, v)
	}
	return b, nil
}

func intVar(env envFunc, key string, def int) (int, error) {
	v, ok := env(key)
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrInvalid, key, v)
	}
	return n, nil
}

func durationVar(env envFunc, key string, def time.Duration) (time.Duration, error) {
	v, ok := env(key)
	if !ok {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not a duration", ErrInvalid, key, v)
	}
	return d, nil
}
