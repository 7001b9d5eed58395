// Package config loads server configuration from a YAML file, a .env file
// and TURNOVER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/evcraddock/turnover/internal/db"
	"github.com/evcraddock/turnover/internal/email"
)

const envPrefix = "TURNOVER_"

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`
	// DB is the SQLite database path.
	DB string `yaml:"db"`
	// BaseURL is the public origin, used as the passkey relying party.
	BaseURL string `yaml:"base_url"`
	// DevMode enables debug logging and allows an empty token secret.
	DevMode bool `yaml:"dev_mode"`

	TokenSecret string `yaml:"token_secret"`
	// TokenExpiration is the API token lifetime in minutes.
	TokenExpiration int `yaml:"token_expiration"`

	CookieHashKey  string `yaml:"cookie_hash_key"`
	CookieBlockKey string `yaml:"cookie_block_key"`

	// SyncSchedule is a cron spec for refreshing subscriptions. Empty
	// disables the refresh.
	SyncSchedule string `yaml:"sync_schedule"`
	// FetchTimeout bounds each remote calendar download.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	// SMTP is used for cleaning digests. Digests are unavailable when
	// host or from is empty.
	SMTP email.SMTPConfig `yaml:"smtp"`
}

// Default returns the built-in configuration.
func Default() *Config {
	dbPath, err := db.DefaultPath()
	if err != nil {
		dbPath = "turnover.db"
	}
	return &Config{
		Listen:          ":8080",
		DB:              dbPath,
		BaseURL:         "http://localhost:8080",
		TokenExpiration: 10080,
		SyncSchedule:    "@every 30m",
		FetchTimeout:    30 * time.Second,
		SMTP:            email.SMTPConfig{Port: "587"},
	}
}

// DefaultPath returns ~/.config/turnover/config.yaml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config directory: %w", err)
	}
	return filepath.Join(dir, "turnover", "config.yaml"), nil
}

// Load reads path (a missing file is not an error), then .env in the
// working directory, then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Listen, "LISTEN")
	setString(&c.DB, "DB")
	setString(&c.BaseURL, "BASE_URL")
	setString(&c.TokenSecret, "TOKEN_SECRET")
	setString(&c.CookieHashKey, "COOKIE_HASH_KEY")
	setString(&c.CookieBlockKey, "COOKIE_BLOCK_KEY")
	setString(&c.SyncSchedule, "SYNC_SCHEDULE")
	setString(&c.SMTP.Host, "SMTP_HOST")
	setString(&c.SMTP.Port, "SMTP_PORT")
	setString(&c.SMTP.User, "SMTP_USER")
	setString(&c.SMTP.Pass, "SMTP_PASS")
	setString(&c.SMTP.From, "SMTP_FROM")

	if v, ok := lookup("DEV_MODE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sDEV_MODE: %w", envPrefix, err)
		}
		c.DevMode = b
	}
	if v, ok := lookup("TOKEN_EXPIRATION"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTOKEN_EXPIRATION: %w", envPrefix, err)
		}
		c.TokenExpiration = n
	}
	if v, ok := lookup("FETCH_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sFETCH_TIMEOUT: %w", envPrefix, err)
		}
		c.FetchTimeout = d
	}
	return nil
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	if c.TokenSecret == "" && !c.DevMode {
		return fmt.Errorf("token_secret is required outside dev mode (set %sTOKEN_SECRET)", envPrefix)
	}
	if c.TokenExpiration <= 0 {
		return fmt.Errorf("token_expiration must be positive, got %d", c.TokenExpiration)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch_timeout must be positive, got %s", c.FetchTimeout)
	}
	if n := len(c.CookieBlockKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("cookie_block_key must be 16, 24 or 32 bytes, got %d", n)
	}
	return nil
}

// TokenTTL returns the API token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenExpiration) * time.Minute
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func lookup(key string) (string, bool) {
	v := os.Getenv(envPrefix + key)
	return v, v != ""
}
