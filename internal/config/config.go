// Package config provides Viper-based configuration loading for the bot.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Telegram update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Storage drivers.
const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// TelegramConfig holds chat transport settings.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// Mode is "polling" or "webhook".
	Mode string `mapstructure:"mode"`
	// WebhookURL is the public base URL Telegram posts updates to.
	WebhookURL string `mapstructure:"webhook_url"`
	// WebhookSecret is the last path segment of the webhook route.
	WebhookSecret string `mapstructure:"webhook_secret"`
	// ListenAddr is the bind address of the webhook and health server.
	ListenAddr string `mapstructure:"listen_addr"`
	// UpdateTimeout is the long-polling timeout in seconds.
	UpdateTimeout int `mapstructure:"update_timeout"`
}

// DatabaseConfig holds document store settings.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory".
	Driver string `mapstructure:"driver"`

	URI             string        `mapstructure:"uri"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return d.URI
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds gameplay tuning.
type GameConfig struct {
	// DataDir overrides the embedded catalog when non-empty.
	DataDir string `mapstructure:"data_dir"`

	AdminIDs          []int64       `mapstructure:"admin_ids"`
	DuelAcceptTimeout time.Duration `mapstructure:"duel_accept_timeout"`
	DuelIdleTimeout   time.Duration `mapstructure:"duel_idle_timeout"`
	ProcessingTTL     time.Duration `mapstructure:"processing_ttl"`
	FlowTTL           time.Duration `mapstructure:"flow_ttl"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	SafariResetHour   int           `mapstructure:"safari_reset_hour"`
	SafariBalls       int           `mapstructure:"safari_balls"`

	// Timezone is the IANA zone the safari day rolls over in.
	Timezone       string `mapstructure:"timezone"`
	ImageCacheSize int    `mapstructure:"image_cache_size"`
	// ScriptLimit caps the Lua instructions one ball modifier may run.
	ScriptLimit int `mapstructure:"script_limit"`
	// Seed fixes the random source when non-zero.
	Seed uint64 `mapstructure:"seed"`
}

// Location resolves Timezone.
//
// Postcondition: Returns UTC when Timezone is empty.
func (g GameConfig) Location() (*time.Location, error) {
	if g.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(g.Timezone)
}

// Config is the top-level application configuration.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, err := range []error{
		validateTelegram(c.Telegram),
		validateDatabase(c.Database),
		validateLogging(c.Logging),
		validateGame(c.Game),
	} {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func joined(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(errs, "; "))
}

func validateTelegram(t TelegramConfig) error {
	var errs []string
	if t.Token == "" {
		errs = append(errs, "telegram.token must not be empty")
	}
	switch t.Mode {
	case ModePolling:
		if t.UpdateTimeout < 1 {
			errs = append(errs, fmt.Sprintf("telegram.update_timeout must be >= 1, got %d", t.UpdateTimeout))
		}
	case ModeWebhook:
		if u, err := url.Parse(t.WebhookURL); err != nil || u.Scheme != "https" || u.Host == "" {
			errs = append(errs, fmt.Sprintf("telegram.webhook_url must be an https URL, got %q", t.WebhookURL))
		}
		if t.WebhookSecret == "" {
			errs = append(errs, "telegram.webhook_secret must not be empty in webhook mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("telegram.mode must be one of [polling, webhook], got %q", t.Mode))
	}
	if t.ListenAddr == "" {
		errs = append(errs, "telegram.listen_addr must not be empty")
	}
	return joined(errs)
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	switch d.Driver {
	case DriverMemory:
		return nil
	case DriverPostgres:
	default:
		return fmt.Errorf("database.driver must be one of [postgres, memory], got %q", d.Driver)
	}
	if d.URI == "" {
		errs = append(errs, "database.uri must not be empty")
	} else if u, err := url.Parse(d.URI); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
		errs = append(errs, "database.uri must be a postgres:// URL")
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return joined(errs)
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.DuelAcceptTimeout <= 0 {
		errs = append(errs, "game.duel_accept_timeout must be positive")
	}
	if g.DuelIdleTimeout <= 0 {
		errs = append(errs, "game.duel_idle_timeout must be positive")
	}
	if g.ProcessingTTL <= 0 {
		errs = append(errs, "game.processing_ttl must be positive")
	}
	if g.SweepInterval <= 0 {
		errs = append(errs, "game.sweep_interval must be positive")
	}
	if g.SafariResetHour < 0 || g.SafariResetHour > 23 {
		errs = append(errs, fmt.Sprintf("game.safari_reset_hour must be 0-23, got %d", g.SafariResetHour))
	}
	if g.SafariBalls < 1 {
		errs = append(errs, fmt.Sprintf("game.safari_balls must be >= 1, got %d", g.SafariBalls))
	}
	if g.ImageCacheSize < 1 {
		errs = append(errs, fmt.Sprintf("game.image_cache_size must be >= 1, got %d", g.ImageCacheSize))
	}
	if _, err := g.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("game.timezone: %v", err))
	}
	return joined(errs)
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path reads defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// New returns a Viper instance with defaults and POKEBOT_ environment
// overrides installed.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("POKEBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Token and URI have empty defaults so AutomaticEnv binds them.
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.mode", ModePolling)
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.listen_addr", ":8080")
	v.SetDefault("telegram.update_timeout", 60)

	v.SetDefault("database.driver", DriverPostgres)
	v.SetDefault("database.uri", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.data_dir", "")
	v.SetDefault("game.admin_ids", []int64{})
	v.SetDefault("game.duel_accept_timeout", "60s")
	v.SetDefault("game.duel_idle_timeout", "120s")
	v.SetDefault("game.processing_ttl", "30s")
	v.SetDefault("game.flow_ttl", "15m")
	v.SetDefault("game.sweep_interval", "1m")
	v.SetDefault("game.safari_reset_hour", 5)
	v.SetDefault("game.safari_balls", 50)
	v.SetDefault("game.timezone", "UTC")
	v.SetDefault("game.image_cache_size", 500)
	v.SetDefault("game.script_limit", 100000)
	v.SetDefault("game.seed", 0)
}
