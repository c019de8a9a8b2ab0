package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultInterval   = "10m"
	configPathEnv     = "FLATSCANNER_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// Config holds high-level settings required across the application.
type Config struct {
	URLs          []string           `yaml:"urls" toml:"urls"`
	Filters       FilterConfig       `yaml:"filters" toml:"filters"`
	Storage       StorageConfig      `yaml:"storage" toml:"storage"`
	Scheduler     SchedulerConfig    `yaml:"scheduler" toml:"scheduler"`
	Notifications NotificationConfig `yaml:"notifications" toml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging" toml:"logging"`
	HTTP          HTTPConfig         `yaml:"http" toml:"http"`
}

// FilterConfig lists the optional expose filters. A nil threshold disables its rule;
// zero is a real threshold.
type FilterConfig struct {
	ExcludedTitles    []string `yaml:"excluded_titles" toml:"excluded_titles"`
	MinPrice          *float64 `yaml:"min_price" toml:"min_price"`
	MaxPrice          *float64 `yaml:"max_price" toml:"max_price"`
	MinSize           *float64 `yaml:"min_size" toml:"min_size"`
	MaxSize           *float64 `yaml:"max_size" toml:"max_size"`
	MinRooms          *float64 `yaml:"min_rooms" toml:"min_rooms"`
	MaxRooms          *float64 `yaml:"max_rooms" toml:"max_rooms"`
	MaxPricePerSquare *float64 `yaml:"max_price_per_square" toml:"max_price_per_square"`
}

// StorageConfig selects the seen-id store.
type StorageConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
	TTL    string `yaml:"ttl" toml:"ttl"`

	ttl time.Duration
}

// RetentionTTL is how long a processed id is remembered; zero keeps it forever.
func (s StorageConfig) RetentionTTL() time.Duration {
	return s.ttl
}

// SchedulerConfig defines how often the crawl runs.
type SchedulerConfig struct {
	Interval string `yaml:"interval" toml:"interval"`

	interval time.Duration
}

// Every returns the parsed crawl interval.
func (s SchedulerConfig) Every() time.Duration {
	if s.interval > 0 {
		return s.interval
	}
	d, _ := time.ParseDuration(defaultInterval)
	return d
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram" toml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token" toml:"bot_token"`
	ChatID   int64  `yaml:"chat_id" toml:"chat_id"`
}

// Enabled reports whether both token and chat are configured.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != 0
}

// LoggingConfig selects level and handler format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// HTTPConfig configures the preview API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr" toml:"addr"`
}

// Load reads .env, the configuration file (YAML or TOML by extension) and applies
// environment overrides. An empty path falls back to $FLATSCANNER_CONFIG; with neither set
// the defaults are used.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(configPathEnv)
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(path, raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func decode(path string, raw []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(raw, cfg)
	case ".yaml", ".yml", "":
		return yaml.Unmarshal(raw, cfg)
	default:
		return fmt.Errorf("unsupported config format %q", filepath.Ext(path))
	}
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", telegramChatIDEnv, err)
		}
		c.Notifications.Telegram.ChatID = id
	}

	return nil
}

// Validate checks durations and threshold pairs and caches the parsed durations.
func (c *Config) Validate() error {
	var errs []error

	interval := c.Scheduler.Interval
	if interval == "" {
		interval = defaultInterval
	}
	d, err := time.ParseDuration(interval)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("scheduler.interval: %w", err))
	case d <= 0:
		errs = append(errs, fmt.Errorf("scheduler.interval must be positive, got %s", interval))
	default:
		c.Scheduler.interval = d
	}

	if c.Storage.TTL != "" {
		ttl, err := time.ParseDuration(c.Storage.TTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("storage.ttl: %w", err))
		} else {
			c.Storage.ttl = ttl
		}
	}

	errs = append(errs, c.Filters.validate()...)

	return errors.Join(errs...)
}

func (f FilterConfig) validate() []error {
	var errs []error
	pairs := []struct {
		name     string
		min, max *float64
	}{
		{"price", f.MinPrice, f.MaxPrice},
		{"size", f.MinSize, f.MaxSize},
		{"rooms", f.MinRooms, f.MaxRooms},
	}
	for _, p := range pairs {
		if p.min != nil && p.max != nil && *p.min > *p.max {
			errs = append(errs, fmt.Errorf("filters: min_%s %v is above max_%s %v", p.name, *p.min, p.name, *p.max))
		}
	}
	return errs
}

func defaultConfig() Config {
	d, _ := time.ParseDuration(defaultInterval)
	return Config{
		Storage:   StorageConfig{Driver: "sqlite", DSN: "./flatscanner.db"},
		Scheduler: SchedulerConfig{Interval: defaultInterval, interval: d},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		HTTP:      HTTPConfig{Addr: ":8080"},
	}
}
