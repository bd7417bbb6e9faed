// Package config loads server configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

type StorageConfig struct {
	// Driver selects the backend: "sqlite" (default) or "mongo".
	Driver        string `yaml:"driver"`
	SQLitePath    string `yaml:"sqlitePath"`
	MongoURI      string `yaml:"mongoURI"`
	MongoDatabase string `yaml:"mongoDatabase"`
}

type RedisConfig struct {
	// Addr enables the redis notification bus when set. Empty means in-process.
	Addr string `yaml:"addr"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
}

type CalendarConfig struct {
	ListHorizonDays int `yaml:"listHorizonDays"`
}

type EventsConfig struct {
	// FriendsOnlyInvites limits invitees to the creator's accepted friends.
	FriendsOnlyInvites bool `yaml:"friendsOnlyInvites"`
}

type DashboardConfig struct {
	UpcomingLimit int `yaml:"upcomingLimit"`
}

type SchedulerConfig struct {
	// CompletionSweep is a cron spec. "off" disables the sweep.
	CompletionSweep string `yaml:"completionSweep"`
}

// Config is the top-level server configuration.
type Config struct {
	Listen string `yaml:"listen"`

	// Timezone is the IANA zone used for budget months and calendar grids.
	Timezone string `yaml:"timezone"`

	// CurrencyUnit is the number of minor units per major unit (100 for cents).
	CurrencyUnit int64 `yaml:"currencyUnit"`

	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Events    EventsConfig    `yaml:"events"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

func DefaultConfig() *Config {
	return &Config{
		Listen:       ":8080",
		Timezone:     "UTC",
		CurrencyUnit: 100,
		Storage: StorageConfig{
			Driver:        DriverSQLite,
			SQLitePath:    "./data/gatherly.db",
			MongoDatabase: "gatherly",
		},
		Calendar:  CalendarConfig{ListHorizonDays: 365},
		Dashboard: DashboardConfig{UpcomingLimit: 5},
		Scheduler: SchedulerConfig{CompletionSweep: "*/15 * * * *"},
	}
}

// Normalize fills zero values with defaults.
func (c *Config) Normalize() {
	d := DefaultConfig()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.Timezone == "" {
		c.Timezone = d.Timezone
	}
	if c.CurrencyUnit <= 0 {
		c.CurrencyUnit = d.CurrencyUnit
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = d.Storage.Driver
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = d.Storage.SQLitePath
	}
	if c.Storage.MongoDatabase == "" {
		c.Storage.MongoDatabase = d.Storage.MongoDatabase
	}
	if c.Calendar.ListHorizonDays <= 0 {
		c.Calendar.ListHorizonDays = d.Calendar.ListHorizonDays
	}
	if c.Dashboard.UpcomingLimit <= 0 {
		c.Dashboard.UpcomingLimit = d.Dashboard.UpcomingLimit
	}
	if c.Scheduler.CompletionSweep == "" {
		c.Scheduler.CompletionSweep = d.Scheduler.CompletionSweep
	}
}

// Validate reports settings that cannot be normalized away.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("storage.mongoURI is required for the mongo driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured time zone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ListHorizon returns the calendar list horizon.
func (c *Config) ListHorizon() time.Duration {
	return time.Duration(c.Calendar.ListHorizonDays) * 24 * time.Hour
}

// Load reads the YAML file at path, applies environment overrides and
// normalizes the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			cfg = &Config{}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func (c *Config) applyEnv() error {
	c.Listen = getEnv("LISTEN_ADDR", c.Listen)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.Storage.Driver = getEnv("DB_DRIVER", c.Storage.Driver)
	c.Storage.SQLitePath = getEnv("DB_PATH", c.Storage.SQLitePath)
	c.Storage.MongoURI = getEnv("MONGO_URI", c.Storage.MongoURI)
	c.Storage.MongoDatabase = getEnv("MONGO_DATABASE", c.Storage.MongoDatabase)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Auth.JWTSecret = getEnv("JWT_SECRET", c.Auth.JWTSecret)

	if v := os.Getenv("FRIENDS_ONLY_INVITES"); v != "" {
		on, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid FRIENDS_ONLY_INVITES %q", v)
		}
		c.Events.FriendsOnlyInvites = on
	}
	if v := os.Getenv("CURRENCY_UNIT"); v != "" {
		unit, err := strconv.ParseInt(v, 10, 64)
		if err != nil || unit <= 0 {
			return fmt.Errorf("invalid CURRENCY_UNIT %q", v)
		}
		c.CurrencyUnit = unit
	}
	return nil
}

// Path returns the config file path from CONFIG_PATH, or fallback.
func Path(fallback string) string {
	return getEnv("CONFIG_PATH", fallback)
}

// SweepOff disables the completion sweep when used as its cron spec.
const SweepOff = "off"

// SweepEnabled reports whether the completion sweep should be scheduled.
func (c *Config) SweepEnabled() bool {
	return c.Scheduler.CompletionSweep != SweepOff
}
