// Package config loads runtime settings from defaults, an optional config
// file and FUELBOOK_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/fleetfuel/logbook/fuel"
)

// EnvPrefix prefixes every environment override: store.driver is read from
// FUELBOOK_STORE_DRIVER.
const EnvPrefix = "FUELBOOK"

// Config holds all configuration for the application.
type Config struct {
	Server ServerConfig
	Store  StoreConfig
	Rates  RatesConfig
	Tanks  TanksConfig
	Report ReportConfig
	Log    LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	Driver      string // memory | sqlite | redis
	SQLitePath  string
	RedisURL    string
	RedisPrefix string

	// RecomputeInterval is the period of the background tank recompute.
	// Zero disables the ticker; external changes still trigger one.
	RecomputeInterval time.Duration
}

// RatesConfig holds consumption rates as decimal strings.
type RatesConfig struct {
	BasePer100km       string
	HeadPer100km       string
	RefPerHour         string
	DefaultCoefficient string
}

// TanksConfig holds tank capacities in liters.
type TanksConfig struct {
	MainCapacity string
	RefCapacity  string
}

// ReportConfig controls date handling in reports.
type ReportConfig struct {
	Location string
	Months   []string
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// ServerAddr returns the HTTP listen address in host:port format.
func (s *ServerConfig) ServerAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	// ── Server ──────────────────────────────────────────
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "5s")
	v.SetDefault("server.write_timeout", "10s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:*", "http://127.0.0.1:*"})

	// ── Store ───────────────────────────────────────────
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "./fuelbook.db")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.redis_prefix", "fuelbook:")
	v.SetDefault("store.recompute_interval", "1h")

	// ── Rates ───────────────────────────────────────────
	v.SetDefault("rates.base_per_100km", fuel.DefaultBaseRate.String())
	v.SetDefault("rates.head_per_100km", fuel.DefaultHeadRate.String())
	v.SetDefault("rates.ref_per_hour", fuel.DefaultRefRate.String())
	v.SetDefault("rates.default_coefficient", fuel.DefaultCoefficient)

	// ── Tanks ───────────────────────────────────────────
	v.SetDefault("tanks.main_capacity", "1000")
	v.SetDefault("tanks.ref_capacity", "300")

	// ── Report ──────────────────────────────────────────
	v.SetDefault("report.location", "UTC")
	v.SetDefault("report.months", fuel.RussianMonths[:])

	// ── Log ─────────────────────────────────────────────
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. When path is empty an optional config.yaml in
// the working directory is used; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			Port:            v.GetInt("server.port"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			IdleTimeout:     v.GetDuration("server.idle_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
			AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		},
		Store: StoreConfig{
			Driver:      strings.ToLower(v.GetString("store.driver")),
			SQLitePath:  v.GetString("store.sqlite_path"),
			RedisURL:    v.GetString("store.redis_url"),
			RedisPrefix: v.GetString("store.redis_prefix"),

			RecomputeInterval: v.GetDuration("store.recompute_interval"),
		},
		Rates: RatesConfig{
			BasePer100km:       v.GetString("rates.base_per_100km"),
			HeadPer100km:       v.GetString("rates.head_per_100km"),
			RefPerHour:         v.GetString("rates.ref_per_hour"),
			DefaultCoefficient: v.GetString("rates.default_coefficient"),
		},
		Tanks: TanksConfig{
			MainCapacity: v.GetString("tanks.main_capacity"),
			RefCapacity:  v.GetString("tanks.ref_capacity"),
		},
		Report: ReportConfig{
			Location: v.GetString("report.location"),
			Months:   v.GetStringSlice("report.months"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every derived setting can be built.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.RecomputeInterval < 0 {
		return errors.New("store.recompute_interval must not be negative")
	}
	if _, err := c.FuelRates(); err != nil {
		return err
	}
	if _, err := c.Capacities(); err != nil {
		return err
	}
	if _, err := c.DateParser(); err != nil {
		return err
	}
	return nil
}

// FuelRates builds the calculator rates.
func (c *Config) FuelRates() (fuel.Rates, error) {
	var (
		r   fuel.Rates
		err error
	)
	if r.Base, err = parseDecimal("rates.base_per_100km", c.Rates.BasePer100km); err != nil {
		return fuel.Rates{}, err
	}
	if r.Head, err = parseDecimal("rates.head_per_100km", c.Rates.HeadPer100km); err != nil {
		return fuel.Rates{}, err
	}
	if r.RefPerHour, err = parseDecimal("rates.ref_per_hour", c.Rates.RefPerHour); err != nil {
		return fuel.Rates{}, err
	}
	r.DefaultCoefficient = c.Rates.DefaultCoefficient
	if err := r.Validate(); err != nil {
		return fuel.Rates{}, err
	}
	return r, nil
}

// Capacities builds the tank capacities.
func (c *Config) Capacities() (fuel.Capacities, error) {
	main, err := parseDecimal("tanks.main_capacity", c.Tanks.MainCapacity)
	if err != nil {
		return fuel.Capacities{}, err
	}
	ref, err := parseDecimal("tanks.ref_capacity", c.Tanks.RefCapacity)
	if err != nil {
		return fuel.Capacities{}, err
	}
	if !main.IsPositive() || !ref.IsPositive() {
		return fuel.Capacities{}, errors.New("tank capacities must be positive")
	}
	return fuel.Capacities{Main: main, Ref: ref}, nil
}

// DateParser builds the report date parser.
func (c *Config) DateParser() (*fuel.DateParser, error) {
	loc, err := time.LoadLocation(c.Report.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid report.location: %w", err)
	}
	if len(c.Report.Months) != 12 {
		return nil, fmt.Errorf("report.months needs 12 entries, got %d", len(c.Report.Months))
	}
	var months [12]string
	copy(months[:], c.Report.Months)
	return fuel.NewDateParser(loc, months), nil
}

func parseDecimal(key, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return d, nil
}
