package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rpggio/cbsbilling/internal/domain/billing"
	"github.com/rpggio/cbsbilling/internal/forms"
)

// Source kinds.
const (
	SourceCSV    = "csv"
	SourceSQLite = "sqlite"
)

// Config defines billing configuration.
type Config struct {
	Billing BillingConfig `yaml:"billing"`
	Source  SourceConfig  `yaml:"source"`
	Invoice InvoiceConfig `yaml:"invoice"`
	Log     LogConfig     `yaml:"log"`
}

type BillingConfig struct {
	StoragePrice             float64 `yaml:"storage_price"`
	FirstPowerUserPrice      float64 `yaml:"first_power_user_price"`
	AdditionalPowerUserPrice float64 `yaml:"additional_power_user_price"`
	PeriodLength             int     `yaml:"period_months"`
	MinBillUsage             int     `yaml:"min_bill_months"`
	TimeZone                 string  `yaml:"time_zone"`
}

// SourceConfig selects where form events are read from.
type SourceConfig struct {
	Kind            string `yaml:"kind"`
	SQLitePath      string `yaml:"sqlite_path"`
	PIRequests      string `yaml:"pi_requests"`
	PIUpdates       string `yaml:"pi_updates"`
	AccountRequests string `yaml:"account_requests"`
	AccountUpdates  string `yaml:"account_updates"`
}

type InvoiceConfig struct {
	// TemplatePath overrides the built-in bill template.
	TemplatePath string `yaml:"template_path"`
	Workers      int    `yaml:"workers"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Billing: BillingConfig{
			StoragePrice:             billing.DefaultStoragePrice,
			FirstPowerUserPrice:      billing.DefaultFirstPowerUserPrice,
			AdditionalPowerUserPrice: billing.DefaultAdditionalPowerUserPrice,
			PeriodLength:             billing.DefaultPeriodLength,
			MinBillUsage:             billing.DefaultMinBillUsage,
			TimeZone:                 billing.DefaultTimeZone,
		},
		Source: SourceConfig{
			Kind:       SourceCSV,
			SQLitePath: "cbsbilling.db",
		},
		Invoice: InvoiceConfig{
			Workers: 4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("CBSBILL_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := envFloat("CBSBILL_STORAGE_PRICE", &cfg.Billing.StoragePrice); err != nil {
		return Config{}, err
	}
	if err := envFloat("CBSBILL_FIRST_POWER_USER_PRICE", &cfg.Billing.FirstPowerUserPrice); err != nil {
		return Config{}, err
	}
	if err := envFloat("CBSBILL_ADDITIONAL_POWER_USER_PRICE", &cfg.Billing.AdditionalPowerUserPrice); err != nil {
		return Config{}, err
	}
	if tz := os.Getenv("CBSBILL_TIME_ZONE"); tz != "" {
		cfg.Billing.TimeZone = tz
	}
	if kind := os.Getenv("CBSBILL_SOURCE_KIND"); kind != "" {
		cfg.Source.Kind = kind
	}
	if dbPath := os.Getenv("CBSBILL_SQLITE_PATH"); dbPath != "" {
		cfg.Source.SQLitePath = dbPath
	}
	if tmpl := os.Getenv("CBSBILL_TEMPLATE_PATH"); tmpl != "" {
		cfg.Invoice.TemplatePath = tmpl
	}
	if workers := os.Getenv("CBSBILL_WORKERS"); workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CBSBILL_WORKERS: %w", err)
		}
		cfg.Invoice.Workers = n
	}
	if level := os.Getenv("CBSBILL_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}

	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	b := c.Billing
	if b.StoragePrice < 0 || b.FirstPowerUserPrice < 0 || b.AdditionalPowerUserPrice < 0 {
		return fmt.Errorf("prices must not be negative")
	}
	if b.PeriodLength < 1 {
		return fmt.Errorf("period_months must be at least 1, got %d", b.PeriodLength)
	}
	if b.MinBillUsage < 1 || b.MinBillUsage > b.PeriodLength {
		return fmt.Errorf("min_bill_months must be between 1 and period_months, got %d", b.MinBillUsage)
	}
	if _, err := time.LoadLocation(b.TimeZone); err != nil {
		return fmt.Errorf("invalid time_zone: %w", err)
	}
	switch c.Source.Kind {
	case SourceCSV:
	case SourceSQLite:
		if c.Source.SQLitePath == "" {
			return fmt.Errorf("sqlite source requires sqlite_path")
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}
	if c.Invoice.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Invoice.Workers)
	}
	return nil
}

// Policy builds the billing policy described by c.
func (c Config) Policy() (billing.Policy, error) {
	loc, err := time.LoadLocation(c.Billing.TimeZone)
	if err != nil {
		return billing.Policy{}, fmt.Errorf("invalid time_zone: %w", err)
	}
	p := billing.DefaultPolicy()
	p.StoragePrice = c.Billing.StoragePrice
	p.FirstPowerUserPrice = c.Billing.FirstPowerUserPrice
	p.AdditionalPowerUserPrice = c.Billing.AdditionalPowerUserPrice
	p.PeriodLength = c.Billing.PeriodLength
	p.MinBillUsage = c.Billing.MinBillUsage
	p.Location = loc
	return p, nil
}

// FormPaths returns the CSV export locations.
func (c Config) FormPaths() forms.Paths {
	return forms.Paths{
		PIRequests:      c.Source.PIRequests,
		PIUpdates:       c.Source.PIUpdates,
		AccountRequests: c.Source.AccountRequests,
		AccountUpdates:  c.Source.AccountUpdates,
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func envFloat(key string, dst *float64) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
