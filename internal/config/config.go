// Package config loads the service configuration from a YAML file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/erazemk/izposoja/internal/sale"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Log           LogConfig           `yaml:"log"`
	Auth          AuthConfig          `yaml:"auth"`
	Sales         SalesConfig         `yaml:"sales"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls logging. Format is "text" or "json"; an empty Path
// logs to stdout/stderr only.
type LogConfig struct {
	Path   string `yaml:"path"`
	Format string `yaml:"format"`
}

// AuthConfig holds the token signing secret. When empty, a random secret is
// generated and persisted in the database.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type SalesConfig struct {
	Approval ApprovalConfig `yaml:"approval"`
}

// ApprovalConfig holds the thresholds above which a sale transition needs
// manager approval. MaxRevenueImpact is a decimal amount.
type ApprovalConfig struct {
	MaxConflicts          int    `yaml:"max_conflicts"`
	MaxRevenueImpact      string `yaml:"max_revenue_impact"`
	MaxRiskScore          int    `yaml:"max_risk_score"`
	CriticalNeedsApproval bool   `yaml:"critical_needs_approval"`
}

type NotificationsConfig struct {
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	MaxAttempts      int           `yaml:"max_attempts"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server:   ServerConfig{Addr: ":8080"},
		Database: DatabaseConfig{Path: "izposoja.sqlite3"},
		Log:      LogConfig{Format: "text"},
		Sales: SalesConfig{Approval: ApprovalConfig{
			MaxConflicts:          5,
			MaxRevenueImpact:      "1000.00",
			MaxRiskScore:          75,
			CriticalNeedsApproval: true,
		}},
		Notifications: NotificationsConfig{
			DispatchInterval: 30 * time.Second,
			MaxAttempts:      5,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that every value is usable.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}

	a := c.Sales.Approval
	if a.MaxConflicts <= 0 {
		errs = append(errs, errors.New("sales.approval.max_conflicts must be positive"))
	}
	if a.MaxRiskScore <= 0 || a.MaxRiskScore > 100 {
		errs = append(errs, errors.New("sales.approval.max_risk_score must be between 1 and 100"))
	}
	if d, err := decimal.NewFromString(a.MaxRevenueImpact); err != nil {
		errs = append(errs, fmt.Errorf("sales.approval.max_revenue_impact: %w", err))
	} else if !d.IsPositive() {
		errs = append(errs, errors.New("sales.approval.max_revenue_impact must be positive"))
	}

	if c.Notifications.DispatchInterval <= 0 {
		errs = append(errs, errors.New("notifications.dispatch_interval must be positive"))
	}
	if c.Notifications.MaxAttempts <= 0 {
		errs = append(errs, errors.New("notifications.max_attempts must be positive"))
	}
	return errors.Join(errs...)
}

// Policy converts the approval thresholds. The config must be valid.
func (a ApprovalConfig) Policy() sale.Policy {
	return sale.Policy{
		MaxConflicts:          a.MaxConflicts,
		MaxRevenueImpact:      decimal.RequireFromString(a.MaxRevenueImpact),
		MaxRiskScore:          a.MaxRiskScore,
		CriticalNeedsApproval: a.CriticalNeedsApproval,
	}
}
