package app

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/specialistvlad/runbookgo/internal/registry"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	RunbookPath string            `mapstructure:"runbook"`
	Targets     []string          `mapstructure:"targets"`
	Vars        map[string]string `mapstructure:"vars"`

	// Module selections by registered name.
	Invoker      string `mapstructure:"invoker"`
	Capabilities string `mapstructure:"capabilities"`
	Oracle       string `mapstructure:"oracle"`
	ExprOracle   string `mapstructure:"expr_oracle"`
	Observer     string `mapstructure:"observer"`
	Sink         string `mapstructure:"sink"`

	// Modules holds per-module settings keyed by module name.
	Modules map[string]registry.Settings `mapstructure:"modules"`

	FailFast       bool          `mapstructure:"fail_fast"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`

	ReportFormat string `mapstructure:"report_format"`
	ReportPath   string `mapstructure:"report_path"`
	AuditPath    string `mapstructure:"audit_path"`

	LogFormat       string `mapstructure:"log_format"`
	LogLevel        string `mapstructure:"log_level"`
	HealthcheckPort int    `mapstructure:"healthcheck_port"`
}

var (
	logFormats    = []string{"text", "json"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	reportFormats = []string{"text", "json"}
)

// NewConfig fills defaults and validates cfg.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Invoker == "" {
		cfg.Invoker = "mcp"
	}
	if cfg.Capabilities == "" {
		cfg.Capabilities = "mcp"
	}
	if cfg.Oracle == "" {
		cfg.Oracle = "llm"
	}
	if cfg.ExprOracle == "" {
		cfg.ExprOracle = "cel"
	}
	if cfg.ReportFormat == "" {
		cfg.ReportFormat = "text"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if len(cfg.Targets) == 0 {
		// No targets given: run the ones the runbook declares.
		cfg.Targets = nil
	}

	var errs []error
	if cfg.RunbookPath == "" {
		errs = append(errs, errors.New("RunbookPath is a required configuration field and cannot be empty"))
	}
	if !slices.Contains(logFormats, cfg.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid log-format %q: must be 'text' or 'json'", cfg.LogFormat))
	}
	if !slices.Contains(logLevels, cfg.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid log-level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel))
	}
	if !slices.Contains(reportFormats, cfg.ReportFormat) {
		errs = append(errs, fmt.Errorf("invalid report-format %q: must be 'text' or 'json'", cfg.ReportFormat))
	}
	if cfg.DefaultTimeout < 0 {
		errs = append(errs, fmt.Errorf("default-timeout must not be negative, got %s", cfg.DefaultTimeout))
	}
	if cfg.HealthcheckPort < 0 {
		errs = append(errs, fmt.Errorf("healthcheck-port must not be negative, got %d", cfg.HealthcheckPort))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// settings returns the settings block of the named module.
func (c *Config) settings(name string) registry.Settings {
	return c.Modules[name]
}
