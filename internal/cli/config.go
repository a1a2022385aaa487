package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/runbookgo/internal/app"
	"github.com/specialistvlad/runbookgo/modules/env_vars"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	envPrefix  = "RUNBOOKGO"
	configName = "runbookgo"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"target":           "targets",
	"invoker":          "invoker",
	"capabilities":     "capabilities",
	"oracle":           "oracle",
	"expr-oracle":      "expr_oracle",
	"observer":         "observer",
	"sink":             "sink",
	"fail-fast":        "fail_fast",
	"default-timeout":  "default_timeout",
	"report-format":    "report_format",
	"report":           "report_path",
	"audit-log":        "audit_path",
	"log-format":       "log_format",
	"log-level":        "log_level",
	"healthcheck-port": "healthcheck_port",
}

// loadConfig merges, from lowest to highest precedence, flag defaults, the
// config file, RUNBOOKGO_ environment variables and explicit flags, then
// validates the result. Runbook variables are merged separately:
// RUNBOOK_VAR_ environment variables, then the config file, then --var.
func loadConfig(cmd *cobra.Command, args []string) (*app.Config, error) {
	// Module settings use dotted keys such as header.Authorization.
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_", "-", "_"))
	v.AutomaticEnv()

	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	if err := v.BindEnv("runbook"); err != nil {
		return nil, err
	}
	if len(args) > 0 {
		v.Set("runbook", args[0])
	}

	var cfg app.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	vars := env_vars.FromEnvironment()
	for k, val := range cfg.Vars {
		vars[k] = val
	}
	if cmd.Flags().Lookup("var") != nil {
		pairs, _ := cmd.Flags().GetStringArray("var")
		for _, pair := range pairs {
			name, value, ok := strings.Cut(pair, "=")
			if !ok || name == "" {
				return nil, fmt.Errorf("invalid --var %q: want name=value", pair)
			}
			vars[name] = value
		}
	}
	cfg.Vars = vars

	return app.NewConfig(cfg)
}
