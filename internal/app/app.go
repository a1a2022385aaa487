package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/runbook"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	registry   *registry.Registry
	loader     runbook.Loader
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
// When no modules are given, CoreModules is used.
func NewApp(outW io.Writer, cfg *Config, loader runbook.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = CoreModules()
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	if err := validateSelections(reg, cfg); err != nil {
		return nil, err
	}
	logger.Debug("Module selection validated.",
		"invoker", cfg.Invoker, "capabilities", cfg.Capabilities,
		"oracle", cfg.Oracle, "expr_oracle", cfg.ExprOracle,
		"observer", cfg.Observer, "sink", cfg.Sink)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		registry: reg,
		loader:   loader,
	}, nil
}

func validateSelections(reg *registry.Registry, cfg *Config) error {
	err := reg.Validate(map[registry.Kind]string{
		registry.KindInvoker:  cfg.Invoker,
		registry.KindProvider: cfg.Capabilities,
		registry.KindOracle:   cfg.Oracle,
		registry.KindSink:     cfg.Sink,
		registry.KindObserver: cfg.Observer,
	})
	oracles := reg.Names(registry.KindOracle)
	if cfg.ExprOracle != "" && !slices.Contains(oracles, cfg.ExprOracle) {
		err = errors.Join(err, fmt.Errorf("%w: expression oracle %q (available: %s)",
			registry.ErrUnknownModule, cfg.ExprOracle, strings.Join(oracles, ", ")))
	}
	return err
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// context attaches the app logger to ctx.
func (a *App) context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
