package app

import (
	"context"
	"errors"
	"io"

	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/runner"
)

// collaborators are the module instances built for one run.
type collaborators struct {
	deps    runner.Deps
	sink    report.Sink
	closers []io.Closer
}

// track remembers v for closing when it holds a connection. The same
// instance may back several slots and is closed once.
func (c *collaborators) track(v any) {
	closer, ok := v.(io.Closer)
	if !ok {
		return
	}
	for _, known := range c.closers {
		if known == closer {
			return
		}
	}
	c.closers = append(c.closers, closer)
}

// Close closes every tracked instance in reverse order of creation.
func (c *collaborators) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}

// capabilities builds only the capability provider, which is all that
// validation and graph rendering need.
func (a *App) capabilities(ctx context.Context) (*collaborators, error) {
	c := &collaborators{}
	caps, err := a.registry.Provider(ctx, a.config.Capabilities, a.config.settings(a.config.Capabilities))
	if err != nil {
		return c, err
	}
	c.track(caps)
	c.deps.Capabilities = caps
	return c, nil
}

// collaborators builds every module selected in the config. On error the
// instances built so far are still returned so they can be closed.
func (a *App) collaborators(ctx context.Context) (*collaborators, error) {
	cfg := a.config
	c, err := a.capabilities(ctx)
	if err != nil {
		return c, err
	}

	inv, err := a.registry.Invoker(ctx, cfg.Invoker, cfg.settings(cfg.Invoker))
	if err != nil {
		return c, err
	}
	c.track(inv)
	c.deps.Invoker = inv

	router := oracle.Router{}
	if router.Default, err = a.registry.Oracle(ctx, cfg.Oracle, cfg.settings(cfg.Oracle)); err != nil {
		return c, err
	}
	c.track(router.Default)
	if cfg.ExprOracle != "" {
		if router.Expressions, err = a.registry.Oracle(ctx, cfg.ExprOracle, cfg.settings(cfg.ExprOracle)); err != nil {
			return c, err
		}
		c.track(router.Expressions)
	}
	c.deps.Oracle = router

	if cfg.Observer != "" {
		obs, err := a.registry.Observer(ctx, cfg.Observer, cfg.settings(cfg.Observer))
		if err != nil {
			return c, err
		}
		c.track(obs)
		c.deps.Observer = obs
	}

	if cfg.Sink != "" {
		sink, err := a.registry.Sink(ctx, cfg.Sink, cfg.settings(cfg.Sink))
		if err != nil {
			return c, err
		}
		c.track(sink)
		c.sink = sink
	}

	c.deps.DefaultTimeout = cfg.DefaultTimeout
	c.deps.FailFast = cfg.FailFast
	return c, nil
}
