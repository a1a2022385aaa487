// Package runner chains the pipeline stages for one runbook: compile, bind,
// build and execute.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/specialistvlad/runbookgo/internal/binding"
	"github.com/specialistvlad/runbookgo/internal/compiler"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/executor"
	"github.com/specialistvlad/runbookgo/internal/graph"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/runbook"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

var ErrNilRunbook = errors.New("runbook has no root operation")

// Deps are the external collaborators of a run.
type Deps struct {
	Capabilities tools.Provider
	Oracle       oracle.Oracle
	Invoker      tools.Invoker
	Observer     executor.Observer

	DefaultTimeout time.Duration
	FailFast       bool
}

// Prepared is a runbook compiled, bound and built, ready to execute.
type Prepared struct {
	Runbook *runbook.Runbook
	Config  *agent.Config
	Bound   *agent.Bound
	Graph   *graph.Graph
	Tools   tools.Set
}

// Prepare compiles rb and builds its graph. Capabilities are fetched once.
func Prepare(ctx context.Context, rb *runbook.Runbook, caps tools.Provider, defaultTimeout time.Duration) (*Prepared, error) {
	logger := ctxlog.FromContext(ctx)
	if rb == nil || rb.Root == nil {
		return nil, ErrNilRunbook
	}

	cfg, err := compiler.New(compiler.Options{DefaultTimeout: defaultTimeout}).Compile(ctx, rb.Root)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", rb.Source, err)
	}

	set, err := caps.Capabilities(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch capabilities: %w", err)
	}
	logger.Debug("Capabilities resolved.", "tools", set.String())

	bound, err := binding.Bind(cfg, set)
	if err != nil {
		return nil, err
	}

	g, err := graph.Build(ctx, bound)
	if err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return &Prepared{Runbook: rb, Config: cfg, Bound: bound, Graph: g, Tools: set}, nil
}

// Run prepares rb and executes it against targets. A nil targets slice means
// the targets declared by the runbook. An empty non-nil slice is passed
// through and fails INIT with executor.ErrNoTargetNodes.
func Run(ctx context.Context, rb *runbook.Runbook, targets []string, deps Deps) (*executor.Outcome, error) {
	p, err := Prepare(ctx, rb, deps.Capabilities, deps.DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return p.Execute(ctx, targets, deps)
}

// Execute runs the prepared graph.
func (p *Prepared) Execute(ctx context.Context, targets []string, deps Deps) (*executor.Outcome, error) {
	if targets == nil {
		targets = p.Graph.Iteration.Targets
	}
	exec := executor.New(deps.Oracle, deps.Invoker,
		executor.WithFailFast(deps.FailFast),
		executor.WithObserver(deps.Observer),
		executor.WithDefaultTimeout(deps.DefaultTimeout),
	)
	out, err := exec.Run(ctx, p.Graph, targets)
	if err != nil {
		return nil, err
	}
	out.Summary.Runbook = p.Runbook.Name
	return out, nil
}
