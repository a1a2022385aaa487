package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/graph"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// DefaultStepTimeout bounds an execution step whose agent carries none.
const DefaultStepTimeout = 30 * time.Second

// Executor runs compiled graphs. The oracle and invoker are supplied per
// Executor, so independent runs in one process never share state.
type Executor struct {
	oracle         oracle.Oracle
	invoker        tools.Invoker
	observer       Observer
	failFast       bool
	defaultTimeout time.Duration
	now            func() time.Time
	newRunID       func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithFailFast stops processing further nodes after the first failure. The
// remaining nodes are reported as SKIPPED.
func WithFailFast(enabled bool) Option {
	return func(e *Executor) { e.failFast = enabled }
}

// WithObserver installs an Observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithDefaultTimeout sets the timeout for steps whose agent carries none.
func WithDefaultTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.defaultTimeout = d
		}
	}
}

// WithClock replaces the wall clock used for the audit trail.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(e *Executor) { e.newRunID = func() string { return id } }
}

// New creates an Executor.
func New(o oracle.Oracle, inv tools.Invoker, opts ...Option) *Executor {
	e := &Executor{
		oracle:         o,
		invoker:        inv,
		observer:       nopObserver{},
		defaultTimeout: DefaultStepTimeout,
		now:            time.Now,
		newRunID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the mutable context of one Run call.
type run struct {
	e     *Executor
	g     *graph.Graph
	id    string
	state *MultiNodeState
	// failedOn is the first target that failed, for fail-fast reporting.
	failedOn string
}

// Run processes targets through g, one node at a time and in order.
func (e *Executor) Run(ctx context.Context, g *graph.Graph, targets []string) (*Outcome, error) {
	r := &run{
		e:  e,
		g:  g,
		id: e.newRunID(),
		state: &MultiNodeState{
			NodeResults: make(map[string]report.NodeResult, len(targets)),
			Control:     graph.StateInit,
		},
	}
	ctx = ctxlog.With(ctx, "run_id", r.id)
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Starting run.", "supervisor", g.Iteration.Supervisor.Name, "targets", len(targets), "fail_fast", e.failFast)

	var summary report.Summary
	for r.state.Control != graph.StateEnd {
		var (
			next graph.ControlState
			err  error
		)
		switch r.state.Control {
		case graph.StateInit:
			next, err = r.init(targets)
		case graph.StateProcess:
			next, err = r.process(ctx)
		case graph.StateAdvance:
			next = r.advance()
		case graph.StateAggregate:
			summary, err = report.Aggregate(r.state.TargetNodes, r.state.NodeResults)
			next = graph.StateEnd
		default:
			err = fmt.Errorf("%w: unknown state %q", ErrIllegalTransition, r.state.Control)
		}
		if err != nil {
			logger.Error("Run aborted.", "state", r.state.Control, "error", err)
			return nil, err
		}
		if err := r.transition(next); err != nil {
			return nil, err
		}
	}

	summary.RunID = r.id
	logger.Info("🏁 Run finished.", "total", summary.Total, "success", summary.SuccessCount, "failure", summary.FailureCount, "skipped", summary.SkippedCount)
	return &Outcome{RunID: r.id, Summary: summary, State: r.state}, nil
}

func (r *run) transition(next graph.ControlState) error {
	from := r.state.Control
	if !r.g.Iteration.Allows(from, next) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, next)
	}
	r.state.Control = next
	r.record(nil, "", fmt.Sprintf("%s -> %s", from, next))
	return nil
}

// record appends to the run's audit trail and, when ws is non-nil, to the
// workflow state of the node being processed.
func (r *run) record(ws *WorkflowState, agentName, text string) {
	msg := Message{
		Seq:    len(r.state.Messages) + 1,
		Time:   r.e.now(),
		State:  string(r.state.Control),
		Agent:  agentName,
		Target: r.state.CurrentTargetNode,
		Text:   text,
	}
	r.state.Messages = append(r.state.Messages, msg)
	if ws != nil {
		ws.Messages = append(ws.Messages, msg)
	}
}

func (r *run) init(targets []string) (graph.ControlState, error) {
	if len(targets) == 0 {
		return "", ErrNoTargetNodes
	}
	seen := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if _, dup := seen[t]; dup {
			return "", fmt.Errorf("%w: %q", ErrDuplicateTargetNode, t)
		}
		seen[t] = struct{}{}
	}
	r.state.TargetNodes = append([]string(nil), targets...)
	r.state.CurrentNodeIndex = 0
	r.state.CurrentTargetNode = r.state.TargetNodes[0]
	r.record(nil, r.g.Iteration.Supervisor.Name, fmt.Sprintf("processing %d target node(s)", len(targets)))
	return graph.StateProcess, nil
}

func (r *run) process(ctx context.Context) (graph.ControlState, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := r.state.CurrentTargetNode
	ws := newWorkflowState(target)
	r.state.SubgraphState = ws

	started := r.e.now()
	result, err := r.walk(ctxlog.With(ctx, "target", target), ws)
	if err != nil {
		return "", err
	}
	if _, exists := r.state.NodeResults[target]; exists {
		return "", fmt.Errorf("%w: %q", ErrDuplicateResult, target)
	}
	r.state.NodeResults[target] = result
	r.state.SubgraphState = nil
	r.e.observer.NodeFinished(target, result.Status, r.e.now().Sub(started))

	if result.Status == report.StatusFailure && r.e.failFast && r.failedOn == "" {
		r.failedOn = target
		r.state.halted = true
	}
	return graph.StateAdvance, nil
}

func (r *run) advance() graph.ControlState {
	s := r.state
	s.CurrentNodeIndex++
	s.AllNodesComplete = s.CurrentNodeIndex == len(s.TargetNodes)

	if s.halted {
		for _, t := range s.TargetNodes[s.CurrentNodeIndex:] {
			s.NodeResults[t] = report.NodeResult{
				TargetNode: t,
				Status:     report.StatusSkipped,
				Detail:     fmt.Sprintf("skipped: fail-fast after failure on %s", r.failedOn),
			}
		}
		s.CurrentTargetNode = ""
		return graph.StateAggregate
	}

	if s.AllNodesComplete {
		s.CurrentTargetNode = ""
		return graph.StateAggregate
	}
	s.CurrentTargetNode = s.TargetNodes[s.CurrentNodeIndex]
	return graph.StateProcess
}
