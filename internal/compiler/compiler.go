package compiler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/prompt"
	"github.com/specialistvlad/runbookgo/internal/runbook"
)

// DefaultTimeout applies to execution statements that declare none.
const DefaultTimeout = 30 * time.Second

// Options tune compilation.
type Options struct {
	DefaultTimeout time.Duration
}

// Compiler turns operation trees into agent config trees. A Compiler is not
// safe for concurrent use; Compile resets its naming state on every call.
type Compiler struct {
	opts     Options
	counters map[agent.Role]int
}

// New creates a Compiler.
func New(opts Options) *Compiler {
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultTimeout
	}
	return &Compiler{opts: opts}
}

// Compile compiles op with default options.
func Compile(ctx context.Context, op *runbook.Operation) (*agent.Config, error) {
	return New(Options{}).Compile(ctx, op)
}

// scope is the ancestry of the operation currently being compiled.
type scope struct {
	path       []string
	ancestors  []string
	supervised bool
}

func (s scope) enter(op *runbook.Operation, ancestor string) scope {
	next := scope{
		path:       append(append([]string(nil), s.path...), op.Label()),
		ancestors:  s.ancestors,
		supervised: s.supervised,
	}
	if ancestor != "" {
		next.ancestors = append(append([]string(nil), s.ancestors...), ancestor)
	}
	return next
}

// Compile classifies op and its descendants.
func (c *Compiler) Compile(ctx context.Context, op *runbook.Operation) (*agent.Config, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compile: Starting agent config compilation.")

	if op == nil {
		return nil, fmt.Errorf("%w: nil root operation", ErrMalformedOperation)
	}
	c.counters = make(map[agent.Role]int)

	root, err := c.compileSequence([]*runbook.Operation{op}, scope{})
	if err != nil {
		return nil, err
	}

	logger.Debug("Compile: Finished.",
		"supervisors", c.counters[agent.RoleSupervisor],
		"decision_supervisors", c.counters[agent.RoleDecisionSupervisor],
		"executions", c.counters[agent.RoleExecution],
	)
	return root, nil
}

// compileSequence compiles ops in order and links them through Next. It
// returns the head of the chain, or nil for an empty sequence.
func (c *Compiler) compileSequence(ops []*runbook.Operation, s scope) (*agent.Config, error) {
	var head, tail *agent.Config
	for _, op := range ops {
		first, last, err := c.compile(op, s)
		if err != nil {
			return nil, err
		}
		if head == nil {
			head = first
		} else {
			tail.Next = first
		}
		tail = last
	}
	return head, nil
}

// compile returns the first and last config of the chain op compiles into.
func (c *Compiler) compile(op *runbook.Operation, s scope) (*agent.Config, *agent.Config, error) {
	if op == nil {
		return nil, nil, &OperationError{Path: strings.Join(s.path, "/"), Err: fmt.Errorf("%w: nil operation", ErrMalformedOperation)}
	}
	switch op.Kind {
	case runbook.KindMultiNode:
		cfg, err := c.compileMultiNode(op, s)
		return cfg, cfg, err
	case runbook.KindIfElse:
		cfg, err := c.compileIfElse(op, s)
		return cfg, cfg, err
	case runbook.KindRpa:
		return c.compileRpa(op, s)
	case runbook.KindExecStmt:
		cfg, err := c.compileExec(op, s.enter(op, ""))
		return cfg, cfg, err
	case runbook.KindDecision:
		return nil, nil, c.fail(op, s, fmt.Errorf("%w: a decision must be wrapped in an if-else", ErrMalformedOperation))
	default:
		return nil, nil, c.fail(op, s, fmt.Errorf("%w: %q", ErrUnknownOperationKind, string(op.Kind)))
	}
}

func (c *Compiler) fail(op *runbook.Operation, s scope, err error) error {
	path := append(append([]string(nil), s.path...), op.Label())
	return &OperationError{Path: strings.Join(path, "/"), Kind: op.Kind, Err: err}
}

func (c *Compiler) nextName(role agent.Role) string {
	c.counters[role]++
	return fmt.Sprintf("%s_%d", role.Prefix(), c.counters[role])
}

func (c *Compiler) newConfig(role agent.Role, md agent.Metadata, s scope) (*agent.Config, error) {
	name := c.nextName(role)
	text, err := prompt.Synthesize(name, role, md, s.ancestors)
	if err != nil {
		return nil, err
	}
	return &agent.Config{Name: name, Role: role, Prompt: text, Metadata: md}, nil
}

func (c *Compiler) compileMultiNode(op *runbook.Operation, s scope) (*agent.Config, error) {
	if s.supervised {
		return nil, c.fail(op, s, ErrNestedSupervisor)
	}
	if len(op.Targets) == 0 {
		return nil, c.fail(op, s, ErrEmptyTargetList)
	}
	for i, target := range op.Targets {
		if strings.TrimSpace(target) == "" {
			return nil, c.fail(op, s, fmt.Errorf("%w: target %d is blank", ErrMalformedOperation, i))
		}
	}
	if len(op.Children) == 0 {
		return nil, c.fail(op, s, fmt.Errorf("%w: multi-node operation has no body", ErrMalformedOperation))
	}

	md := agent.Metadata{Targets: append([]string(nil), op.Targets...)}
	cfg, err := c.newConfig(agent.RoleSupervisor, md, s)
	if err != nil {
		return nil, err
	}

	inner := s.enter(op, fmt.Sprintf("%s iterates over %s", cfg.Name, strings.Join(op.Targets, ", ")))
	inner.supervised = true
	body, err := c.compileSequence(op.Children, inner)
	if err != nil {
		return nil, err
	}
	cfg.Children = []*agent.Config{body}
	return cfg, nil
}

func (c *Compiler) compileIfElse(op *runbook.Operation, s scope) (*agent.Config, error) {
	if len(op.Children) != 1 || op.Children[0] == nil || op.Children[0].Kind != runbook.KindDecision {
		return nil, c.fail(op, s, fmt.Errorf("%w: if-else must wrap exactly one decision", ErrMalformedOperation))
	}
	decision := op.Children[0]
	if strings.TrimSpace(decision.Condition) == "" && strings.TrimSpace(decision.Expression) == "" {
		return nil, c.fail(op, s, fmt.Errorf("%w: decision has no condition", ErrMalformedOperation))
	}

	md := agent.Metadata{Condition: decision.Condition, Expression: decision.Expression}
	cfg, err := c.newConfig(agent.RoleDecisionSupervisor, md, s)
	if err != nil {
		return nil, err
	}

	label := decision.Condition
	if label == "" {
		label = decision.Expression
	}
	checkScope := s.enter(op, fmt.Sprintf("%s gathers evidence for %q", cfg.Name, label))
	for _, chk := range decision.Children {
		if chk == nil || (chk.Kind != runbook.KindRpa && chk.Kind != runbook.KindExecStmt) {
			return nil, c.fail(op, s, fmt.Errorf("%w: decision checks must be rpa or exec operations", ErrMalformedOperation))
		}
		first, _, err := c.compile(chk, checkScope)
		if err != nil {
			return nil, err
		}
		for ; first != nil; first = first.Next {
			cfg.Checks = append(cfg.Checks, first)
		}
	}
	// Checks run as a flat list; drop the chain links compileRpa produced.
	for _, chk := range cfg.Checks {
		chk.Next = nil
	}

	onTrue, err := c.compileSequence(op.Then, s.enter(op, fmt.Sprintf("%s TRUE branch of %q", cfg.Name, label)))
	if err != nil {
		return nil, err
	}
	onFalse, err := c.compileSequence(op.Else, s.enter(op, fmt.Sprintf("%s FALSE branch of %q", cfg.Name, label)))
	if err != nil {
		return nil, err
	}
	cfg.Children = []*agent.Config{onTrue, onFalse}
	return cfg, nil
}

func (c *Compiler) compileRpa(op *runbook.Operation, s scope) (*agent.Config, *agent.Config, error) {
	inner := s.enter(op, "")
	stmts := make([]*runbook.Operation, 0, len(op.Children)+1)
	if op.Command != "" {
		stmts = append(stmts, &runbook.Operation{
			Kind:    runbook.KindExecStmt,
			Name:    op.Name,
			Command: op.Command,
			Tool:    op.Tool,
			Timeout: op.Timeout,
		})
	}
	for _, child := range op.Children {
		if child == nil || child.Kind != runbook.KindExecStmt {
			return nil, nil, c.fail(op, s, fmt.Errorf("%w: rpa may only contain exec statements", ErrMalformedOperation))
		}
		stmt := *child
		if stmt.Timeout == 0 {
			stmt.Timeout = op.Timeout
		}
		if stmt.Tool == "" {
			stmt.Tool = op.Tool
		}
		stmts = append(stmts, &stmt)
	}
	if len(stmts) == 0 {
		return nil, nil, c.fail(op, s, fmt.Errorf("%w: rpa has no exec statements", ErrMalformedOperation))
	}

	var head, tail *agent.Config
	for _, stmt := range stmts {
		cfg, err := c.compileExec(stmt, inner.enter(stmt, ""))
		if err != nil {
			return nil, nil, err
		}
		if head == nil {
			head = cfg
		} else {
			tail.Next = cfg
		}
		tail = cfg
	}
	return head, tail, nil
}

func (c *Compiler) compileExec(op *runbook.Operation, s scope) (*agent.Config, error) {
	if strings.TrimSpace(op.Command) == "" {
		return nil, &OperationError{Path: strings.Join(s.path, "/"), Kind: op.Kind, Err: fmt.Errorf("%w: exec statement has no command", ErrMalformedOperation)}
	}
	if len(op.Children) > 0 {
		return nil, &OperationError{Path: strings.Join(s.path, "/"), Kind: op.Kind, Err: fmt.Errorf("%w: exec statement cannot have children", ErrMalformedOperation)}
	}
	timeout := op.Timeout
	if timeout <= 0 {
		timeout = c.opts.DefaultTimeout
	}
	md := agent.Metadata{Command: op.Command, Timeout: timeout, Tool: op.Tool}
	return c.newConfig(agent.RoleExecution, md, s)
}
