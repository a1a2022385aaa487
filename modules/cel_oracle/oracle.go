// Package cel_oracle answers decisions that carry a CEL expression.
//
// The expression sees the target node, the condition text and the outputs of
// the decision's checks:
//
//	expression = "evidence.exec_1.contains('404')"
//
// It must evaluate to a bool.
package cel_oracle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/registry"
)

var (
	ErrNoExpression = errors.New("decision has no expression")
	ErrNotBool      = errors.New("expression did not evaluate to a bool")
)

// Oracle evaluates decision expressions. Compiled programs are cached.
type Oracle struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewOracle creates an Oracle.
func NewOracle() (*Oracle, error) {
	env, err := cel.NewEnv(
		cel.Variable("target", cel.StringType),
		cel.Variable("condition", cel.StringType),
		cel.Variable("evidence", cel.MapType(cel.StringType, cel.StringType)),
	)
	if err != nil {
		return nil, err
	}
	return &Oracle{env: env, programs: make(map[string]cel.Program)}, nil
}

func (o *Oracle) program(expr string) (cel.Program, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if prg, ok := o.programs[expr]; ok {
		return prg, nil
	}
	ast, iss := o.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, iss.Err())
	}
	prg, err := o.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program %q: %w", expr, err)
	}
	o.programs[expr] = prg
	return prg, nil
}

// Decide implements oracle.Oracle.
func (o *Oracle) Decide(ctx context.Context, q oracle.Query) (string, error) {
	if q.Expression == "" {
		return "", ErrNoExpression
	}
	prg, err := o.program(q.Expression)
	if err != nil {
		return "", err
	}

	evidence := q.Evidence
	if evidence == nil {
		evidence = map[string]string{}
	}
	out, _, err := prg.ContextEval(ctx, map[string]any{
		"target":    q.Target,
		"condition": q.Condition,
		"evidence":  evidence,
	})
	if err != nil {
		return "", fmt.Errorf("evaluate %q: %w", q.Expression, err)
	}
	v, ok := out.Value().(bool)
	if !ok {
		return "", fmt.Errorf("%w: %q returned %s", ErrNotBool, q.Expression, out.Type().TypeName())
	}

	ctxlog.FromContext(ctx).Debug("Expression evaluated.", "agent", q.Agent, "expression", q.Expression, "result", v)
	if v {
		return oracle.TokenTrue, nil
	}
	return oracle.TokenFalse, nil
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the cel oracle.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterOracle("cel", func(context.Context, registry.Settings) (oracle.Oracle, error) {
		return NewOracle()
	})
}
