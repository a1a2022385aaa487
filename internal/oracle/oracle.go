// Package oracle defines the Decision Oracle contract. An oracle answers a
// decision with a single token; the engine routes on TRUE or FALSE and treats
// anything else as an ambiguous decision.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	TokenTrue  = "TRUE"
	TokenFalse = "FALSE"
)

// ErrAmbiguousDecision is returned for any token other than TRUE or FALSE.
var ErrAmbiguousDecision = errors.New("ambiguous decision")

// Query is everything an oracle may use to answer a decision.
type Query struct {
	Agent      string
	Prompt     string
	Condition  string
	Expression string
	Target     string
	// Evidence maps the name of each check agent to its output.
	Evidence map[string]string
}

// Oracle answers decisions.
type Oracle interface {
	Decide(ctx context.Context, q Query) (string, error)
}

// Func adapts a function to the Oracle interface.
type Func func(ctx context.Context, q Query) (string, error)

// Decide implements Oracle.
func (f Func) Decide(ctx context.Context, q Query) (string, error) {
	return f(ctx, q)
}

// ParseToken maps an oracle token to a routing value. Surrounding whitespace
// is ignored; the token itself must match exactly.
func ParseToken(token string) (bool, error) {
	switch strings.TrimSpace(token) {
	case TokenTrue:
		return true, nil
	case TokenFalse:
		return false, nil
	}
	return false, fmt.Errorf("%w: oracle returned %q, want %s or %s", ErrAmbiguousDecision, token, TokenTrue, TokenFalse)
}

// Router sends decisions that carry an expression to Expressions and all
// others to Default.
type Router struct {
	Default     Oracle
	Expressions Oracle
}

// Decide implements Oracle.
func (r Router) Decide(ctx context.Context, q Query) (string, error) {
	if q.Expression != "" && r.Expressions != nil {
		return r.Expressions.Decide(ctx, q)
	}
	if r.Default == nil {
		return "", errors.New("no decision oracle configured")
	}
	return r.Default.Decide(ctx, q)
}
