package tools

import (
	"context"
	"time"
)

// Status is the outcome reported by an Invoker.
type Status string

const (
	StatusOK      Status = "OK"
	StatusError   Status = "ERROR"
	StatusTimeout Status = "TIMEOUT"
)

// Invocation is one command to run on one target node.
type Invocation struct {
	Agent   string
	Command string
	Target  string
	// Tool is an optional preferred tool name from the runbook.
	Tool    string
	Timeout time.Duration
	// Tools is the capability set bound to the calling execution agent.
	Tools []string
}

// Result is what the Tool Invocation Service returned for an Invocation.
type Result struct {
	Status Status
	Output string
}

// Invoker runs commands on target nodes. A non-nil error means the call never
// produced a Result (transport failure); command failures are reported
// through Result.Status.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (Result, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, inv Invocation) (Result, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// Provider supplies the capability set available to execution agents. It is
// queried once per run.
type Provider interface {
	Capabilities(ctx context.Context) (Set, error)
}

// StaticProvider always returns the same set.
type StaticProvider Set

// Capabilities implements Provider.
func (p StaticProvider) Capabilities(context.Context) (Set, error) {
	return Set(p), nil
}
