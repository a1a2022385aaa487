// Package print is a dry-run tool invoker. It writes every invocation to an
// output stream instead of touching any node.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Invoker prints invocations and reports them as successful.
type Invoker struct {
	mu  sync.Mutex
	out io.Writer
}

// NewInvoker creates an Invoker writing to out.
func NewInvoker(out io.Writer) *Invoker {
	return &Invoker{out: out}
}

// Invoke implements tools.Invoker.
func (p *Invoker) Invoke(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	ctxlog.FromContext(ctx).Info("Printing invocation", "agent", inv.Agent, "target", inv.Target)

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := fmt.Fprintf(p.out, "      [%s] %s: %s\n", inv.Target, inv.Agent, inv.Command); err != nil {
		return tools.Result{}, err
	}
	return tools.Result{Status: tools.StatusOK, Output: "dry-run"}, nil
}

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out defaults to stdout.
	Out io.Writer
}

// Register registers the print invoker.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterInvoker("print", func(context.Context, registry.Settings) (tools.Invoker, error) {
		out := m.Out
		if out == nil {
			out = os.Stdout
		}
		return NewInvoker(out), nil
	})
}
