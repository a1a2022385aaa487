// Package static provides fixed answers: a decision oracle driven by
// settings and a capability provider with a configured tool list. It is
// meant for dry runs and rehearsals.
//
//	modules:
//	  static:
//	    answer: "FALSE"
//	    answer.web1: "TRUE"
//	    tools: run_command,read_file
package static

import (
	"context"

	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Oracle answers every decision for a target with the same token.
type Oracle struct {
	Default   string
	PerTarget map[string]string
}

// Decide implements oracle.Oracle.
func (o Oracle) Decide(_ context.Context, q oracle.Query) (string, error) {
	if token, ok := o.PerTarget[q.Target]; ok {
		return token, nil
	}
	return o.Default, nil
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the static oracle and capability provider.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterOracle("static", func(_ context.Context, s registry.Settings) (oracle.Oracle, error) {
		return Oracle{Default: s.String("answer", oracle.TokenFalse), PerTarget: s.Prefixed("answer.")}, nil
	})
	r.RegisterProvider("static", func(_ context.Context, s registry.Settings) (tools.Provider, error) {
		names := s.List("tools")
		if len(names) == 0 {
			names = []string{"run_command"}
		}
		return tools.StaticProvider(tools.NewSet(names...)), nil
	})
}
