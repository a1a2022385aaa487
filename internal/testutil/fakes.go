package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// FakeName is the name every FakeModule collaborator is registered under.
const FakeName = "fake"

// ScriptedInvoker records invocations and answers them through Respond.
// A nil Respond answers OK.
type ScriptedInvoker struct {
	Respond func(ctx context.Context, inv tools.Invocation) (tools.Result, error)

	mu    sync.Mutex
	calls []tools.Invocation
}

// Invoke implements tools.Invoker.
func (s *ScriptedInvoker) Invoke(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	s.mu.Lock()
	s.calls = append(s.calls, inv)
	s.mu.Unlock()
	if s.Respond == nil {
		return tools.Result{Status: tools.StatusOK, Output: "ok"}, nil
	}
	return s.Respond(ctx, inv)
}

// Calls returns a copy of the recorded invocations.
func (s *ScriptedInvoker) Calls() []tools.Invocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]tools.Invocation(nil), s.calls...)
}

// Commands returns "target: command" for every recorded invocation.
func (s *ScriptedInvoker) Commands() []string {
	var out []string
	for _, c := range s.Calls() {
		out = append(out, c.Target+": "+c.Command)
	}
	return out
}

// RespondTo answers invocations whose command contains a key of script
// with that result; everything else is OK.
func RespondTo(script map[string]tools.Result) func(context.Context, tools.Invocation) (tools.Result, error) {
	return func(_ context.Context, inv tools.Invocation) (tools.Result, error) {
		for fragment, res := range script {
			if strings.Contains(inv.Command, fragment) {
				return res, nil
			}
		}
		return tools.Result{Status: tools.StatusOK, Output: "ok"}, nil
	}
}

// TokensByTarget is an oracle answering with a fixed token per target.
func TokensByTarget(tokens map[string]string) oracle.Oracle {
	return oracle.Func(func(_ context.Context, q oracle.Query) (string, error) {
		return tokens[q.Target], nil
	})
}

// RecordingSink keeps every published report body.
type RecordingSink struct {
	mu     sync.Mutex
	bodies [][]byte
}

// Publish implements report.Sink.
func (r *RecordingSink) Publish(_ context.Context, _ report.Summary, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bodies = append(r.bodies, body)
	return nil
}

// Bodies returns the published bodies.
func (r *RecordingSink) Bodies() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.bodies...)
}

// FakeModule registers scripted collaborators under FakeName.
type FakeModule struct {
	// Tools is the capability set; run_command when empty.
	Tools   []string
	Invoker *ScriptedInvoker
	Oracle  oracle.Oracle
	Sink    *RecordingSink
}

// Register implements registry.Module.
func (m *FakeModule) Register(r *registry.Registry) {
	r.RegisterProvider(FakeName, func(context.Context, registry.Settings) (tools.Provider, error) {
		names := m.Tools
		if len(names) == 0 {
			names = []string{"run_command"}
		}
		return tools.StaticProvider(tools.NewSet(names...)), nil
	})
	r.RegisterInvoker(FakeName, func(context.Context, registry.Settings) (tools.Invoker, error) {
		if m.Invoker == nil {
			m.Invoker = &ScriptedInvoker{}
		}
		return m.Invoker, nil
	})
	r.RegisterOracle(FakeName, func(context.Context, registry.Settings) (oracle.Oracle, error) {
		if m.Oracle == nil {
			return TokensByTarget(nil), nil
		}
		return m.Oracle, nil
	})
	r.RegisterSink(FakeName, func(context.Context, registry.Settings) (report.Sink, error) {
		if m.Sink == nil {
			m.Sink = &RecordingSink{}
		}
		return m.Sink, nil
	})
}
