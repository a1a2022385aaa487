package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/runbookgo/internal/binding"
	"github.com/specialistvlad/runbookgo/internal/compiler"
	"github.com/specialistvlad/runbookgo/internal/graph"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/runbook"
	"github.com/specialistvlad/runbookgo/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execOp(cmd string) *runbook.Operation {
	return &runbook.Operation{Kind: runbook.KindExecStmt, Command: cmd}
}

func ifElse(cond string, checks, then, els []*runbook.Operation) *runbook.Operation {
	return &runbook.Operation{
		Kind:     runbook.KindIfElse,
		Children: []*runbook.Operation{{Kind: runbook.KindDecision, Condition: cond, Children: checks}},
		Then:     then,
		Else:     els,
	}
}

func multiNode(targets []string, body ...*runbook.Operation) *runbook.Operation {
	return &runbook.Operation{Kind: runbook.KindMultiNode, Targets: targets, Children: body}
}

func build(t *testing.T, op *runbook.Operation) *graph.Graph {
	t.Helper()
	cfg, err := compiler.Compile(context.Background(), op)
	require.NoError(t, err)
	b, err := binding.Bind(cfg, tools.NewSet("run_command"))
	require.NoError(t, err)
	g, err := graph.Build(context.Background(), b)
	require.NoError(t, err)
	return g
}

// recordingInvoker answers every invocation through fn and keeps a log.
type recordingInvoker struct {
	mu    sync.Mutex
	calls []tools.Invocation
	fn    func(ctx context.Context, inv tools.Invocation) (tools.Result, error)
}

func (r *recordingInvoker) Invoke(ctx context.Context, inv tools.Invocation) (tools.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, inv)
	r.mu.Unlock()
	if r.fn == nil {
		return tools.Result{Status: tools.StatusOK, Output: "ok"}, nil
	}
	return r.fn(ctx, inv)
}

func (r *recordingInvoker) targets() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, c := range r.calls {
		out = append(out, c.Target)
	}
	return out
}

func tokensByTarget(tokens map[string]string) oracle.Oracle {
	return oracle.Func(func(_ context.Context, q oracle.Query) (string, error) {
		return tokens[q.Target], nil
	})
}

type eventLog struct {
	steps     []string
	decisions []string
	nodes     []string
}

func (l *eventLog) StepFinished(agent string, status tools.Status, _ time.Duration) {
	l.steps = append(l.steps, agent+":"+string(status))
}

func (l *eventLog) DecisionMade(agent, token string) {
	l.decisions = append(l.decisions, agent+":"+token)
}

func (l *eventLog) NodeFinished(target string, status report.Status, _ time.Duration) {
	l.nodes = append(l.nodes, target+":"+string(status))
}

func TestRun_DecisionRoutesPerNode(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1", "node2"},
		ifElse("nginx is down", nil, []*runbook.Operation{execOp("systemctl restart nginx")}, nil),
	))
	inv := &recordingInvoker{}
	events := &eventLog{}
	exec := New(tokensByTarget(map[string]string{"node1": "TRUE", "node2": "FALSE"}), inv,
		WithObserver(events), WithRunID("run-a"))

	// --- Act ---
	out, err := exec.Run(context.Background(), g, []string{"node1", "node2"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "run-a", out.RunID)
	assert.Equal(t, "run-a", out.Summary.RunID)
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 2, out.Summary.SuccessCount)
	assert.Zero(t, out.Summary.FailureCount)

	require.Len(t, out.Summary.PerNode, 2)
	n1, n2 := out.Summary.PerNode[0], out.Summary.PerNode[1]
	assert.Equal(t, "node1", n1.TargetNode)
	assert.Equal(t, report.DecisionTrue, n1.DecisionResult)
	assert.Equal(t, 1, n1.Executions())
	assert.Equal(t, "node2", n2.TargetNode)
	assert.Equal(t, report.DecisionFalse, n2.DecisionResult)
	assert.Zero(t, n2.Executions())

	assert.Equal(t, []string{"node1"}, inv.targets())
	assert.Equal(t, []string{"decision_supervisor_1:TRUE", "decision_supervisor_1:FALSE"}, events.decisions)
	assert.Equal(t, []string{"node1:SUCCESS", "node2:SUCCESS"}, events.nodes)

	assert.Equal(t, graph.StateEnd, out.State.Control)
	assert.True(t, out.State.AllNodesComplete)
	assert.Equal(t, 2, out.State.CurrentNodeIndex)
	assert.Nil(t, out.State.SubgraphState)
}

func TestRun_ToolTimeoutFailsOnlyThatNode(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1", "node2"}, execOp("df -h")))
	inv := &recordingInvoker{fn: func(_ context.Context, inv tools.Invocation) (tools.Result, error) {
		if inv.Target == "node1" {
			return tools.Result{Status: tools.StatusTimeout}, nil
		}
		return tools.Result{Status: tools.StatusOK, Output: "/dev/sda1 40%"}, nil
	}}

	// --- Act ---
	out, err := New(tokensByTarget(nil), inv).Run(context.Background(), g, []string{"node1", "node2"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.SuccessCount)
	assert.Equal(t, 1, out.Summary.FailureCount)
	assert.True(t, out.Summary.Failed())

	failed := out.Summary.PerNode[0]
	assert.Equal(t, report.StatusFailure, failed.Status)
	assert.Contains(t, failed.Detail, "timeout")
	assert.Equal(t, string(CauseTimeout), failed.Error)
	assert.Equal(t, report.StatusSuccess, out.Summary.PerNode[1].Status)
}

func TestRun_StepDeadlineBecomesTimeout(t *testing.T) {
	// --- Arrange ---
	op := execOp("sleep 600")
	op.Timeout = 10 * time.Millisecond
	g := build(t, multiNode([]string{"node1"}, op))
	inv := &recordingInvoker{fn: func(ctx context.Context, _ tools.Invocation) (tools.Result, error) {
		<-ctx.Done()
		return tools.Result{}, ctx.Err()
	}}

	// --- Act ---
	out, err := New(tokensByTarget(nil), inv).Run(context.Background(), g, []string{"node1"})

	// --- Assert ---
	require.NoError(t, err, "a step deadline must not abort the run")
	require.Len(t, out.Summary.PerNode, 1)
	assert.Equal(t, report.StatusFailure, out.Summary.PerNode[0].Status)
	assert.Contains(t, out.Summary.PerNode[0].Detail, "timeout")
}

func TestRun_EmptyTargets(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1"}, execOp("uptime")))
	inv := &recordingInvoker{}

	// --- Act ---
	out, err := New(tokensByTarget(nil), inv).Run(context.Background(), g, nil)

	// --- Assert ---
	require.ErrorIs(t, err, ErrNoTargetNodes)
	assert.Nil(t, out)
	assert.Empty(t, inv.targets(), "no node may be processed")
}

func TestRun_DuplicateTargets(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1"}, execOp("uptime")))
	inv := &recordingInvoker{}

	// --- Act ---
	_, err := New(tokensByTarget(nil), inv).Run(context.Background(), g, []string{"node1", "node2", "node1"})

	// --- Assert ---
	require.ErrorIs(t, err, ErrDuplicateTargetNode)
	assert.Empty(t, inv.targets())
}

func TestRun_AmbiguousDecision(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1", "node2"},
		ifElse("disk is full", nil,
			[]*runbook.Operation{execOp("journalctl --vacuum-size=100M")},
			[]*runbook.Operation{execOp("echo fine")},
		),
	))
	inv := &recordingInvoker{}
	exec := New(tokensByTarget(map[string]string{"node1": "MAYBE", "node2": " FALSE\n"}), inv)

	// --- Act ---
	out, err := exec.Run(context.Background(), g, []string{"node1", "node2"})

	// --- Assert ---
	require.NoError(t, err)
	n1 := out.Summary.PerNode[0]
	assert.Equal(t, report.StatusFailure, n1.Status)
	assert.Equal(t, report.DecisionUnset, n1.DecisionResult)
	assert.Equal(t, "MAYBE", n1.DecisionToken)
	assert.Equal(t, string(CauseAmbiguous), n1.Error)
	assert.Contains(t, n1.Detail, "ambiguous")
	assert.Zero(t, n1.Executions(), "no branch may be entered")

	n2 := out.Summary.PerNode[1]
	assert.Equal(t, report.StatusSuccess, n2.Status)
	assert.Equal(t, report.DecisionFalse, n2.DecisionResult)
	assert.Equal(t, " FALSE\n", n2.DecisionToken)
	assert.Equal(t, []string{"node2"}, inv.targets())
}

func TestRun_FailFastSkipsRemaining(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"a"}, execOp("false")))
	inv := &recordingInvoker{fn: func(context.Context, tools.Invocation) (tools.Result, error) {
		return tools.Result{Status: tools.StatusError, Output: "exit status 1\nstderr"}, nil
	}}

	// --- Act ---
	out, err := New(tokensByTarget(nil), inv, WithFailFast(true)).Run(context.Background(), g, []string{"a", "b", "c"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, inv.targets())
	assert.Equal(t, 1, out.Summary.FailureCount)
	assert.Equal(t, 2, out.Summary.SkippedCount)
	assert.Equal(t, "tool_error", out.Summary.PerNode[0].Error)
	assert.Contains(t, out.Summary.PerNode[0].Detail, "exit status 1")
	assert.NotContains(t, out.Summary.PerNode[0].Detail, "stderr")
	assert.Equal(t, report.StatusSkipped, out.Summary.PerNode[2].Status)
	assert.Contains(t, out.Summary.PerNode[1].Detail, "failure on a")
	assert.False(t, out.State.AllNodesComplete)
	assert.Equal(t, 1, out.State.CurrentNodeIndex)
}

func TestRun_FailFastOnLastNodeCompletes(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"n1", "n2"}, execOp("systemctl is-active nginx")))
	inv := &recordingInvoker{fn: func(_ context.Context, inv tools.Invocation) (tools.Result, error) {
		if inv.Target == "n2" {
			return tools.Result{Status: tools.StatusError, Output: "inactive"}, nil
		}
		return tools.Result{Status: tools.StatusOK, Output: "active"}, nil
	}}

	// --- Act ---
	out, err := New(tokensByTarget(nil), inv, WithFailFast(true)).Run(context.Background(), g, []string{"n1", "n2"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, 1, out.Summary.FailureCount)
	assert.Zero(t, out.Summary.SkippedCount)
	assert.Equal(t, len(out.State.TargetNodes), out.State.CurrentNodeIndex)
	assert.True(t, out.State.AllNodesComplete, "every node was processed")
	assert.Empty(t, out.State.CurrentTargetNode)
}

func TestRun_IsDeterministic(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"web1", "web2", "web3"},
		ifElse("nginx is down", []*runbook.Operation{execOp("systemctl is-active nginx")},
			[]*runbook.Operation{execOp("systemctl restart nginx")},
			[]*runbook.Operation{execOp("echo healthy")},
		),
		execOp("uptime"),
	))
	respond := func(_ context.Context, inv tools.Invocation) (tools.Result, error) {
		switch {
		case inv.Target == "web3" && inv.Command == "uptime":
			return tools.Result{Status: tools.StatusError, Output: "no route to host"}, nil
		case inv.Command == "systemctl is-active nginx" && inv.Target == "web1":
			return tools.Result{Status: tools.StatusError, Output: "inactive"}, nil
		}
		return tools.Result{Status: tools.StatusOK, Output: inv.Target + ": " + inv.Command}, nil
	}
	tokens := map[string]string{"web1": "TRUE", "web2": "FALSE", "web3": "FALSE"}
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	runOnce := func() *Outcome {
		exec := New(tokensByTarget(tokens), &recordingInvoker{fn: respond},
			WithRunID("run-fixed"), WithClock(func() time.Time { return clock }))
		out, err := exec.Run(context.Background(), g, []string{"web1", "web2", "web3"})
		require.NoError(t, err)
		return out
	}

	// --- Act ---
	first := runOnce()
	second := runOnce()

	// --- Assert ---
	if diff := cmp.Diff(first.Summary.PerNode, second.Summary.PerNode); diff != "" {
		t.Errorf("node results differ between runs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Messages(), second.Messages()); diff != "" {
		t.Errorf("audit trails differ between runs (-first +second):\n%s", diff)
	}
	assert.Equal(t, 1, first.Summary.FailureCount)
}

func TestRun_FailureWithoutFailFastContinues(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"a"}, execOp("false"), execOp("never reached")))
	inv := &recordingInvoker{fn: func(_ context.Context, inv tools.Invocation) (tools.Result, error) {
		return tools.Result{Status: tools.StatusError}, nil
	}}

	// --- Act ---
	out, err := New(tokensByTarget(nil), inv).Run(context.Background(), g, []string{"a", "b"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, inv.targets(), "the inner walk stops at the failed step of each node")
	assert.Equal(t, 2, out.Summary.FailureCount)
}

func TestRun_CheckErrorIsEvidence(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1"},
		ifElse("nginx answers", []*runbook.Operation{execOp("curl -sf localhost")},
			nil, []*runbook.Operation{execOp("systemctl restart nginx")}),
	))
	inv := &recordingInvoker{fn: func(_ context.Context, inv tools.Invocation) (tools.Result, error) {
		if inv.Command == "curl -sf localhost" {
			return tools.Result{Status: tools.StatusError, Output: "connection refused"}, nil
		}
		return tools.Result{Status: tools.StatusOK}, nil
	}}
	var seen map[string]string
	o := oracle.Func(func(_ context.Context, q oracle.Query) (string, error) {
		seen = q.Evidence
		return oracle.TokenFalse, nil
	})

	// --- Act ---
	out, err := New(o, inv).Run(context.Background(), g, []string{"node1"})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"exec_1": "connection refused"}, seen)
	n := out.Summary.PerNode[0]
	assert.Equal(t, report.StatusSuccess, n.Status)
	assert.Equal(t, 1, n.Executions(), "checks are not counted as executions")
	require.Len(t, n.Steps, 2)
	assert.True(t, n.Steps[0].Check)
}

func TestRun_TransportAndOracleErrors(t *testing.T) {
	testCases := []struct {
		name   string
		op     *runbook.Operation
		inv    tools.Invoker
		oracle oracle.Oracle
		cause  Cause
	}{
		{
			name: "transport",
			op:   execOp("uptime"),
			inv: tools.InvokerFunc(func(context.Context, tools.Invocation) (tools.Result, error) {
				return tools.Result{}, errors.New("connection reset")
			}),
			oracle: tokensByTarget(nil),
			cause:  CauseTransport,
		},
		{
			name: "oracle",
			op:   ifElse("x", nil, nil, nil),
			inv:  &recordingInvoker{},
			oracle: oracle.Func(func(context.Context, oracle.Query) (string, error) {
				return "", errors.New("rate limited")
			}),
			cause: CauseOracle,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Arrange ---
			g := build(t, multiNode([]string{"n"}, tc.op))

			// --- Act ---
			out, err := New(tc.oracle, tc.inv).Run(context.Background(), g, []string{"n"})

			// --- Assert ---
			require.NoError(t, err)
			assert.Equal(t, string(tc.cause), out.Summary.PerNode[0].Error)
			assert.Equal(t, report.StatusFailure, out.Summary.PerNode[0].Status)
		})
	}
}

func TestRun_CancelledContextAborts(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"n"}, execOp("uptime")))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// --- Act ---
	out, err := New(tokensByTarget(nil), &recordingInvoker{}).Run(ctx, g, []string{"n"})

	// --- Assert ---
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out)
}

func TestRun_IllegalTransition(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"n"}, execOp("uptime")))
	g.Iteration.Transitions = nil

	// --- Act ---
	_, err := New(tokensByTarget(nil), &recordingInvoker{}).Run(context.Background(), g, []string{"n"})

	// --- Assert ---
	require.ErrorIs(t, err, ErrIllegalTransition)
}

func TestRun_AuditTrail(t *testing.T) {
	// --- Arrange ---
	g := build(t, multiNode([]string{"node1", "node2"}, execOp("uptime")))
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	exec := New(tokensByTarget(nil), &recordingInvoker{}, WithClock(func() time.Time { return clock }))

	// --- Act ---
	out, err := exec.Run(context.Background(), g, []string{"node1", "node2"})

	// --- Assert ---
	require.NoError(t, err)
	msgs := out.Messages()
	require.NotEmpty(t, msgs)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.Seq, "sequence numbers are dense and ordered")
		assert.Equal(t, clock, m.Time)
	}

	var perTarget int
	for _, m := range msgs {
		if m.Agent == "exec_1" && m.Target == "node2" {
			perTarget++
		}
	}
	assert.Equal(t, 2, perTarget, "invoke and completion are both recorded")
	assert.Equal(t, "AGGREGATE -> END", msgs[len(msgs)-1].Text)
}

func TestParseTokenIsExact(t *testing.T) {
	_, err := oracle.ParseToken("true")
	assert.ErrorIs(t, err, oracle.ErrAmbiguousDecision)
}
