package graph

import (
	"context"
	"strings"
	"testing"

	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/specialistvlad/runbookgo/internal/binding"
	"github.com/specialistvlad/runbookgo/internal/compiler"
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

func multiNode(body ...*runbook.Operation) *runbook.Operation {
	return &runbook.Operation{Kind: runbook.KindMultiNode, Targets: []string{"node1", "node2"}, Children: body}
}

func bound(t *testing.T, op *runbook.Operation) *agent.Bound {
	t.Helper()
	cfg, err := compiler.Compile(context.Background(), op)
	require.NoError(t, err)
	b, err := binding.Bind(cfg, tools.NewSet("run_command"))
	require.NoError(t, err)
	return b
}

func TestBuild_DecisionWithCheck(t *testing.T) {
	// --- Arrange ---
	root := bound(t, multiNode(ifElse("404 in logs",
		[]*runbook.Operation{execOp("grep -q 404 /var/log/nginx/current")},
		[]*runbook.Operation{execOp("systemctl restart nginx")},
		nil,
	)))

	// --- Act ---
	g, err := Build(context.Background(), root)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "supervisor_1", g.Iteration.Supervisor.Name)
	assert.Equal(t, []string{"node1", "node2"}, g.Iteration.Targets)

	inner := g.Inner
	require.Len(t, inner.Steps, 4)
	assert.Equal(t, StepID(0), inner.Entry)
	assert.Equal(t, StepID(3), inner.Exit)

	check := inner.Step(0)
	assert.Equal(t, StepExecute, check.Kind)
	assert.True(t, check.Check)
	assert.Equal(t, "exec_1", check.Name())

	decide := inner.Step(1)
	assert.Equal(t, StepDecide, decide.Kind)
	assert.Equal(t, []string{"exec_1"}, decide.Evidence)

	onTrue, ok := inner.Successor(decide.ID, EdgeOnTrue)
	require.True(t, ok)
	assert.Equal(t, "exec_2", inner.Step(onTrue).Name())

	onFalse, ok := inner.Successor(decide.ID, EdgeOnFalse)
	require.True(t, ok)
	assert.Equal(t, inner.Exit, onFalse, "an empty FALSE branch goes straight to the decision's successor")

	next, ok := inner.Successor(onTrue, EdgeAlways)
	require.True(t, ok)
	assert.Equal(t, inner.Exit, next)
	assert.Equal(t, StepFinish, inner.Step(inner.Exit).Kind)
}

func TestBuild_BranchesRejoin(t *testing.T) {
	root := bound(t, multiNode(
		ifElse("404 in logs", nil,
			[]*runbook.Operation{execOp("systemctl restart nginx")},
			[]*runbook.Operation{execOp("echo healthy")},
		),
		execOp("curl -fsS localhost/healthz"),
	))

	g, err := Build(context.Background(), root)
	require.NoError(t, err)

	inner := g.Inner
	entry := inner.Step(inner.Entry)
	require.Equal(t, StepDecide, entry.Kind)

	onTrue, _ := inner.Successor(entry.ID, EdgeOnTrue)
	onFalse, _ := inner.Successor(entry.ID, EdgeOnFalse)
	afterTrue, _ := inner.Successor(onTrue, EdgeAlways)
	afterFalse, _ := inner.Successor(onFalse, EdgeAlways)

	assert.Equal(t, "exec_1", inner.Step(onTrue).Name())
	assert.Equal(t, "exec_2", inner.Step(onFalse).Name())
	assert.Equal(t, afterTrue, afterFalse, "both branches continue at the same step")
	assert.Equal(t, "exec_3", inner.Step(afterTrue).Name())
}

func TestBuild_Errors(t *testing.T) {
	t.Run("root is not a supervisor", func(t *testing.T) {
		_, err := Build(context.Background(), bound(t, execOp("uptime")))
		assert.ErrorIs(t, err, ErrMissingSupervisor)
	})

	t.Run("nil root", func(t *testing.T) {
		_, err := Build(context.Background(), nil)
		assert.ErrorIs(t, err, ErrMissingSupervisor)
	})

	t.Run("nested supervisor", func(t *testing.T) {
		// The compiler refuses this shape, so assemble it by hand.
		inner := &agent.Bound{Config: &agent.Config{Name: "supervisor_2", Role: agent.RoleSupervisor}}
		root := &agent.Bound{
			Config:   &agent.Config{Name: "supervisor_1", Role: agent.RoleSupervisor},
			Children: []*agent.Bound{inner},
		}

		_, err := Build(context.Background(), root)
		assert.ErrorIs(t, err, ErrNestedSupervisor)
	})

	t.Run("decision with one branch slot", func(t *testing.T) {
		decision := &agent.Bound{
			Config:   &agent.Config{Name: "decision_supervisor_1", Role: agent.RoleDecisionSupervisor},
			Children: []*agent.Bound{nil},
		}
		root := &agent.Bound{
			Config:   &agent.Config{Name: "supervisor_1", Role: agent.RoleSupervisor},
			Children: []*agent.Bound{decision},
		}

		_, err := Build(context.Background(), root)
		assert.ErrorIs(t, err, ErrMalformedGraph)
	})
}

func TestSubgraphValidate(t *testing.T) {
	exec := func(name string) *agent.Bound {
		return &agent.Bound{Config: &agent.Config{Name: name, Role: agent.RoleExecution}}
	}

	t.Run("cycle", func(t *testing.T) {
		s := newSubgraph(
			[]Step{
				{ID: 0, Kind: StepExecute, Agent: exec("a")},
				{ID: 1, Kind: StepExecute, Agent: exec("b")},
				{ID: 2, Kind: StepFinish},
			},
			[]Edge{{0, 1, EdgeAlways}, {1, 0, EdgeAlways}},
			0, 2,
		)
		err := s.Validate()
		assert.ErrorIs(t, err, ErrMalformedGraph)
		assert.ErrorContains(t, err, "cycle detected")
	})

	t.Run("unreachable step", func(t *testing.T) {
		s := newSubgraph(
			[]Step{
				{ID: 0, Kind: StepExecute, Agent: exec("a")},
				{ID: 1, Kind: StepExecute, Agent: exec("orphan")},
				{ID: 2, Kind: StepFinish},
			},
			[]Edge{{0, 2, EdgeAlways}, {1, 2, EdgeAlways}},
			0, 2,
		)
		assert.ErrorContains(t, s.Validate(), "orphan is unreachable")
	})

	t.Run("decide without FALSE edge", func(t *testing.T) {
		s := newSubgraph(
			[]Step{
				{ID: 0, Kind: StepDecide, Agent: &agent.Bound{Config: &agent.Config{Name: "d"}}},
				{ID: 1, Kind: StepFinish},
			},
			[]Edge{{0, 1, EdgeOnTrue}},
			0, 1,
		)
		assert.ErrorContains(t, s.Validate(), "one TRUE and one FALSE")
	})
}

func TestIterationAllows(t *testing.T) {
	g, err := Build(context.Background(), bound(t, multiNode(execOp("uptime"))))
	require.NoError(t, err)

	it := g.Iteration
	assert.True(t, it.Allows(StateInit, StateProcess))
	assert.True(t, it.Allows(StateAdvance, StateProcess))
	assert.True(t, it.Allows(StateAdvance, StateAggregate))
	assert.False(t, it.Allows(StateProcess, StateProcess), "the loop goes through ADVANCE")
	assert.False(t, it.Allows(StateEnd, StateInit))
	assert.False(t, it.Allows(StateInit, StateAggregate))
}

func TestDescribe(t *testing.T) {
	g, err := Build(context.Background(), bound(t, multiNode(ifElse("404 in logs",
		[]*runbook.Operation{execOp("grep -q 404 log")},
		[]*runbook.Operation{execOp("systemctl restart nginx")},
		nil,
	))))
	require.NoError(t, err)

	var b strings.Builder
	require.NoError(t, g.Describe(&b))
	out := b.String()

	assert.Contains(t, out, "supervisor_1 over [node1, node2]")
	assert.Contains(t, out, "[0] execute exec_1 (check) \"grep -q 404 log\" -> 1")
	assert.Contains(t, out, "[1] decide  decision_supervisor_1 \"404 in logs\" TRUE-> 2 FALSE-> 3")
	assert.Contains(t, out, "[3] finish  finish")
}
