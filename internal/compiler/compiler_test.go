package compiler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/specialistvlad/runbookgo/internal/runbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exec(cmd string) *runbook.Operation {
	return &runbook.Operation{Kind: runbook.KindExecStmt, Command: cmd}
}

func rpa(stmts ...*runbook.Operation) *runbook.Operation {
	return &runbook.Operation{Kind: runbook.KindRpa, Children: stmts}
}

// nginxRunbook mirrors the canonical "restart nginx on 404" runbook.
func nginxRunbook() *runbook.Operation {
	return &runbook.Operation{
		Kind:    runbook.KindMultiNode,
		Targets: []string{"node1", "node2"},
		Children: []*runbook.Operation{{
			Kind: runbook.KindIfElse,
			Children: []*runbook.Operation{{
				Kind:      runbook.KindDecision,
				Condition: "Check for 404 error in nginx logs",
				Children:  []*runbook.Operation{rpa(exec("grep -q '404' /var/log/nginx/current"))},
			}},
			Then: []*runbook.Operation{rpa(exec("systemctl restart nginx"))},
		}},
	}
}

func TestCompile_Classification(t *testing.T) {
	// --- Arrange ---
	tree := nginxRunbook()

	// --- Act ---
	root, err := Compile(context.Background(), tree)

	// --- Assert ---
	require.NoError(t, err)

	assert.Equal(t, "supervisor_1", root.Name)
	assert.Equal(t, agent.RoleSupervisor, root.Role)
	assert.Equal(t, []string{"node1", "node2"}, root.Metadata.Targets)
	assert.Equal(t, []string{"targets"}, root.Metadata.Keys())
	require.Len(t, root.Children, 1)

	decision := root.Children[0]
	assert.Equal(t, "decision_supervisor_1", decision.Name)
	assert.Equal(t, agent.RoleDecisionSupervisor, decision.Role)
	assert.Equal(t, []string{"condition"}, decision.Metadata.Keys())
	require.Len(t, decision.Children, 2, "decision supervisors always have a TRUE and a FALSE slot")
	assert.Nil(t, decision.Children[1], "an empty else branch compiles to the empty stub")

	require.Len(t, decision.Checks, 1)
	check := decision.Checks[0]
	assert.Equal(t, "exec_1", check.Name)
	assert.Equal(t, "grep -q '404' /var/log/nginx/current", check.Metadata.Command)

	action := decision.Children[0]
	assert.Equal(t, "exec_2", action.Name)
	assert.Equal(t, agent.RoleExecution, action.Role)
	assert.Equal(t, "systemctl restart nginx", action.Metadata.Command)
	assert.Equal(t, DefaultTimeout, action.Metadata.Timeout)
	assert.Equal(t, []string{"command", "timeout"}, action.Metadata.Keys())
	assert.Empty(t, action.Children)
	assert.Contains(t, action.Prompt, "systemctl restart nginx")
	assert.Contains(t, action.Prompt, "TRUE branch")
}

func TestCompile_StructuralIdempotence(t *testing.T) {
	c := New(Options{})

	first, err := c.Compile(context.Background(), nginxRunbook())
	require.NoError(t, err)
	second, err := c.Compile(context.Background(), nginxRunbook())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("compiling the same tree twice produced different configs (-first +second):\n%s", diff)
	}
}

func TestCompile_Sequences(t *testing.T) {
	t.Run("rpa statements chain in order and inherit settings", func(t *testing.T) {
		tree := &runbook.Operation{
			Kind:    runbook.KindRpa,
			Timeout: 5 * time.Second,
			Tool:    "run_command",
			Children: []*runbook.Operation{
				exec("nginx -t"),
				{Kind: runbook.KindExecStmt, Command: "systemctl reload nginx", Timeout: time.Minute},
			},
		}

		head, err := Compile(context.Background(), tree)
		require.NoError(t, err)

		require.NotNil(t, head.Next)
		assert.Equal(t, "exec_1", head.Name)
		assert.Equal(t, 5*time.Second, head.Metadata.Timeout)
		assert.Equal(t, "run_command", head.Metadata.Tool)
		assert.Equal(t, "exec_2", head.Next.Name)
		assert.Equal(t, time.Minute, head.Next.Metadata.Timeout)
		assert.Nil(t, head.Next.Next)
	})

	t.Run("operations after an if-else follow the decision", func(t *testing.T) {
		tree := nginxRunbook()
		tree.Children = append(tree.Children, rpa(exec("curl -fsS localhost/healthz")))

		root, err := Compile(context.Background(), tree)
		require.NoError(t, err)

		decision := root.Children[0]
		require.NotNil(t, decision.Next)
		assert.Equal(t, "exec_3", decision.Next.Name)
	})

	t.Run("custom default timeout", func(t *testing.T) {
		head, err := New(Options{DefaultTimeout: 2 * time.Second}).Compile(context.Background(), exec("uptime"))
		require.NoError(t, err)
		assert.Equal(t, 2*time.Second, head.Metadata.Timeout)
	})
}

func TestCompile_Errors(t *testing.T) {
	cases := []struct {
		name string
		tree *runbook.Operation
		want error
	}{
		{
			name: "empty target list",
			tree: &runbook.Operation{Kind: runbook.KindMultiNode, Children: []*runbook.Operation{exec("uptime")}},
			want: ErrEmptyTargetList,
		},
		{
			name: "unknown kind at the root",
			tree: &runbook.Operation{Kind: runbook.Kind("loop-forever-op")},
			want: ErrUnknownOperationKind,
		},
		{
			name: "unknown kind deep in a branch",
			tree: func() *runbook.Operation {
				tree := nginxRunbook()
				tree.Children[0].Else = []*runbook.Operation{{Kind: runbook.Kind("sleep-op")}}
				return tree
			}(),
			want: ErrUnknownOperationKind,
		},
		{
			name: "nested supervisor",
			tree: &runbook.Operation{
				Kind:    runbook.KindMultiNode,
				Targets: []string{"a"},
				Children: []*runbook.Operation{{
					Kind:     runbook.KindMultiNode,
					Targets:  []string{"b"},
					Children: []*runbook.Operation{exec("uptime")},
				}},
			},
			want: ErrNestedSupervisor,
		},
		{
			name: "if-else without a decision",
			tree: &runbook.Operation{Kind: runbook.KindIfElse, Then: []*runbook.Operation{exec("uptime")}},
			want: ErrMalformedOperation,
		},
		{
			name: "bare decision",
			tree: &runbook.Operation{Kind: runbook.KindDecision, Condition: "x"},
			want: ErrMalformedOperation,
		},
		{
			name: "exec without command",
			tree: rpa(exec("  ")),
			want: ErrMalformedOperation,
		},
		{
			name: "multi-node without body",
			tree: &runbook.Operation{Kind: runbook.KindMultiNode, Targets: []string{"a"}},
			want: ErrMalformedOperation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Compile(context.Background(), tc.tree)

			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.True(t, errors.Is(err, tc.want), "got %v, want %v", err, tc.want)

			var opErr *OperationError
			require.ErrorAs(t, err, &opErr)
			assert.NotEmpty(t, opErr.Path)
		})
	}
}

func TestCompile_NamesArePerRole(t *testing.T) {
	tree := nginxRunbook()
	tree.Children[0].Else = []*runbook.Operation{{
		Kind: runbook.KindIfElse,
		Children: []*runbook.Operation{{
			Kind:      runbook.KindDecision,
			Condition: "Is the upstream reachable?",
		}},
		Then: []*runbook.Operation{exec("systemctl restart upstream")},
	}}

	root, err := Compile(context.Background(), tree)
	require.NoError(t, err)

	var names []string
	agent.Walk(root, func(c *agent.Config) { names = append(names, c.Name) })

	want := []string{"supervisor_1", "decision_supervisor_1", "exec_1", "exec_2", "decision_supervisor_2", "exec_3"}
	if diff := cmp.Diff(want, names, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("unexpected names (-want +got):\n%s", diff)
	}
}
