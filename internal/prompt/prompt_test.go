package prompt

import (
	"testing"
	"time"

	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesize(t *testing.T) {
	t.Run("execution prompt embeds the command", func(t *testing.T) {
		got, err := Synthesize("exec_1", agent.RoleExecution, agent.Metadata{
			Command: "systemctl restart nginx",
			Timeout: 30 * time.Second,
		}, nil)

		require.NoError(t, err)
		assert.Contains(t, got, "exec_1")
		assert.Contains(t, got, "  systemctl restart nginx")
		assert.Contains(t, got, "30s")
		assert.NotContains(t, got, "Context:")
	})

	t.Run("decision prompt demands a single token", func(t *testing.T) {
		got, err := Synthesize("decision_supervisor_1", agent.RoleDecisionSupervisor, agent.Metadata{
			Condition: "Check for 404 error in nginx logs",
		}, []string{"supervisor_1 over node1, node2"})

		require.NoError(t, err)
		assert.Contains(t, got, "TRUE or FALSE")
		assert.Contains(t, got, "Check for 404 error in nginx logs")
		assert.Contains(t, got, "  - supervisor_1 over node1, node2")
	})

	t.Run("supervisor prompt lists targets", func(t *testing.T) {
		got, err := Synthesize("supervisor_1", agent.RoleSupervisor, agent.Metadata{
			Targets: []string{"node1", "node2"},
		}, nil)

		require.NoError(t, err)
		assert.Contains(t, got, "node1, node2")
	})

	t.Run("is deterministic", func(t *testing.T) {
		md := agent.Metadata{Command: "uptime", Timeout: time.Second}
		a, err := Synthesize("exec_1", agent.RoleExecution, md, []string{"x", "y"})
		require.NoError(t, err)
		b, err := Synthesize("exec_1", agent.RoleExecution, md, []string{"x", "y"})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := Synthesize("x", agent.Role("ROGUE"), agent.Metadata{}, nil)
		assert.ErrorContains(t, err, "no prompt template")
	})
}
