package hcl_adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/runbookgo/internal/runbook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const restartRunbook = `
variable "service" {
  type    = string
  default = "nginx"
}

variable "targets" {
  type    = list(string)
  default = ["web1", "web2"]
}

runbook "restart-service" {
  description = "Restart a service that stopped answering"
  version     = "2"

  multi_node {
    targets = var.targets

    if_else {
      decision {
        condition  = "${var.service} is not running"
        expression = "evidence.exec_1 != 'active'"
        exec { command = "systemctl is-active ${var.service}" }
      }
      then {
        rpa {
          name    = "restart"
          timeout = "90s"
          tool    = "run_command"
          exec { command = "systemctl restart ${var.service}" }
          exec { command = "systemctl status ${upper(var.service)}" }
        }
      }
      else {
        exec { command = "echo ok" }
      }
    }
  }
}
`

func writeRunbook(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runbook.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o600))
	return path
}

func TestLoad_FullRunbook(t *testing.T) {
	// --- Arrange ---
	path := writeRunbook(t, restartRunbook)

	// --- Act ---
	rb, err := NewLoader().Load(context.Background(), path, nil)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, "restart-service", rb.Name)
	assert.Equal(t, "2", rb.Version)
	assert.Equal(t, path, rb.Source)

	want := &runbook.Operation{
		Kind:    runbook.KindMultiNode,
		Targets: []string{"web1", "web2"},
		Children: []*runbook.Operation{{
			Kind: runbook.KindIfElse,
			Children: []*runbook.Operation{{
				Kind:       runbook.KindDecision,
				Condition:  "nginx is not running",
				Expression: "evidence.exec_1 != 'active'",
				Children: []*runbook.Operation{
					{Kind: runbook.KindExecStmt, Command: "systemctl is-active nginx"},
				},
			}},
			Then: []*runbook.Operation{{
				Kind:    runbook.KindRpa,
				Name:    "restart",
				Tool:    "run_command",
				Timeout: 90 * time.Second,
				Children: []*runbook.Operation{
					{Kind: runbook.KindExecStmt, Command: "systemctl restart nginx"},
					{Kind: runbook.KindExecStmt, Command: "systemctl status NGINX"},
				},
			}},
			Else: []*runbook.Operation{{Kind: runbook.KindExecStmt, Command: "echo ok"}},
		}},
	}
	if diff := cmp.Diff(want, rb.Root); diff != "" {
		t.Errorf("operation tree mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_VariableOverrides(t *testing.T) {
	// --- Arrange ---
	path := writeRunbook(t, restartRunbook)

	// --- Act ---
	rb, err := NewLoader().Load(context.Background(), path, map[string]string{
		"service": "haproxy",
		"targets": "lb1, lb2,lb3",
	})

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, []string{"lb1", "lb2", "lb3"}, rb.Root.Targets)
	assert.Equal(t, "haproxy is not running", rb.Root.Children[0].Children[0].Condition)
}

func TestParse_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		src     string
		vars    map[string]string
		wantErr error
		wantMsg string
	}{
		{
			name:    "syntax error",
			src:     `runbook "x" {`,
			wantMsg: "failed to parse HCL file",
		},
		{
			name:    "no runbook block",
			src:     `variable "a" { default = "b" }`,
			wantErr: ErrRunbookShape,
		},
		{
			name:    "two top-level operations",
			src:     `runbook "x" {` + "\n" + `exec { command = "a" }` + "\n" + `exec { command = "b" }` + "\n}",
			wantErr: ErrRunbookShape,
		},
		{
			name:    "undeclared override",
			src:     `runbook "x" {` + "\n" + `exec { command = "a" }` + "\n}",
			vars:    map[string]string{"nope": "1"},
			wantErr: ErrUndeclaredVariable,
		},
		{
			name:    "unset variable",
			src:     `variable "svc" {}` + "\n" + `runbook "x" {` + "\n" + `exec { command = var.svc }` + "\n}",
			wantErr: ErrUnsetVariable,
		},
		{
			name:    "bad timeout",
			src:     `runbook "x" {` + "\n" + `exec {` + "\n" + `command = "a"` + "\n" + `timeout = "soon"` + "\n}\n}",
			wantMsg: "invalid timeout",
		},
		{
			name:    "missing targets",
			src:     `runbook "x" {` + "\n" + `multi_node {` + "\n" + `exec { command = "a" }` + "\n}\n}",
			wantMsg: `"targets" is required`,
		},
		{
			name:    "unknown attribute",
			src:     `runbook "x" {` + "\n" + `exec {` + "\n" + `cmd = "a"` + "\n}\n}",
			wantMsg: "Unsupported argument",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// --- Act ---
			_, err := NewLoader().Parse(context.Background(), []byte(tc.src), "test.hcl", tc.vars)

			// --- Assert ---
			require.Error(t, err)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			if tc.wantMsg != "" {
				assert.Contains(t, err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestParse_DuplicateBranch(t *testing.T) {
	src := `runbook "x" {
  multi_node {
    targets = ["a"]
    if_else {
      decision { condition = "c" }
      then { exec { command = "a" } }
      then { exec { command = "b" } }
    }
  }
}`
	_, err := NewLoader().Parse(context.Background(), []byte(src), "test.hcl", nil)
	require.ErrorIs(t, err, ErrRunbookShape)
	assert.Contains(t, err.Error(), `duplicate "then" block`)
}
