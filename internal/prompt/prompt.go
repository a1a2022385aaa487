// Package prompt synthesizes the instructions attached to each compiled
// agent. Synthesis is a pure function of the agent's role, its metadata and
// the labels of its ancestors.
package prompt

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/specialistvlad/runbookgo/internal/agent"
)

const supervisorTemplate = `You are {{ .Name }}, a supervisor coordinating a runbook across infrastructure nodes.
Target nodes, in order: {{ .Metadata.Targets | join ", " }}.
You never execute commands yourself. Each node is processed by the same workflow, one node at a time.
{{- template "ancestry" . }}`

const decisionTemplate = `You are {{ .Name }}, a decision supervisor.
Condition to evaluate for the current node:
{{ .Metadata.Condition | indent 2 }}
{{- if .Metadata.Expression }}
Deterministic check: {{ .Metadata.Expression | quote }}
{{- end }}
Review the evidence gathered by the preceding checks and reply with exactly one token: TRUE or FALSE.
Any other reply is treated as a failure.
{{- template "ancestry" . }}`

const executionTemplate = `You are {{ .Name }}, an execution agent.
Run the following command on the current target node and report its output verbatim:
{{ .Metadata.Command | indent 2 }}
{{- if .Metadata.Tool }}
Preferred tool: {{ .Metadata.Tool }}.
{{- end }}
Time limit: {{ .Metadata.Timeout }}.
{{- template "ancestry" . }}`

const ancestryTemplate = `{{ define "ancestry" }}{{ if .Ancestors }}
Context:
{{- range $i, $a := .Ancestors }}
{{ repeat (add1 $i | int) "  " }}- {{ $a }}
{{- end }}
{{- end }}{{ end }}`

var templates = func() map[agent.Role]*template.Template {
	out := make(map[agent.Role]*template.Template, 3)
	for role, body := range map[agent.Role]string{
		agent.RoleSupervisor:         supervisorTemplate,
		agent.RoleDecisionSupervisor: decisionTemplate,
		agent.RoleExecution:          executionTemplate,
	} {
		t := template.New(string(role)).Option("missingkey=error").Funcs(sprig.TxtFuncMap())
		t = template.Must(t.Parse(ancestryTemplate))
		out[role] = template.Must(t.Parse(body))
	}
	return out
}()

type data struct {
	Name      string
	Metadata  agent.Metadata
	Ancestors []string
}

// Synthesize renders the prompt for an agent.
func Synthesize(name string, role agent.Role, md agent.Metadata, ancestors []string) (string, error) {
	t, ok := templates[role]
	if !ok {
		return "", fmt.Errorf("no prompt template for role %q", role)
	}
	var b strings.Builder
	if err := t.Execute(&b, data{Name: name, Metadata: md, Ancestors: ancestors}); err != nil {
		return "", fmt.Errorf("rendering %s prompt for %s: %w", role, name, err)
	}
	return b.String(), nil
}
