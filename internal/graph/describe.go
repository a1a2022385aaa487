package graph

import (
	"fmt"
	"io"
	"strings"
)

// Describe writes a plain text rendering of the graph.
func (g *Graph) Describe(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s over [%s]\n", g.Iteration.Supervisor.Name, strings.Join(g.Iteration.Targets, ", "))
	b.WriteString("control:\n")
	for _, tr := range g.Iteration.Transitions {
		fmt.Fprintf(&b, "  %-9s -> %-9s (%s)\n", tr.From, tr.To, tr.Guard)
	}
	fmt.Fprintf(&b, "per-node workflow (entry %d):\n", g.Inner.Entry)
	for _, step := range g.Inner.Steps {
		fmt.Fprintf(&b, "  [%d] %-7s %s", step.ID, step.Kind, step.Name())
		switch step.Kind {
		case StepExecute:
			if step.Check {
				b.WriteString(" (check)")
			}
			fmt.Fprintf(&b, " %q", step.Agent.Metadata.Command)
		case StepDecide:
			fmt.Fprintf(&b, " %q", step.Agent.Metadata.Condition)
		}
		for _, e := range g.Inner.Outgoing(step.ID) {
			if e.Kind == EdgeAlways {
				fmt.Fprintf(&b, " -> %d", e.To)
			} else {
				fmt.Fprintf(&b, " %s-> %d", e.Kind, e.To)
			}
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
