package agent

import (
	"fmt"
	"time"

	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Role is the closed set of agent roles.
type Role string

const (
	RoleSupervisor         Role = "SUPERVISOR"
	RoleDecisionSupervisor Role = "DECISION_SUPERVISOR"
	RoleExecution          Role = "EXECUTION"
)

// Prefix returns the name prefix used for agents of this role.
func (r Role) Prefix() string {
	switch r {
	case RoleSupervisor:
		return "supervisor"
	case RoleDecisionSupervisor:
		return "decision_supervisor"
	case RoleExecution:
		return "exec"
	}
	panic(fmt.Sprintf("agent: unknown role %q", string(r)))
}

// Metadata carries the role-relevant operation fields. Only the fields that
// belong to the agent's role are populated.
type Metadata struct {
	// SUPERVISOR
	Targets []string `json:"targets,omitempty"`
	// DECISION_SUPERVISOR
	Condition  string `json:"condition,omitempty"`
	Expression string `json:"expression,omitempty"`
	// EXECUTION
	Command string        `json:"command,omitempty"`
	Tool    string        `json:"tool,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Keys lists the metadata keys that are set.
func (m Metadata) Keys() []string {
	var keys []string
	if m.Command != "" {
		keys = append(keys, "command")
	}
	if m.Condition != "" {
		keys = append(keys, "condition")
	}
	if m.Expression != "" {
		keys = append(keys, "expression")
	}
	if len(m.Targets) > 0 {
		keys = append(keys, "targets")
	}
	if m.Timeout > 0 {
		keys = append(keys, "timeout")
	}
	if m.Tool != "" {
		keys = append(keys, "tool")
	}
	return keys
}

// Config is one compiled agent.
//
// A SUPERVISOR has exactly one child: the head of its per-node body. A
// DECISION_SUPERVISOR has exactly two children, TRUE branch first; a nil entry
// is an empty branch. EXECUTION agents have no children. Next links an agent
// to the one that follows it in the same body or branch.
type Config struct {
	Name     string
	Role     Role
	Prompt   string
	Metadata Metadata
	Children []*Config
	Next     *Config
	// Checks are the evidence-gathering executions a DECISION_SUPERVISOR
	// runs before its condition is evaluated.
	Checks []*Config
}

// Bound is a Config with its capability set attached.
type Bound struct {
	*Config
	Tools    tools.Set
	Children []*Bound
	Next     *Bound
	Checks   []*Bound
}

// Walk visits every config reachable from c: itself, its checks, its
// children and then its successor chain.
func Walk(c *Config, fn func(*Config)) {
	for ; c != nil; c = c.Next {
		fn(c)
		for _, chk := range c.Checks {
			Walk(chk, fn)
		}
		for _, child := range c.Children {
			Walk(child, fn)
		}
	}
}

// WalkBound is Walk for a bound tree.
func WalkBound(b *Bound, fn func(*Bound)) {
	for ; b != nil; b = b.Next {
		fn(b)
		for _, chk := range b.Checks {
			WalkBound(chk, fn)
		}
		for _, child := range b.Children {
			WalkBound(child, fn)
		}
	}
}
