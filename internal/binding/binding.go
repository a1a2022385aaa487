// Package binding attaches capability sets to compiled agents.
//
// The policy is fixed: EXECUTION agents receive the whole capability set,
// every other role receives none. Verify re-checks a bound tree so that a
// defect anywhere upstream cannot hand tools to a supervisor.
package binding

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// ErrConfigurationInvariant reports a non-EXECUTION agent holding tools.
var ErrConfigurationInvariant = errors.New("configuration invariant violated")

// Bind returns the bound counterpart of the tree rooted at cfg.
func Bind(cfg *agent.Config, capabilities tools.Set) (*agent.Bound, error) {
	bound := bind(cfg, capabilities)
	if err := Verify(bound, capabilities); err != nil {
		return nil, err
	}
	return bound, nil
}

func bind(cfg *agent.Config, capabilities tools.Set) *agent.Bound {
	if cfg == nil {
		return nil
	}
	b := &agent.Bound{Config: cfg, Tools: toolsFor(cfg.Role, capabilities)}
	for _, chk := range cfg.Checks {
		b.Checks = append(b.Checks, bind(chk, capabilities))
	}
	if len(cfg.Children) > 0 {
		b.Children = make([]*agent.Bound, len(cfg.Children))
		for i, child := range cfg.Children {
			b.Children[i] = bind(child, capabilities)
		}
	}
	b.Next = bind(cfg.Next, capabilities)
	return b
}

func toolsFor(role agent.Role, capabilities tools.Set) tools.Set {
	switch role {
	case agent.RoleExecution:
		return capabilities
	default:
		return tools.Set{}
	}
}

// Verify checks every agent in the bound tree: EXECUTION agents must hold
// exactly the capability set, all other roles must hold nothing.
func Verify(root *agent.Bound, capabilities tools.Set) error {
	var err error
	agent.WalkBound(root, func(b *agent.Bound) {
		if err != nil {
			return
		}
		switch b.Role {
		case agent.RoleExecution:
			if !b.Tools.Equal(capabilities) {
				err = fmt.Errorf("%w: %s holds %s, want the full capability set %s", ErrConfigurationInvariant, b.Name, b.Tools, capabilities)
			}
		case agent.RoleSupervisor, agent.RoleDecisionSupervisor:
			if !b.Tools.Empty() {
				err = fmt.Errorf("%w: %s (%s) holds tools %s", ErrConfigurationInvariant, b.Name, b.Role, b.Tools)
			}
		default:
			err = fmt.Errorf("%w: %s has unknown role %q", ErrConfigurationInvariant, b.Name, b.Role)
		}
	})
	return err
}
