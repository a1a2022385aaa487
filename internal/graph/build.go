package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/runbookgo/internal/agent"
	"github.com/specialistvlad/runbookgo/internal/compiler"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
)

var (
	ErrMissingSupervisor = errors.New("graph root must be a SUPERVISOR")
	ErrNestedSupervisor  = compiler.ErrNestedSupervisor
	ErrMalformedGraph    = errors.New("malformed graph")
)

// Build realises the bound tree rooted at a SUPERVISOR as a Graph.
func Build(ctx context.Context, root *agent.Bound) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")

	if root == nil || root.Role != agent.RoleSupervisor {
		return nil, ErrMissingSupervisor
	}
	if root.Next != nil {
		return nil, fmt.Errorf("%w: %s must be the only top-level operation, found %s after it", ErrMalformedGraph, root.Name, root.Next.Name)
	}
	if len(root.Children) != 1 || root.Children[0] == nil {
		return nil, fmt.Errorf("%w: %s must have exactly one body", ErrMalformedGraph, root.Name)
	}

	inner, err := buildSubgraph(root.Children[0])
	if err != nil {
		return nil, err
	}
	if err := inner.Validate(); err != nil {
		return nil, err
	}

	g := &Graph{
		Iteration: Iteration{
			Supervisor:  root,
			Targets:     append([]string(nil), root.Metadata.Targets...),
			Transitions: append([]Transition(nil), controlTable...),
		},
		Inner: inner,
	}
	logger.Debug("Build: Graph constructed.", "supervisor", root.Name, "steps", len(inner.Steps), "edges", len(inner.Edges))
	return g, nil
}

// builder accumulates steps in construction order. Construction runs from
// the end of each sequence backwards so that every step's successor exists
// before the step itself; renumber restores reading order afterwards.
type builder struct {
	steps []Step
	edges []Edge
}

func (b *builder) add(step Step) StepID {
	step.ID = StepID(len(b.steps))
	b.steps = append(b.steps, step)
	return step.ID
}

func (b *builder) connect(from, to StepID, kind EdgeKind) {
	b.edges = append(b.edges, Edge{From: from, To: to, Kind: kind})
}

func buildSubgraph(head *agent.Bound) (*Subgraph, error) {
	b := &builder{}
	finish := b.add(Step{Kind: StepFinish})
	entry, err := b.chain(head, finish)
	if err != nil {
		return nil, err
	}
	return b.renumber(entry, finish), nil
}

// chain builds node and its successors, returning the entry of the built
// sequence. succ is where the sequence continues once it is exhausted.
func (b *builder) chain(node *agent.Bound, succ StepID) (StepID, error) {
	if node == nil {
		return succ, nil
	}
	after, err := b.chain(node.Next, succ)
	if err != nil {
		return 0, err
	}

	switch node.Role {
	case agent.RoleExecution:
		id := b.add(Step{Kind: StepExecute, Agent: node})
		b.connect(id, after, EdgeAlways)
		return id, nil

	case agent.RoleDecisionSupervisor:
		if len(node.Children) != 2 {
			return 0, fmt.Errorf("%w: %s has %d branches, want 2", ErrMalformedGraph, node.Name, len(node.Children))
		}
		onTrue, err := b.chain(node.Children[0], after)
		if err != nil {
			return 0, err
		}
		onFalse, err := b.chain(node.Children[1], after)
		if err != nil {
			return 0, err
		}
		evidence := make([]string, 0, len(node.Checks))
		for _, chk := range node.Checks {
			evidence = append(evidence, chk.Name)
		}
		decide := b.add(Step{Kind: StepDecide, Agent: node, Evidence: evidence})
		b.connect(decide, onTrue, EdgeOnTrue)
		b.connect(decide, onFalse, EdgeOnFalse)

		entry := decide
		for i := len(node.Checks) - 1; i >= 0; i-- {
			chk := node.Checks[i]
			if chk == nil || chk.Role != agent.RoleExecution {
				return 0, fmt.Errorf("%w: check %d of %s is not an execution agent", ErrMalformedGraph, i, node.Name)
			}
			id := b.add(Step{Kind: StepExecute, Agent: chk, Check: true})
			b.connect(id, entry, EdgeAlways)
			entry = id
		}
		return entry, nil

	case agent.RoleSupervisor:
		return 0, fmt.Errorf("%w: %s", ErrNestedSupervisor, node.Name)

	default:
		return 0, fmt.Errorf("%w: %s has unknown role %q", ErrMalformedGraph, node.Name, node.Role)
	}
}

// renumber assigns ids in depth-first order from entry, TRUE before FALSE,
// with the finish step last.
func (b *builder) renumber(entry, finish StepID) *Subgraph {
	out := make(map[StepID][]Edge, len(b.steps))
	for _, e := range b.edges {
		out[e.From] = append(out[e.From], e)
	}

	ids := make(map[StepID]StepID, len(b.steps))
	var order []StepID
	var visit func(id StepID)
	visit = func(id StepID) {
		if _, seen := ids[id]; seen || id == finish {
			return
		}
		ids[id] = StepID(len(order))
		order = append(order, id)
		for _, e := range out[id] {
			visit(e.To)
		}
	}
	visit(entry)
	ids[finish] = StepID(len(order))
	order = append(order, finish)

	steps := make([]Step, len(order))
	for newID, oldID := range order {
		step := b.steps[oldID]
		step.ID = StepID(newID)
		steps[newID] = step
	}
	edges := make([]Edge, 0, len(b.edges))
	for _, oldID := range order {
		for _, e := range out[oldID] {
			edges = append(edges, Edge{From: ids[e.From], To: ids[e.To], Kind: e.Kind})
		}
	}
	return newSubgraph(steps, edges, ids[entry], ids[finish])
}
