package graph

import (
	"fmt"

	"github.com/specialistvlad/runbookgo/internal/agent"
)

// StepID indexes a step in a Subgraph arena.
type StepID int

// StepKind is the closed set of inner step kinds.
type StepKind int

const (
	StepExecute StepKind = iota
	StepDecide
	StepFinish
)

func (k StepKind) String() string {
	switch k {
	case StepExecute:
		return "execute"
	case StepDecide:
		return "decide"
	case StepFinish:
		return "finish"
	}
	return fmt.Sprintf("StepKind(%d)", int(k))
}

// Step is one node of the inner graph.
type Step struct {
	ID    StepID
	Kind  StepKind
	Agent *agent.Bound
	// Check marks an execution that gathers evidence for a decision.
	Check bool
	// Evidence names the check agents whose outputs a Decide step consults.
	Evidence []string
}

// Name returns the agent name of the step, or "finish".
func (s Step) Name() string {
	if s.Agent == nil {
		return s.Kind.String()
	}
	return s.Agent.Name
}

// EdgeKind labels an edge.
type EdgeKind int

const (
	EdgeAlways EdgeKind = iota
	EdgeOnTrue
	EdgeOnFalse
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeAlways:
		return "always"
	case EdgeOnTrue:
		return "TRUE"
	case EdgeOnFalse:
		return "FALSE"
	}
	return fmt.Sprintf("EdgeKind(%d)", int(k))
}

// Edge is a directed edge of the inner graph.
type Edge struct {
	From StepID
	To   StepID
	Kind EdgeKind
}

// Subgraph is the per-node workflow.
type Subgraph struct {
	Steps []Step
	Edges []Edge
	Entry StepID
	Exit  StepID

	out map[StepID][]Edge
}

func newSubgraph(steps []Step, edges []Edge, entry, exit StepID) *Subgraph {
	s := &Subgraph{Steps: steps, Edges: edges, Entry: entry, Exit: exit, out: make(map[StepID][]Edge, len(steps))}
	for _, e := range edges {
		s.out[e.From] = append(s.out[e.From], e)
	}
	return s
}

// Step returns the step with the given id.
func (s *Subgraph) Step(id StepID) Step {
	return s.Steps[id]
}

// Outgoing returns the edges leaving id, in insertion order.
func (s *Subgraph) Outgoing(id StepID) []Edge {
	return s.out[id]
}

// Successor follows the edge of the given kind out of id.
func (s *Subgraph) Successor(id StepID, kind EdgeKind) (StepID, bool) {
	for _, e := range s.out[id] {
		if e.Kind == kind {
			return e.To, true
		}
	}
	return 0, false
}

// ControlState is a state of the outer iteration wrapper.
type ControlState string

const (
	StateInit      ControlState = "INIT"
	StateProcess   ControlState = "PROCESS"
	StateAdvance   ControlState = "ADVANCE"
	StateAggregate ControlState = "AGGREGATE"
	StateEnd       ControlState = "END"
)

// Transition is one allowed move of the iteration wrapper.
type Transition struct {
	From  ControlState
	To    ControlState
	Guard string
}

var controlTable = []Transition{
	{StateInit, StateProcess, "at least one target node"},
	{StateProcess, StateAdvance, "node result committed"},
	{StateAdvance, StateProcess, "index < len(targets)"},
	{StateAdvance, StateAggregate, "index == len(targets), or fail-fast after a failure"},
	{StateAggregate, StateEnd, "summary built"},
}

// Iteration is the wrapper realised from the root SUPERVISOR.
type Iteration struct {
	Supervisor  *agent.Bound
	Targets     []string
	Transitions []Transition
}

// Allows reports whether the control table contains from -> to.
func (it Iteration) Allows(from, to ControlState) bool {
	for _, tr := range it.Transitions {
		if tr.From == from && tr.To == to {
			return true
		}
	}
	return false
}

// Graph is a compiled runbook.
type Graph struct {
	Iteration Iteration
	Inner     *Subgraph
}
