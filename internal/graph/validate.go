package graph

import (
	"fmt"
)

// Validate checks the structural invariants of the inner graph: edge arity
// per step kind, a single finish step, acyclicity and reachability of every
// step from the entry.
func (s *Subgraph) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%w: empty subgraph", ErrMalformedGraph)
	}
	finishes := 0
	for _, step := range s.Steps {
		if err := s.checkArity(step); err != nil {
			return err
		}
		if step.Kind == StepFinish {
			finishes++
		}
	}
	if finishes != 1 {
		return fmt.Errorf("%w: %d finish steps, want 1", ErrMalformedGraph, finishes)
	}
	if s.Step(s.Exit).Kind != StepFinish {
		return fmt.Errorf("%w: exit %d is not the finish step", ErrMalformedGraph, s.Exit)
	}
	if err := s.detectCycles(); err != nil {
		return err
	}
	return s.checkReachable()
}

func (s *Subgraph) checkArity(step Step) error {
	edges := s.Outgoing(step.ID)
	count := func(kind EdgeKind) int {
		n := 0
		for _, e := range edges {
			if e.Kind == kind {
				n++
			}
		}
		return n
	}
	switch step.Kind {
	case StepExecute:
		if len(edges) != 1 || count(EdgeAlways) != 1 {
			return fmt.Errorf("%w: execute step %s needs exactly one unconditional edge, has %d edges", ErrMalformedGraph, step.Name(), len(edges))
		}
	case StepDecide:
		if len(edges) != 2 || count(EdgeOnTrue) != 1 || count(EdgeOnFalse) != 1 {
			return fmt.Errorf("%w: decide step %s needs one TRUE and one FALSE edge", ErrMalformedGraph, step.Name())
		}
	case StepFinish:
		if len(edges) != 0 {
			return fmt.Errorf("%w: finish step has %d outgoing edges", ErrMalformedGraph, len(edges))
		}
	default:
		return fmt.Errorf("%w: step %d has unknown kind %s", ErrMalformedGraph, step.ID, step.Kind)
	}
	for _, e := range edges {
		if int(e.To) < 0 || int(e.To) >= len(s.Steps) {
			return fmt.Errorf("%w: edge %d -> %d points outside the arena", ErrMalformedGraph, e.From, e.To)
		}
	}
	return nil
}

// detectCycles runs a three-colour depth-first search from every step.
func (s *Subgraph) detectCycles() error {
	permanent := make(map[StepID]bool, len(s.Steps))
	temporary := make(map[StepID]bool)

	var visit func(id StepID) error
	visit = func(id StepID) error {
		if permanent[id] {
			return nil
		}
		if temporary[id] {
			return fmt.Errorf("%w: cycle detected involving step '%s'", ErrMalformedGraph, s.Step(id).Name())
		}
		temporary[id] = true
		for _, e := range s.Outgoing(id) {
			if err := visit(e.To); err != nil {
				return err
			}
		}
		delete(temporary, id)
		permanent[id] = true
		return nil
	}

	for _, step := range s.Steps {
		if err := visit(step.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Subgraph) checkReachable() error {
	seen := make(map[StepID]bool, len(s.Steps))
	stack := []StepID{s.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, e := range s.Outgoing(id) {
			stack = append(stack, e.To)
		}
	}
	for _, step := range s.Steps {
		if !seen[step.ID] {
			return fmt.Errorf("%w: step %s is unreachable from the entry", ErrMalformedGraph, step.Name())
		}
	}
	return nil
}
