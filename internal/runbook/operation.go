package runbook

import (
	"fmt"
	"time"
)

// Kind tags an Operation.
type Kind string

const (
	KindMultiNode Kind = "multi_node"
	KindIfElse    Kind = "if_else"
	KindDecision  Kind = "decision"
	KindRpa       Kind = "rpa"
	KindExecStmt  Kind = "exec"
)

// Known reports whether k is one of the recognised operation kinds.
func (k Kind) Known() bool {
	switch k {
	case KindMultiNode, KindIfElse, KindDecision, KindRpa, KindExecStmt:
		return true
	}
	return false
}

// Operation is one node of a parsed runbook.
type Operation struct {
	Kind        Kind
	Name        string
	Description string

	// MultiNode
	Targets []string

	// Decision
	Condition  string
	Expression string

	// ExecStmt, and Rpa when it carries a command inline
	Command string
	Tool    string
	Timeout time.Duration

	// Children holds the body of a MultiNode, the single Decision of an
	// IfElse, the evidence checks of a Decision and the statements of an Rpa.
	Children []*Operation

	// IfElse branches, in source order.
	Then []*Operation
	Else []*Operation
}

// Label returns a short human readable identifier for the operation.
func (o *Operation) Label() string {
	if o.Name != "" {
		return fmt.Sprintf("%s %q", o.Kind, o.Name)
	}
	return string(o.Kind)
}

// Walk visits op and all of its descendants depth first, in source order.
// Returning false from fn stops the descent into that operation's children.
func Walk(op *Operation, fn func(op *Operation, depth int) bool) {
	var visit func(op *Operation, depth int)
	visit = func(op *Operation, depth int) {
		if op == nil || !fn(op, depth) {
			return
		}
		for _, group := range [][]*Operation{op.Children, op.Then, op.Else} {
			for _, child := range group {
				visit(child, depth+1)
			}
		}
	}
	visit(op, 0)
}

// Runbook is a loaded runbook file.
type Runbook struct {
	Name        string
	Description string
	Version     string
	Source      string
	Root        *Operation
}
