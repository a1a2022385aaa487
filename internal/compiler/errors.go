package compiler

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/runbookgo/internal/runbook"
)

var (
	ErrUnknownOperationKind = errors.New("unknown operation kind")
	ErrEmptyTargetList      = errors.New("multi-node operation has an empty target list")
	ErrNestedSupervisor     = errors.New("nested multi-node operations are not supported")
	ErrMalformedOperation   = errors.New("malformed operation")
)

// OperationError locates a compile failure in the operation tree.
type OperationError struct {
	// Path is the slash separated chain of operation labels from the root.
	Path string
	Kind runbook.Kind
	Err  error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("compile %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
