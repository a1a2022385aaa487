package executor

import (
	"errors"
	"fmt"
)

var (
	ErrNoTargetNodes       = errors.New("no target nodes")
	ErrDuplicateTargetNode = errors.New("duplicate target node")
	ErrDuplicateResult     = errors.New("node result already recorded")
	ErrIllegalTransition   = errors.New("illegal control transition")
	ErrStepTimeout         = errors.New("timeout")
	ErrToolFailed          = errors.New("tool reported an error")
)

// Cause classifies a runtime step failure.
type Cause string

const (
	CauseTimeout   Cause = "timeout"
	CauseTool      Cause = "tool_error"
	CauseAmbiguous Cause = "ambiguous_decision"
	CauseTransport Cause = "transport"
	CauseOracle    Cause = "oracle"
)

// StepError is a runtime failure of one step while processing one node.
type StepError struct {
	Agent  string
	Target string
	Cause  Cause
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s on %s: %v", e.Agent, e.Target, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
