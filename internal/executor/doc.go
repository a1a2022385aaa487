// Package executor runs a compiled graph against a list of target nodes.
//
// The outer loop follows the iteration wrapper's control table:
//
//	INIT -> PROCESS -> ADVANCE -> (PROCESS ... | AGGREGATE) -> END
//
// PROCESS walks the acyclic per-node workflow with a fresh WorkflowState.
// Runtime step failures (timeouts, tool errors, ambiguous decisions) never
// escape PROCESS; they become a FAILURE result for that node and the loop
// moves on, unless fail-fast is enabled.
package executor
