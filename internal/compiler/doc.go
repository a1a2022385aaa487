// Package compiler classifies a runbook operation tree into a tree of
// role-tagged agent configurations.
//
// Classification:
//
//	multi-node      -> SUPERVISOR           (metadata: targets)
//	if-else(decide) -> DECISION_SUPERVISOR  (metadata: condition, expression)
//	rpa / exec      -> EXECUTION            (metadata: command, timeout, tool)
//
// Names are "<role prefix>_<ordinal>" with one counter per role, assigned in
// pre-order. Counters are reset on every Compile so the same tree always
// compiles to the same names.
package compiler
