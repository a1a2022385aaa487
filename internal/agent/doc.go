// Package agent holds the compiled, role-tagged configuration tree produced
// from a runbook, and its tool-bound counterpart.
package agent
