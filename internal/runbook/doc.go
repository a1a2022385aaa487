// Package runbook defines the format-agnostic operation tree that every
// runbook loader produces and the compiler consumes.
//
// The tree is a tagged variant: each Operation carries a Kind and only the
// fields that kind uses. Loaders never interpret the tree beyond building it,
// so an unrecognised kind survives loading and is rejected by the compiler.
package runbook
