// Package graph turns a bound agent tree into an executable graph.
//
// The graph has two layers. The outer layer is the iteration wrapper built
// from the root SUPERVISOR: a fixed control table over INIT, PROCESS, ADVANCE,
// AGGREGATE and END, which is the only place a loop exists. The inner layer
// is the per-node workflow, stored as an arena of steps indexed by StepID plus
// an edge table. The inner layer is always acyclic and has a single Finish
// step that every path ends at.
package graph
