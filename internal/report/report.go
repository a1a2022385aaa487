// Package report holds per-node outcomes and the run summary built from them.
package report

import (
	"errors"
	"fmt"
)

// Status is the terminal state of one target node.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
	StatusSkipped Status = "SKIPPED"
)

// Decision is the tri-state result of the last decision taken for a node.
type Decision int

const (
	DecisionUnset Decision = iota
	DecisionTrue
	DecisionFalse
)

// DecisionOf converts a routed boolean into a Decision.
func DecisionOf(v bool) Decision {
	if v {
		return DecisionTrue
	}
	return DecisionFalse
}

func (d Decision) String() string {
	switch d {
	case DecisionTrue:
		return "TRUE"
	case DecisionFalse:
		return "FALSE"
	}
	return "UNSET"
}

// MarshalJSON encodes the decision as true, false or null.
func (d Decision) MarshalJSON() ([]byte, error) {
	switch d {
	case DecisionTrue:
		return []byte("true"), nil
	case DecisionFalse:
		return []byte("false"), nil
	}
	return []byte("null"), nil
}

// StepRecord is one execution that ran while processing a node.
type StepRecord struct {
	Agent   string `json:"agent"`
	Command string `json:"command"`
	Status  string `json:"status"`
	Output  string `json:"output,omitempty"`
	Check   bool   `json:"check,omitempty"`
}

// NodeResult is the outcome of processing one target node.
type NodeResult struct {
	TargetNode     string       `json:"target_node"`
	DecisionResult Decision     `json:"decision_result"`
	// DecisionToken is the oracle's last reply, verbatim.
	DecisionToken  string       `json:"decision_token,omitempty"`
	Status         Status       `json:"status"`
	Detail         string       `json:"detail"`
	Error          string       `json:"error,omitempty"`
	Steps          []StepRecord `json:"steps,omitempty"`
}

// Executions counts the non-check executions recorded for the node.
func (r NodeResult) Executions() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Check {
			n++
		}
	}
	return n
}

// Summary is the report of one run.
type Summary struct {
	RunID        string       `json:"run_id,omitempty"`
	Runbook      string       `json:"runbook,omitempty"`
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	FailureCount int          `json:"failure_count"`
	SkippedCount int          `json:"skipped_count"`
	PerNode      []NodeResult `json:"per_node"`
}

// Failed reports whether any node failed.
func (s Summary) Failed() bool { return s.FailureCount > 0 }

var (
	ErrNoResults     = errors.New("no node results to aggregate")
	ErrMissingResult = errors.New("target node has no result")
	ErrExtraResult   = errors.New("result for a node outside the target list")
)

// Aggregate summarises results in the order given by targets.
func Aggregate(targets []string, results map[string]NodeResult) (Summary, error) {
	if len(targets) == 0 || len(results) == 0 {
		return Summary{}, ErrNoResults
	}
	if len(results) != len(targets) {
		for node := range results {
			if !contains(targets, node) {
				return Summary{}, fmt.Errorf("%w: %q", ErrExtraResult, node)
			}
		}
	}

	s := Summary{Total: len(targets), PerNode: make([]NodeResult, 0, len(targets))}
	for _, target := range targets {
		r, ok := results[target]
		if !ok {
			return Summary{}, fmt.Errorf("%w: %q", ErrMissingResult, target)
		}
		switch r.Status {
		case StatusSuccess:
			s.SuccessCount++
		case StatusFailure:
			s.FailureCount++
		case StatusSkipped:
			s.SkippedCount++
		}
		s.PerNode = append(s.PerNode, r)
	}
	return s, nil
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
