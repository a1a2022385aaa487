package executor

import (
	"time"

	"github.com/specialistvlad/runbookgo/internal/graph"
	"github.com/specialistvlad/runbookgo/internal/report"
)

// Message is one entry of the audit trail.
type Message struct {
	Seq    int       `json:"seq"`
	Time   time.Time `json:"time"`
	State  string    `json:"state"`
	Agent  string    `json:"agent,omitempty"`
	Target string    `json:"target,omitempty"`
	Text   string    `json:"text"`
}

// WorkflowState is the state of one PROCESS step. It is owned by that step
// and discarded once its NodeResult has been committed.
type WorkflowState struct {
	Messages          []Message
	CurrentNode       string
	CurrentTargetNode string
	Results           map[string]string
	DecisionResult    report.Decision
	// DecisionToken is the last raw token returned by the oracle.
	DecisionToken    string
	WorkflowComplete bool

	steps []report.StepRecord
}

func newWorkflowState(target string) *WorkflowState {
	return &WorkflowState{CurrentTargetNode: target, Results: make(map[string]string)}
}

// MultiNodeState is the state of one run.
type MultiNodeState struct {
	TargetNodes       []string
	CurrentNodeIndex  int
	CurrentTargetNode string
	NodeResults       map[string]report.NodeResult
	AllNodesComplete  bool
	Messages          []Message
	SubgraphState     *WorkflowState
	Control           graph.ControlState

	// halted is set when fail-fast stops the loop early.
	halted bool
}

// Outcome is what a run returns.
type Outcome struct {
	RunID   string
	Summary report.Summary
	State   *MultiNodeState
}

// Messages returns the complete audit trail of the run.
func (o *Outcome) Messages() []Message {
	return o.State.Messages
}
