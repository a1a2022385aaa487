package executor

import (
	"time"

	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// Observer receives execution events. Implementations must be fast; they
// are called inline on the run's only thread of control.
type Observer interface {
	StepFinished(agent string, status tools.Status, elapsed time.Duration)
	DecisionMade(agent, token string)
	NodeFinished(target string, status report.Status, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StepFinished(string, tools.Status, time.Duration)  {}
func (nopObserver) DecisionMade(string, string)                       {}
func (nopObserver) NodeFinished(string, report.Status, time.Duration) {}
