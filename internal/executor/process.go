package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/graph"
	"github.com/specialistvlad/runbookgo/internal/oracle"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/tools"
)

// walk runs the per-node workflow from its entry to the finish step, or up
// to the first failing step. The returned error is non-nil only when the run
// itself must stop (context cancellation).
func (r *run) walk(ctx context.Context, ws *WorkflowState) (report.NodeResult, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Processing node.")

	inner := r.g.Inner
	id := inner.Entry
	var failure *StepError

walk:
	for {
		step := inner.Step(id)
		ws.CurrentNode = step.Name()

		var (
			next    graph.StepID
			stepErr *StepError
			err     error
		)
		switch step.Kind {
		case graph.StepFinish:
			ws.WorkflowComplete = true
			break walk
		case graph.StepExecute:
			next, stepErr, err = r.execute(ctx, ws, step)
		case graph.StepDecide:
			next, stepErr, err = r.decide(ctx, ws, step)
		default:
			err = fmt.Errorf("unknown step kind %s", step.Kind)
		}
		if err != nil {
			return report.NodeResult{}, err
		}
		if stepErr != nil {
			failure = stepErr
			break walk
		}
		id = next
	}

	result := report.NodeResult{
		TargetNode:     ws.CurrentTargetNode,
		DecisionResult: ws.DecisionResult,
		DecisionToken:  ws.DecisionToken,
		Steps:          ws.steps,
	}
	if failure != nil {
		result.Status = report.StatusFailure
		result.Detail = failure.Error()
		result.Error = string(failure.Cause)
		r.record(ws, failure.Agent, "node failed: "+failure.Error())
		logger.Warn("❌ Node failed.", "agent", failure.Agent, "cause", failure.Cause, "error", failure.Err)
		return result, nil
	}

	result.Status = report.StatusSuccess
	result.Detail = successDetail(ws)
	r.record(ws, "", "node completed: "+result.Detail)
	logger.Info("✅ Node completed.", "executions", result.Executions(), "decision", ws.DecisionResult)
	return result, nil
}

func successDetail(ws *WorkflowState) string {
	var executions int
	for _, s := range ws.steps {
		if !s.Check {
			executions++
		}
	}
	detail := fmt.Sprintf("completed with %d execution step(s)", executions)
	if ws.DecisionResult != report.DecisionUnset {
		detail += fmt.Sprintf(", last decision %s", ws.DecisionResult)
	}
	return detail
}

func (r *run) execute(ctx context.Context, ws *WorkflowState, step graph.Step) (graph.StepID, *StepError, error) {
	a := step.Agent
	md := a.Metadata
	timeout := md.Timeout
	if timeout <= 0 {
		timeout = r.e.defaultTimeout
	}
	logger := ctxlog.FromContext(ctx).With("agent", a.Name)
	logger.Debug("Invoking tool.", "command", md.Command, "timeout", timeout, "check", step.Check)
	r.record(ws, a.Name, fmt.Sprintf("invoking %q", md.Command))

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := r.e.now()
	res, err := r.e.invoker.Invoke(stepCtx, tools.Invocation{
		Agent:   a.Name,
		Command: md.Command,
		Target:  ws.CurrentTargetNode,
		Tool:    md.Tool,
		Timeout: timeout,
		Tools:   a.Tools.Names(),
	})
	elapsed := r.e.now().Sub(started)

	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		if !errors.Is(err, context.DeadlineExceeded) && !errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			ws.steps = append(ws.steps, report.StepRecord{Agent: a.Name, Command: md.Command, Status: "TRANSPORT_ERROR", Output: err.Error(), Check: step.Check})
			r.e.observer.StepFinished(a.Name, tools.StatusError, elapsed)
			r.record(ws, a.Name, "transport failure: "+err.Error())
			return 0, &StepError{Agent: a.Name, Target: ws.CurrentTargetNode, Cause: CauseTransport, Err: err}, nil
		}
		res = tools.Result{Status: tools.StatusTimeout, Output: err.Error()}
	} else if errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
		res.Status = tools.StatusTimeout
	}

	ws.Results[a.Name] = res.Output
	ws.steps = append(ws.steps, report.StepRecord{Agent: a.Name, Command: md.Command, Status: string(res.Status), Output: res.Output, Check: step.Check})
	r.e.observer.StepFinished(a.Name, res.Status, elapsed)

	switch res.Status {
	case tools.StatusOK:
		r.record(ws, a.Name, "completed")
	case tools.StatusError:
		if !step.Check {
			r.record(ws, a.Name, "tool reported an error")
			return 0, &StepError{Agent: a.Name, Target: ws.CurrentTargetNode, Cause: CauseTool, Err: fmt.Errorf("%w: %s", ErrToolFailed, firstLine(res.Output))}, nil
		}
		// A failing check is evidence for the decision, not a failure.
		r.record(ws, a.Name, "check reported an error, kept as evidence")
	case tools.StatusTimeout:
		r.record(ws, a.Name, fmt.Sprintf("timed out after %s", timeout))
		return 0, &StepError{Agent: a.Name, Target: ws.CurrentTargetNode, Cause: CauseTimeout, Err: fmt.Errorf("%w after %s", ErrStepTimeout, timeout)}, nil
	default:
		r.record(ws, a.Name, fmt.Sprintf("unrecognised tool status %q", res.Status))
		return 0, &StepError{Agent: a.Name, Target: ws.CurrentTargetNode, Cause: CauseTransport, Err: fmt.Errorf("unrecognised tool status %q", res.Status)}, nil
	}

	next, _ := r.g.Inner.Successor(step.ID, graph.EdgeAlways)
	return next, nil, nil
}

func (r *run) decide(ctx context.Context, ws *WorkflowState, step graph.Step) (graph.StepID, *StepError, error) {
	a := step.Agent
	logger := ctxlog.FromContext(ctx).With("agent", a.Name)

	evidence := make(map[string]string, len(step.Evidence))
	for _, name := range step.Evidence {
		if out, ok := ws.Results[name]; ok {
			evidence[name] = out
		}
	}

	r.record(ws, a.Name, fmt.Sprintf("evaluating %q", a.Metadata.Condition))
	token, err := r.e.oracle.Decide(ctx, oracle.Query{
		Agent:      a.Name,
		Prompt:     a.Prompt,
		Condition:  a.Metadata.Condition,
		Expression: a.Metadata.Expression,
		Target:     ws.CurrentTargetNode,
		Evidence:   evidence,
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, ctx.Err()
		}
		r.record(ws, a.Name, "oracle failure: "+err.Error())
		return 0, &StepError{Agent: a.Name, Target: ws.CurrentTargetNode, Cause: CauseOracle, Err: err}, nil
	}

	ws.DecisionToken = token
	r.e.observer.DecisionMade(a.Name, token)

	value, err := oracle.ParseToken(token)
	if err != nil {
		ws.DecisionResult = report.DecisionUnset
		r.record(ws, a.Name, fmt.Sprintf("ambiguous decision %q", token))
		return 0, &StepError{Agent: a.Name, Target: ws.CurrentTargetNode, Cause: CauseAmbiguous, Err: err}, nil
	}
	ws.DecisionResult = report.DecisionOf(value)

	kind := graph.EdgeOnFalse
	if value {
		kind = graph.EdgeOnTrue
	}
	next, _ := r.g.Inner.Successor(step.ID, kind)
	r.record(ws, a.Name, fmt.Sprintf("decision %s, continuing at %s", ws.DecisionResult, r.g.Inner.Step(next).Name()))
	logger.Debug("Decision made.", "token", token, "next", r.g.Inner.Step(next).Name())
	return next, nil, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const max = 200
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
