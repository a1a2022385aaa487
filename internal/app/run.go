package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/goccy/go-json"
	"github.com/specialistvlad/runbookgo/internal/ctxlog"
	"github.com/specialistvlad/runbookgo/internal/executor"
	"github.com/specialistvlad/runbookgo/internal/fsutil"
	"github.com/specialistvlad/runbookgo/internal/report"
	"github.com/specialistvlad/runbookgo/internal/runbook"
	"github.com/specialistvlad/runbookgo/internal/runner"
)

// Run loads the configured runbook, executes it against the configured
// targets and writes the report. A run in which nodes failed is not an
// error; callers inspect Outcome.Summary.
func (a *App) Run(ctx context.Context) (*executor.Outcome, error) {
	ctx = a.context(ctx)
	a.logger.Debug("App.Run method started.")

	rb, err := a.loader.Load(ctx, a.config.RunbookPath, a.config.Vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load runbook: %w", err)
	}

	collab, err := a.collaborators(ctx)
	defer func() {
		if cerr := collab.Close(); cerr != nil {
			a.logger.Warn("Closing modules failed.", "error", cerr)
		}
	}()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise modules: %w", err)
	}

	if a.config.HealthcheckPort > 0 {
		var metrics http.Handler
		if src, ok := collab.deps.Observer.(metricsSource); ok {
			metrics = src.Handler()
		}
		a.startHealthcheckServer(a.config.HealthcheckPort, metrics)
		defer a.closeHealthcheckServer(ctx)
	}

	ctx = ctxlog.With(ctx, "runbook", rb.Name)
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Starting run.", "source", rb.Source, "targets", a.config.Targets)

	out, err := runner.Run(ctx, rb, a.config.Targets, collab.deps)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	s := out.Summary
	logger.Info("🏁 Run finished.", "run_id", out.RunID, "total", s.Total,
		"success", s.SuccessCount, "failure", s.FailureCount, "skipped", s.SkippedCount)

	if err := a.writeReport(ctx, out, collab.sink); err != nil {
		return out, err
	}
	a.logger.Debug("App.Run method finished.")
	return out, nil
}

// writeReport renders the summary, writes the audit log and publishes the
// report to the sink.
func (a *App) writeReport(ctx context.Context, out *executor.Outcome, sink report.Sink) error {
	var errs []error

	w, closeW, err := a.reportWriter()
	if err != nil {
		return err
	}
	if a.config.ReportFormat == "json" {
		errs = append(errs, report.WriteJSON(w, out.Summary))
	} else {
		errs = append(errs, report.WriteText(w, out.Summary))
	}
	errs = append(errs, closeW())

	if a.config.AuditPath != "" {
		errs = append(errs, writeAudit(a.config.AuditPath, out.Messages()))
	}

	if sink != nil {
		body, err := report.Marshal(out.Summary)
		if err == nil {
			err = sink.Publish(ctx, out.Summary, body)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to publish report: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) reportWriter() (io.Writer, func() error, error) {
	if a.config.ReportPath == "" {
		return a.outW, func() error { return nil }, nil
	}
	f, err := os.Create(a.config.ReportPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return f, f.Close, nil
}

// writeAudit writes the audit trail as JSON lines.
func writeAudit(path string, msgs []executor.Message) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	enc := json.NewEncoder(f)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			f.Close()
			return fmt.Errorf("failed to write audit log: %w", err)
		}
	}
	return f.Close()
}

// Validate loads every runbook under the configured path (a file or a
// directory), then compiles, binds and builds each one without executing.
// All failures are reported together.
func (a *App) Validate(ctx context.Context) ([]string, error) {
	ctx = a.context(ctx)

	exts := []string{".hcl", ".yaml", ".yml"}
	if el, ok := a.loader.(runbook.ExtensionLoader); ok {
		exts = el.Extensions()
	}
	files, err := fsutil.FindFilesByExtension(a.config.RunbookPath, exts...)
	if err != nil {
		return nil, fmt.Errorf("failed to find runbooks: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no runbooks found in %s", a.config.RunbookPath)
	}

	collab, err := a.capabilities(ctx)
	defer collab.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise modules: %w", err)
	}

	var errs []error
	for _, file := range files {
		if err := a.validateFile(ctx, file, collab); err != nil {
			a.logger.Error("❌ Runbook invalid.", "file", file, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		a.logger.Info("✅ Runbook valid.", "file", file)
	}
	return files, errors.Join(errs...)
}

func (a *App) validateFile(ctx context.Context, file string, collab *collaborators) error {
	rb, err := a.loader.Load(ctx, file, a.config.Vars)
	if err != nil {
		return err
	}
	_, err = runner.Prepare(ctx, rb, collab.deps.Capabilities, a.config.DefaultTimeout)
	return err
}

// Graph compiles the configured runbook and writes its execution graph to w.
func (a *App) Graph(ctx context.Context, w io.Writer) error {
	ctx = a.context(ctx)

	rb, err := a.loader.Load(ctx, a.config.RunbookPath, a.config.Vars)
	if err != nil {
		return fmt.Errorf("failed to load runbook: %w", err)
	}
	collab, err := a.capabilities(ctx)
	defer collab.Close()
	if err != nil {
		return fmt.Errorf("failed to initialise modules: %w", err)
	}
	p, err := runner.Prepare(ctx, rb, collab.deps.Capabilities, a.config.DefaultTimeout)
	if err != nil {
		return err
	}
	return p.Graph.Describe(w)
}
