package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/specialistvlad/runbookgo/internal/app"
	"github.com/specialistvlad/runbookgo/internal/executor"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/stretchr/testify/require"
)

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	// Report is the rendered report.
	Report  string
	Outcome *executor.Outcome
	Err     error
	App     *app.App
	Dir     string
}

// RunIntegrationTest runs the app with a default background context.
func RunIntegrationTest(t *testing.T, files map[string]string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()
	return RunIntegrationTestWithContext(context.Background(), t, files, cfg, modules...)
}

// RunIntegrationTestWithContext writes files into a temporary directory,
// resolves cfg.RunbookPath against it and runs the app. Unset module
// selections default to FakeName and the core modules are not registered,
// so only the given modules are available.
func RunIntegrationTestWithContext(ctx context.Context, t *testing.T, files map[string]string, cfg app.Config, modules ...registry.Module) *HarnessResult {
	t.Helper()

	dir := WriteFiles(t, files)
	cfg.RunbookPath = filepath.Join(dir, cfg.RunbookPath)
	if cfg.ReportPath == "" {
		cfg.ReportPath = filepath.Join(dir, "report.out")
	}
	for _, sel := range []*string{&cfg.Invoker, &cfg.Capabilities, &cfg.Oracle} {
		if *sel == "" {
			*sel = FakeName
		}
	}
	if cfg.ExprOracle == "" {
		cfg.ExprOracle = FakeName
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}

	logBuffer := &SafeBuffer{}
	result := &HarnessResult{Dir: dir}

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		result.Err = err
		return result
	}
	testApp, err := app.NewApp(logBuffer, appConfig, app.NewLoader(), modules...)
	if err != nil {
		result.Err = err
		result.LogOutput = logBuffer.String()
		return result
	}
	result.App = testApp

	result.Outcome, result.Err = testApp.Run(ctx)
	result.LogOutput = logBuffer.String()
	if report, err := os.ReadFile(cfg.ReportPath); err == nil {
		result.Report = string(report)
	}

	t.Cleanup(func() {
		if os.Getenv("RUNBOOKGO_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), result.LogOutput)
		}
	})
	return result
}

// WriteFiles writes files, keyed by relative path, into a new temporary
// directory and returns it.
func WriteFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}
