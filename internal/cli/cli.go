package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/runbookgo/internal/app"
	"github.com/specialistvlad/runbookgo/internal/registry"
	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// Execute runs the command line. Errors are always *ExitError. modules
// replaces the core modules when given.
func Execute(ctx context.Context, args []string, outW io.Writer, modules ...registry.Module) error {
	root := NewRootCommand(outW, modules...)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	// Anything cobra rejects before a command runs is a usage problem.
	return usageError(err)
}

// NewRootCommand builds the runbookgo command tree.
func NewRootCommand(outW io.Writer, modules ...registry.Module) *cobra.Command {
	root := &cobra.Command{
		Use:   "runbookgo",
		Short: "Compile operational runbooks into agent graphs and run them across nodes",
		Long: `runbookgo compiles a runbook (HCL or YAML) into a hierarchy of agents,
binds the tools each agent may use and executes the resulting graph once per
target node, routing decisions through an oracle.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(outW)
	root.SetErr(outW)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError(err) })

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (default is ./runbookgo.yaml)")
	pf.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringArray("var", nil, "Set a runbook variable (name=value). Repeatable.")
	pf.String("capabilities", "", "Capability provider module (default mcp).")

	root.AddCommand(
		newRunCommand(outW, modules),
		newValidateCommand(outW, modules),
		newGraphCommand(outW, modules),
		newVersionCommand(outW),
	)
	return root
}

func newApp(cmd *cobra.Command, args []string, outW io.Writer, modules []registry.Module) (*app.App, error) {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return nil, usageError(err)
	}
	slog.Debug("CLI configuration resolved.", "runbook", cfg.RunbookPath)
	a, err := app.NewApp(outW, cfg, app.NewLoader(), modules...)
	if err != nil {
		return nil, usageError(err)
	}
	return a, nil
}

func runbookArg(cmd *cobra.Command, args []string) error {
	if len(args) > 1 {
		return usageError(fmt.Errorf("%s accepts at most one runbook path, got %d", cmd.Name(), len(args)))
	}
	return nil
}

func newRunCommand(outW io.Writer, modules []registry.Module) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [RUNBOOK]",
		Short: "Execute a runbook against its target nodes",
		Args:  runbookArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, args, outW, modules)
			if err != nil {
				return err
			}
			out, err := a.Run(cmd.Context())
			if err != nil {
				return runtimeError(err)
			}
			if out.Summary.Failed() {
				return &ExitError{
					Code:    ExitTargetsFailed,
					Message: fmt.Sprintf("%d of %d target node(s) failed", out.Summary.FailureCount, out.Summary.Total),
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceP("target", "t", nil, "Target node to run against. Repeatable; defaults to the runbook's targets.")
	f.String("invoker", "", "Tool invocation module (default mcp).")
	f.String("oracle", "", "Decision oracle module (default llm).")
	f.String("expr-oracle", "", "Oracle for decisions with an expression (default cel).")
	f.String("observer", "", "Execution observer module, e.g. prometheus.")
	f.String("sink", "", "Report sink module, e.g. s3.")
	f.Bool("fail-fast", false, "Skip the remaining nodes after the first failure.")
	f.Duration("default-timeout", 0, "Timeout for steps that declare none (default 30s).")
	f.String("report-format", "text", "Report format. Options: 'text' or 'json'.")
	f.String("report", "", "Write the report to this file instead of stdout.")
	f.String("audit-log", "", "Write the audit trail as JSON lines to this file.")
	f.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	return cmd
}

func newValidateCommand(outW io.Writer, modules []registry.Module) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [PATH]",
		Short: "Compile and bind runbooks without executing them",
		Long:  "Validates a single runbook file or every runbook in a directory.",
		Args:  runbookArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, args, outW, modules)
			if err != nil {
				return err
			}
			files, err := a.Validate(cmd.Context())
			if err != nil {
				return runtimeError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d runbook(s) valid\n", len(files))
			return nil
		},
	}
}

func newGraphCommand(outW io.Writer, modules []registry.Module) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [RUNBOOK]",
		Short: "Print the compiled execution graph of a runbook",
		Args:  runbookArg,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, args, outW, modules)
			if err != nil {
				return err
			}
			if err := a.Graph(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return runtimeError(err)
			}
			return nil
		},
	}
}

func newVersionCommand(outW io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(outW, "runbookgo %s\n", Version)
		},
	}
}
