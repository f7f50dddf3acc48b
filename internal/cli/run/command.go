// Package run implements the "flowctl run" subcommand: loads, plans, and
// executes a flow document end to end.
package run

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/agents"
	"github.com/flowctl/flowctl/internal/cliutil"
	"github.com/flowctl/flowctl/internal/flow/runner"
	"github.com/flowctl/flowctl/internal/flowconfig"
	"github.com/flowctl/flowctl/internal/mcprouter"
	"github.com/flowctl/flowctl/internal/mcprouter/providers"
	"github.com/flowctl/flowctl/internal/metrics"
)

// NewCommand builds the "run" subcommand.
func NewCommand() *cobra.Command {
	var (
		runID          string
		outputDir      string
		only           string
		continueFrom   string
		dryRun         bool
		devFast        bool
		progress       bool
		tracePerf      bool
	)

	cmd := &cobra.Command{
		Use:   "run FLOW",
		Short: "Load, plan, and execute a flow document",
		Long: `run loads a YAML/JSON flow document, computes its dependency plan, and
dispatches ready steps to the concurrent executor. Shell, MCP, and dynamic
agent steps are all supported. Exit 0 on success, 1 on any fatal failure or
load error.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFlow(cmd, args[0], runOptions{
				runID: runID, outputDir: outputDir, only: only,
				continueFrom: continueFrom, dryRun: dryRun, devFast: devFast,
				progress: progress, tracePerf: tracePerf,
			})
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Explicit run id (default: generated hex id)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Override the flow's run.output_dir")
	cmd.Flags().StringVar(&only, "only", "", "Comma-separated step ids to restrict execution to")
	cmd.Flags().StringVar(&continueFrom, "continue-from", "", "Resume from this step id, skipping earlier steps")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Compute the plan without executing any step")
	cmd.Flags().BoolVar(&devFast, "dev-fast", false, "Relax schema strictness and flush logs every line")
	cmd.Flags().BoolVar(&progress, "progress", false, "Accepted but has no effect: no progress line is printed")
	cmd.Flags().BoolVar(&tracePerf, "trace-perf", false, "Accepted but has no effect: no timing output is emitted")

	return cmd
}

type runOptions struct {
	runID, outputDir, only, continueFrom string
	dryRun, devFast, progress, tracePerf bool
}

func runFlow(cmd *cobra.Command, flowPath string, opts runOptions) error {
	cfg := flowconfig.FromEnv()

	provider, err := providers.Select(os.Getenv("FLOWCTL_PROVIDER"))
	if err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "select provider", Cause: err}
	}

	mreg := metrics.New()

	router := mcprouter.NewRouter(mcprouter.Config{
		Provider:  provider,
		Workers:   cfg.MCPMaxSessions,
		Retries:   cfg.MCPMaxRetries,
		Metrics:   mreg,
	})
	defer router.Shutdown()

	r := &runner.Runner{
		Router:        router,
		AgentRegistry: agents.Default,
		Metrics:       mreg,
	}

	var onlySteps []string
	if opts.only != "" {
		onlySteps = strings.Split(opts.only, ",")
	}

	outcome, runErr := r.Run(cmd.Context(), flowPath, runner.Options{
		RunID:         opts.runID,
		OutputDir:     opts.outputDir,
		Only:          onlySteps,
		ContinueFrom:  opts.continueFrom,
		DryRun:        opts.dryRun,
		DevFast:       opts.devFast,
		LogFlushEvery: cfg.LogFlushEvery,
	})

	if cliutil.JSON() {
		return emitJSONResult(outcome, runErr)
	}
	return emitHumanResult(cmd, outcome, runErr)
}

type jsonRunResult struct {
	Success bool     `json:"success"`
	RunID   string   `json:"run_id,omitempty"`
	RunDir  string   `json:"run_dir,omitempty"`
	Error   string   `json:"error,omitempty"`
	Fatal   []string `json:"fatal_steps,omitempty"`
}

func emitJSONResult(outcome *runner.Outcome, runErr error) error {
	res := jsonRunResult{Success: runErr == nil}
	if outcome != nil {
		res.RunID = outcome.RunID
		res.RunDir = outcome.RunDir
		if outcome.Fatal != nil {
			for id := range outcome.Fatal.Failures {
				res.Fatal = append(res.Fatal, id)
			}
		}
	}
	if runErr != nil {
		res.Error = runErr.Error()
	}
	if err := cliutil.EmitJSON(res); err != nil {
		return err
	}
	if runErr != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed}
	}
	return nil
}

func emitHumanResult(cmd *cobra.Command, outcome *runner.Outcome, runErr error) error {
	if outcome == nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: runErr.Error()}
	}

	cmd.Printf("run %s -> %s\n", outcome.RunID, outcome.RunDir)

	if runErr == nil {
		cmd.Println(cliutil.RenderOK("completed"))
		return nil
	}

	var lines []string
	if outcome.Fatal != nil {
		for id, ferr := range outcome.Fatal.Failures {
			lines = append(lines, fmt.Sprintf("  %s: %s", id, trimError(ferr)))
		}
	}
	cmd.Println(cliutil.RenderError("fatal failure"))
	for _, l := range lines {
		cmd.Println(l)
	}
	return &cliutil.ExitError{Code: cliutil.ExitFailed}
}

func trimError(err error) string {
	const limit = 200
	s := err.Error()
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
