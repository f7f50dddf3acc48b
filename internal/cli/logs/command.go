// Package logs implements the "flowctl logs" subcommand: renders a run's
// summary.json.
package logs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/cliutil"
)

// NewCommand builds the "logs" subcommand.
func NewCommand() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "logs RUN_ID",
		Short: "Render a run's summary.json",
		Args:  cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogs(cmd, args[0], outputDir)
		},
	}

	cmd.Flags().StringVar(&outputDir, "output-dir", "./runs", "Base directory containing run directories")
	return cmd
}

func runLogs(cmd *cobra.Command, runID, outputDir string) error {
	path := filepath.Join(outputDir, runID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "read summary", Cause: err}
	}

	var summary audit.RunSummary
	if err := json.Unmarshal(data, &summary); err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "parse summary", Cause: err}
	}

	if cliutil.JSON() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	cmd.Printf("run %s (%s -> %s)\n", summary.RunID, summary.StartedAt.Format("15:04:05"), summary.FinishedAt.Format("15:04:05"))
	for stepID, stats := range summary.Steps {
		cmd.Printf("  %-24s ok=%d fail=%d p50=%dms p95=%dms retries=%d\n",
			stepID, stats.OK, stats.Fail, stats.P50Ms, stats.P95Ms, stats.Retries)
	}
	if len(summary.Failures) > 0 {
		cmd.Println(cliutil.RenderError("failures:"))
		for stepID, f := range summary.Failures {
			cmd.Println(fmt.Sprintf("  %s: fatal=%v %s", stepID, f.Fatal, f.Error))
		}
	}
	return nil
}
