// Package diff implements the "flowctl diff" subcommand: compares two flow
// documents and classifies changes as informational, a warning, or breaking.
package diff

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/cliutil"
	"github.com/flowctl/flowctl/internal/flow"
)

// Severity classifies one StepDiff.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityBreaking Severity = "breaking"
)

// StepDiff is one detected change between the base and target flow.
type StepDiff struct {
	StepID   string   `json:"step_id"`
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// NewCommand builds the "diff" subcommand.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff BASE TARGET",
		Short: "Compare two flow documents for breaking changes",
		Long: `diff loads BASE and TARGET as flow documents and reports step removals,
uses-kind changes, decreased timeouts/retries, and removed required inputs as
breaking changes. Exit 0 with no differences, 1 with warnings only, 2 if any
change is breaking.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(cmd, args[0], args[1])
		},
	}
	return cmd
}

func runDiff(cmd *cobra.Command, basePath, targetPath string) error {
	base, err := flow.Load(basePath, flow.LoadOptions{})
	if err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "load base flow", Cause: err}
	}
	target, err := flow.Load(targetPath, flow.LoadOptions{})
	if err != nil {
		return &cliutil.ExitError{Code: cliutil.ExitFailed, Message: "load target flow", Cause: err}
	}

	diffs := computeDiffs(base, target)

	if cliutil.JSON() {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(diffs); err != nil {
			return err
		}
	} else {
		printHuman(cmd, diffs)
	}

	return exitForSeverity(diffs)
}

func computeDiffs(base, target *flow.Flow) []StepDiff {
	targetByID := make(map[string]*flow.Step, len(target.Steps))
	for _, s := range target.Steps {
		targetByID[s.ID] = s
	}

	var diffs []StepDiff
	for _, b := range base.Steps {
		t, ok := targetByID[b.ID]
		if !ok {
			diffs = append(diffs, StepDiff{StepID: b.ID, Kind: "step_removed", Severity: SeverityBreaking,
				Detail: fmt.Sprintf("step %q no longer exists in target", b.ID)})
			continue
		}
		diffs = append(diffs, diffStep(b, t)...)
	}

	baseByID := make(map[string]*flow.Step, len(base.Steps))
	for _, s := range base.Steps {
		baseByID[s.ID] = s
	}
	for _, t := range target.Steps {
		if _, ok := baseByID[t.ID]; !ok {
			diffs = append(diffs, StepDiff{StepID: t.ID, Kind: "step_added", Severity: SeverityInfo,
				Detail: fmt.Sprintf("step %q added", t.ID)})
		}
	}

	return diffs
}

func diffStep(b, t *flow.Step) []StepDiff {
	var diffs []StepDiff

	if b.Uses != t.Uses {
		diffs = append(diffs, StepDiff{StepID: b.ID, Kind: "uses_changed", Severity: SeverityBreaking,
			Detail: fmt.Sprintf("uses changed from %q to %q", b.Uses, t.Uses)})
	}
	if t.TimeoutSec < b.TimeoutSec {
		diffs = append(diffs, StepDiff{StepID: b.ID, Kind: "timeout_decreased", Severity: SeverityBreaking,
			Detail: fmt.Sprintf("timeout_sec decreased from %d to %d", b.TimeoutSec, t.TimeoutSec)})
	}
	if t.Retries < b.Retries {
		diffs = append(diffs, StepDiff{StepID: b.ID, Kind: "retries_decreased", Severity: SeverityBreaking,
			Detail: fmt.Sprintf("retries decreased from %d to %d", b.Retries, t.Retries)})
	}

	if b.Uses == t.Uses {
		switch b.Uses {
		case flow.UsesAgent:
			diffs = append(diffs, diffRequiredKeys(b.ID, b.Agent.Input, t.Agent.Input)...)
		case flow.UsesMCP:
			if b.MCP.Prompt != "" || b.MCP.PromptFrom != "" {
				if t.MCP.Prompt == "" && t.MCP.PromptFrom == "" {
					diffs = append(diffs, StepDiff{StepID: b.ID, Kind: "required_input_removed", Severity: SeverityBreaking,
						Detail: "prompt/prompt_from removed"})
				}
			}
		}
	}

	return diffs
}

func diffRequiredKeys(stepID string, before, after map[string]interface{}) []StepDiff {
	var diffs []StepDiff
	for k := range before {
		if _, ok := after[k]; !ok {
			diffs = append(diffs, StepDiff{StepID: stepID, Kind: "required_input_removed", Severity: SeverityBreaking,
				Detail: fmt.Sprintf("input %q removed", k)})
		}
	}
	return diffs
}

func printHuman(cmd *cobra.Command, diffs []StepDiff) {
	if len(diffs) == 0 {
		cmd.Println(cliutil.RenderOK("no differences"))
		return
	}
	for _, d := range diffs {
		switch d.Severity {
		case SeverityBreaking:
			cmd.Println(cliutil.RenderError(fmt.Sprintf("[%s] %s: %s", d.StepID, d.Kind, d.Detail)))
		case SeverityWarning:
			cmd.Println(cliutil.RenderWarn(fmt.Sprintf("[%s] %s: %s", d.StepID, d.Kind, d.Detail)))
		default:
			cmd.Printf("[%s] %s: %s\n", d.StepID, d.Kind, d.Detail)
		}
	}
}

func exitForSeverity(diffs []StepDiff) error {
	hasBreaking, hasWarning := false, false
	for _, d := range diffs {
		switch d.Severity {
		case SeverityBreaking:
			hasBreaking = true
		case SeverityWarning:
			hasWarning = true
		}
	}
	if hasBreaking {
		return &cliutil.ExitError{Code: cliutil.ExitBreaking}
	}
	if hasWarning {
		return &cliutil.ExitError{Code: cliutil.ExitFailed}
	}
	return nil
}
