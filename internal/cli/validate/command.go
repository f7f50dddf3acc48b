// Package validate implements the "flowctl validate" subcommand.
package validate

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/flowctl/flowctl/internal/cliutil"
	"github.com/flowctl/flowctl/internal/flow"
)

// NewCommand builds the "validate" subcommand.
func NewCommand() *cobra.Command {
	var devFast bool

	cmd := &cobra.Command{
		Use:   "validate FLOW",
		Short: "Check a flow document's YAML syntax and schema",
		Long: `validate loads FLOW the same way run does, rejecting unrecognized
top-level keys under schema validation unless --dev-fast is set. It performs
no execution. Exit 0 if valid, 1 otherwise.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], devFast)
		},
	}

	cmd.Flags().BoolVar(&devFast, "dev-fast", false, "Relax schema strictness")
	return cmd
}

type jsonValidateResult struct {
	Valid bool   `json:"valid"`
	Steps int    `json:"steps,omitempty"`
	Error string `json:"error,omitempty"`
}

func runValidate(cmd *cobra.Command, flowPath string, devFast bool) error {
	f, err := flow.Load(flowPath, flow.LoadOptions{DevFast: devFast})

	if cliutil.JSON() {
		res := jsonValidateResult{Valid: err == nil}
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Steps = len(f.Steps)
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if jsonErr := enc.Encode(res); jsonErr != nil {
			return jsonErr
		}
		if err != nil {
			return &cliutil.ExitError{Code: cliutil.ExitFailed}
		}
		return nil
	}

	if err != nil {
		cmd.Println(cliutil.RenderError(err.Error()))
		return &cliutil.ExitError{Code: cliutil.ExitFailed}
	}

	cmd.Println(cliutil.RenderOK("valid"))
	cmd.Printf("  steps: %d\n", len(f.Steps))
	return nil
}
