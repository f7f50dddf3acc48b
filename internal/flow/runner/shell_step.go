package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/flowctl/flowctl/internal/flow"
)

const shellErrorDetailLimit = 500

// ShellDispatcher executes a uses: shell step through the host shell with
// the workspace as the working directory.
type ShellDispatcher struct{}

// Dispatch runs step.Shell.Run via "sh -c", per §4.5.
func (ShellDispatcher) Dispatch(ctx context.Context, step *flow.Step, rc *RunContext) (map[string]interface{}, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", step.Shell.Run)
	cmd.Dir = rc.WorkspaceDir
	cmd.Env = append(os.Environ(),
		"FLOW_RUN_ID="+rc.RunID,
		"FLOW_OUTPUT_DIR="+rc.RunDir,
		"FLOW_ARTIFACTS_DIR="+rc.ArtifactsDir,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	out := strings.TrimSpace(stdout.String())
	errOut := strings.TrimSpace(stderr.String())

	if err != nil {
		detail := errOut
		if detail == "" {
			detail = out
		}
		if len(detail) > shellErrorDetailLimit {
			detail = detail[:shellErrorDetailLimit]
		}
		return nil, fmt.Errorf("%s: %s", err, detail)
	}

	return map[string]interface{}{
		"stdout":  out,
		"stderr":  errOut,
		"command": step.Shell.Run,
	}, nil
}
