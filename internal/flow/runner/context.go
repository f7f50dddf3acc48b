// Package runner drives DAG-concurrent execution of a planned Flow:
// per-step timeout/retry, event emission, and run summary assembly.
package runner

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// RunContext carries the per-run identifiers and directories every step
// dispatcher needs. It is immutable once built.
type RunContext struct {
	RunID        string
	RunDir       string
	ArtifactsDir string
	WorkspaceDir string
	FlowDir      string
}

// NewRunContext derives run_dir from outputDirTemplate (expanding
// ${RUN_ID}), creates run_dir/artifacts, and resolves the workspace
// directory (defaults to the flow's own directory).
func NewRunContext(outputDirTemplate, flowDir, workspaceDir, runID string) (*RunContext, error) {
	if runID == "" {
		runID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	runDir := expandRunID(outputDirTemplate, runID)
	if !filepath.IsAbs(runDir) {
		runDir = filepath.Join(flowDir, runDir)
	}
	artifactsDir := filepath.Join(runDir, "artifacts")

	if err := os.MkdirAll(artifactsDir, 0o755); err != nil {
		return nil, err
	}

	if workspaceDir == "" {
		workspaceDir = flowDir
	}

	return &RunContext{
		RunID:        runID,
		RunDir:       runDir,
		ArtifactsDir: artifactsDir,
		WorkspaceDir: workspaceDir,
		FlowDir:      flowDir,
	}, nil
}

func expandRunID(template, runID string) string {
	out := make([]byte, 0, len(template))
	for i := 0; i < len(template); i++ {
		if i+len("${RUN_ID}") <= len(template) && template[i:i+len("${RUN_ID}")] == "${RUN_ID}" {
			out = append(out, runID...)
			i += len("${RUN_ID}") - 1
			continue
		}
		out = append(out, template[i])
	}
	return string(out)
}
