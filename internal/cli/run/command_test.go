package run

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/cliutil"
)

const dryRunFlow = `
version: 1
run:
  output_dir: ./runs/${RUN_ID}
steps:
  - id: a
    uses: shell
    run: "echo hi"
`

func writeFlow(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunDryRunComputesPlanWithoutExecuting(t *testing.T) {
	path := writeFlow(t, dryRunFlow)
	outputDir := t.TempDir()
	outputTemplate := filepath.Join(outputDir, "${RUN_ID}")

	out, err := execute(t, path, "--dry-run", "--output-dir", outputTemplate, "--run-id", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "completed")

	runDir := filepath.Join(outputDir, "abc123")
	_, err = os.Stat(filepath.Join(runDir, "summary.json"))
	assert.True(t, os.IsNotExist(err), "dry-run must not write a summary.json")
	_, err = os.Stat(filepath.Join(runDir, "runs.jsonl"))
	assert.True(t, os.IsNotExist(err), "dry-run must not write a runs.jsonl")
}

func TestRunReportsLoadErrorAsExitFailed(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist.yaml")

	_, err := execute(t, missing, "--dry-run")
	require.Error(t, err)
	var exitErr *cliutil.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cliutil.ExitFailed, exitErr.Code)
}
