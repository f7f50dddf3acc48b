package logs

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/cliutil"
)

func writeSummary(t *testing.T, runsDir, runID string, summary audit.RunSummary) {
	t.Helper()
	runDir := filepath.Join(runsDir, runID)
	require.NoError(t, os.MkdirAll(runDir, 0o755))
	data, err := json.Marshal(summary)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, "summary.json"), data, 0o644))
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

func TestLogsRendersHumanSummary(t *testing.T) {
	runsDir := t.TempDir()
	writeSummary(t, runsDir, "run-1", audit.RunSummary{
		RunID:      "run-1",
		StartedAt:  time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC),
		Steps: map[string]*audit.StepStats{
			"fetch": {OK: 1, Fail: 0, P50Ms: 12, P95Ms: 20},
		},
	})

	out, err := execute(t, "run-1", "--output-dir", runsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "fetch")
}

func TestLogsRendersFailuresWhenPresent(t *testing.T) {
	runsDir := t.TempDir()
	writeSummary(t, runsDir, "run-2", audit.RunSummary{
		RunID: "run-2",
		Failures: map[string]audit.StepFailure{
			"fetch": {Error: "boom", Fatal: true},
		},
	})

	out, err := execute(t, "run-2", "--output-dir", runsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "failures")
	assert.Contains(t, out, "boom")
}

func TestLogsJSONOutput(t *testing.T) {
	*cliutil.JSONFlagPtr() = true
	defer func() { *cliutil.JSONFlagPtr() = false }()

	runsDir := t.TempDir()
	writeSummary(t, runsDir, "run-3", audit.RunSummary{RunID: "run-3"})

	out, err := execute(t, "run-3", "--output-dir", runsDir)
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id": "run-3"`)
}

func TestLogsMissingRunReturnsExitFailed(t *testing.T) {
	runsDir := t.TempDir()

	_, err := execute(t, "does-not-exist", "--output-dir", runsDir)
	require.Error(t, err)
	var exitErr *cliutil.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cliutil.ExitFailed, exitErr.Code)
}
