package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/mcprouter"
)

const testFlowYAML = `
version: 1
run:
  output_dir: "./runs/${RUN_ID}"
steps:
  - id: greet
    uses: shell
    run: "echo hello"
  - id: summarize
    uses: mcp
    depends_on: ["greet"]
    input:
      prompt: "summarize: hello"
    policy:
      model: test-model
      prompt_limit: 1000
      prompt_buffer: 10
`

func writeTestFlow(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testFlowYAML), 0o644))
	return path
}

func TestRunnerRunsShellThenMCPChain(t *testing.T) {
	flowPath := writeTestFlow(t)
	router := &fakeRouter{resp: &mcprouter.ProviderResponse{Text: "summary"}}

	r := &Runner{Router: router}
	outcome, err := r.Run(context.Background(), flowPath, Options{})
	require.NoError(t, err)
	require.Nil(t, outcome.Fatal)

	assert.FileExists(t, filepath.Join(outcome.RunDir, "runs.jsonl"))
	assert.FileExists(t, filepath.Join(outcome.RunDir, "mcp_calls.jsonl"))
	assert.FileExists(t, filepath.Join(outcome.RunDir, "summary.json"))

	assert.Equal(t, 1, outcome.Summary.Steps["greet"].OK)
	assert.Equal(t, 1, outcome.Summary.Steps["summarize"].OK)
}

func TestRunnerDryRunSkipsExecution(t *testing.T) {
	flowPath := writeTestFlow(t)
	router := &fakeRouter{resp: &mcprouter.ProviderResponse{Text: "summary"}}

	r := &Runner{Router: router}
	outcome, err := r.Run(context.Background(), flowPath, Options{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"greet", "summarize"}, outcome.Plan.Order)
	assert.NoFileExists(t, filepath.Join(outcome.RunDir, "runs.jsonl"))
}

func TestRunnerFatalStepFailureStopsDAGAndWritesSummary(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flow.yaml")
	content := `
version: 1
run:
  output_dir: "./runs/${RUN_ID}"
steps:
  - id: fails
    uses: shell
    run: "exit 1"
  - id: never_runs
    uses: shell
    depends_on: ["fails"]
    run: "echo unreachable"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	r := &Runner{Router: &fakeRouter{}}
	outcome, err := r.Run(context.Background(), path, Options{})
	require.Error(t, err)
	require.NotNil(t, outcome.Fatal)
	assert.Contains(t, outcome.Fatal.Failures, "fails")
	assert.FileExists(t, filepath.Join(outcome.RunDir, "summary.json"))
}
