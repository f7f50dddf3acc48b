package diff

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/cliutil"
)

const baseFlow = `
version: 1
run:
  output_dir: ./runs/${RUN_ID}
steps:
  - id: fetch
    uses: shell
    run: "echo hi"
    timeout_sec: 30
    retries: 2
  - id: summarize
    uses: mcp
    input:
      prompt: "summarize: {{.fetch.stdout}}"
    policy:
      model: gpt
      prompt_limit: 4000
      prompt_buffer: 200
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

func TestDiffReportsNoDifferencesForIdenticalFlows(t *testing.T) {
	path := writeFlow(t, baseFlow)

	out, err := execute(t, path, path)
	require.NoError(t, err)
	assert.Contains(t, out, "no differences")
}

func TestDiffFlagsStepRemovalAsBreaking(t *testing.T) {
	base := writeFlow(t, baseFlow)
	target := writeFlow(t, `
version: 1
run:
  output_dir: ./runs/${RUN_ID}
steps:
  - id: fetch
    uses: shell
    run: "echo hi"
    timeout_sec: 30
    retries: 2
`)

	_, err := execute(t, base, target)
	require.Error(t, err)
	var exitErr *cliutil.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, cliutil.ExitBreaking, exitErr.Code)
}

func TestDiffFlagsTimeoutDecreaseAsBreaking(t *testing.T) {
	base := writeFlow(t, baseFlow)
	target := writeFlow(t, `
version: 1
run:
  output_dir: ./runs/${RUN_ID}
steps:
  - id: fetch
    uses: shell
    run: "echo hi"
    timeout_sec: 10
    retries: 2
  - id: summarize
    uses: mcp
    input:
      prompt: "summarize: {{.fetch.stdout}}"
    policy:
      model: gpt
      prompt_limit: 4000
      prompt_buffer: 200
`)

	*cliutil.JSONFlagPtr() = true
	defer func() { *cliutil.JSONFlagPtr() = false }()

	out, err := execute(t, base, target)
	require.Error(t, err)
	assert.Contains(t, out, "timeout_decreased")
}

func TestDiffFlagsUsesChangeAsBreaking(t *testing.T) {
	base := writeFlow(t, baseFlow)
	target := writeFlow(t, `
version: 1
run:
  output_dir: ./runs/${RUN_ID}
steps:
  - id: fetch
    uses: shell
    run: "echo hi"
    timeout_sec: 30
    retries: 2
  - id: summarize
    uses: shell
    run: "echo replaced"
    timeout_sec: 30
    retries: 2
`)

	*cliutil.JSONFlagPtr() = true
	defer func() { *cliutil.JSONFlagPtr() = false }()

	out, err := execute(t, base, target)
	require.Error(t, err)
	assert.Contains(t, out, "uses_changed")
}
