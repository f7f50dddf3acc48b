package runner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/flow"
)

func TestShellDispatcherSuccess(t *testing.T) {
	rc := &RunContext{RunID: "r1", RunDir: t.TempDir(), WorkspaceDir: t.TempDir()}
	step := &flow.Step{ID: "s", Shell: &flow.ShellUses{Run: "echo hello"}}

	result, err := (ShellDispatcher{}).Dispatch(context.Background(), step, rc)
	require.NoError(t, err)
	assert.Equal(t, "hello", result["stdout"])
}

func TestShellDispatcherNonZeroExit(t *testing.T) {
	rc := &RunContext{RunID: "r1", RunDir: t.TempDir(), WorkspaceDir: t.TempDir()}
	step := &flow.Step{ID: "s", Shell: &flow.ShellUses{Run: "echo boom 1>&2; exit 1"}}

	_, err := (ShellDispatcher{}).Dispatch(context.Background(), step, rc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestShellDispatcherExposesEnv(t *testing.T) {
	rc := &RunContext{RunID: "run-xyz", RunDir: t.TempDir(), ArtifactsDir: t.TempDir(), WorkspaceDir: t.TempDir()}
	step := &flow.Step{ID: "s", Shell: &flow.ShellUses{Run: "echo $FLOW_RUN_ID"}}

	result, err := (ShellDispatcher{}).Dispatch(context.Background(), step, rc)
	require.NoError(t, err)
	assert.Equal(t, "run-xyz", result["stdout"])
}
