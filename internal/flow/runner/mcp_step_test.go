package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/mcprouter"
)

type fakeRouter struct {
	lastReq mcprouter.GenerateRequest
	resp    *mcprouter.ProviderResponse
	err     error
}

func (f *fakeRouter) Name() string { return "fake" }

func (f *fakeRouter) Generate(ctx context.Context, req mcprouter.GenerateRequest) (*mcprouter.ProviderResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func TestMCPDispatcherResolvesInlinePromptAndVariables(t *testing.T) {
	router := &fakeRouter{resp: &mcprouter.ProviderResponse{Text: "done"}}
	d := MCPDispatcher{Router: router}

	rc := &RunContext{RunID: "r1", RunDir: t.TempDir(), FlowDir: t.TempDir(), WorkspaceDir: t.TempDir()}
	step := &flow.Step{
		ID: "s1", TimeoutSec: 5,
		MCP: &flow.MCPUses{
			Prompt:    "run {run_id}: count={variables.n}",
			Variables: map[string]interface{}{"n": 3},
			Policy:    flow.MCPPolicy{Model: "m", PromptLimit: 100, PromptBuffer: 0, Sandbox: "read-only"},
		},
	}

	result, err := d.Dispatch(context.Background(), step, rc)
	require.NoError(t, err)
	assert.Equal(t, "done", result["text"])
	assert.Equal(t, "run r1: count=3", router.lastReq.Prompt)
}

func TestMCPDispatcherReadsPromptFrom(t *testing.T) {
	flowDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(flowDir, "p.txt"), []byte("hello from file"), 0o644))

	router := &fakeRouter{resp: &mcprouter.ProviderResponse{Text: "ok"}}
	d := MCPDispatcher{Router: router}

	rc := &RunContext{RunID: "r1", RunDir: t.TempDir(), FlowDir: flowDir, WorkspaceDir: t.TempDir()}
	step := &flow.Step{
		ID: "s1", TimeoutSec: 5,
		MCP: &flow.MCPUses{
			PromptFrom: "p.txt",
			Policy:     flow.MCPPolicy{Model: "m", PromptLimit: 100, PromptBuffer: 0},
		},
	}

	_, err := d.Dispatch(context.Background(), step, rc)
	require.NoError(t, err)
	assert.Equal(t, "hello from file", router.lastReq.Prompt)
}

func TestMCPDispatcherSavesText(t *testing.T) {
	router := &fakeRouter{resp: &mcprouter.ProviderResponse{Text: "save me"}}
	d := MCPDispatcher{Router: router}

	runDir := t.TempDir()
	rc := &RunContext{RunID: "r1", RunDir: runDir, FlowDir: t.TempDir(), WorkspaceDir: t.TempDir()}
	step := &flow.Step{
		ID: "s1", TimeoutSec: 5,
		MCP: &flow.MCPUses{
			Prompt:   "hi",
			Policy:   flow.MCPPolicy{Model: "m", PromptLimit: 100, PromptBuffer: 0},
			SaveText: "artifacts/out.txt",
		},
	}

	result, err := d.Dispatch(context.Background(), step, rc)
	require.NoError(t, err)
	saved := result["save"].(map[string]interface{})["saved_text"].(string)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, "save me", string(data))
}

func TestMCPDispatcherStripsRouterRetriesFromConfig(t *testing.T) {
	router := &fakeRouter{resp: &mcprouter.ProviderResponse{Text: "ok"}}
	d := MCPDispatcher{Router: router}

	rc := &RunContext{RunID: "r1", RunDir: t.TempDir(), FlowDir: t.TempDir(), WorkspaceDir: t.TempDir()}
	step := &flow.Step{
		ID: "s1", TimeoutSec: 5,
		MCP: &flow.MCPUses{
			Prompt: "hi",
			Policy: flow.MCPPolicy{Model: "m", PromptLimit: 100, PromptBuffer: 0},
			Config: map[string]interface{}{"router_retries": 4, "temperature": 0.2},
		},
	}

	_, err := d.Dispatch(context.Background(), step, rc)
	require.NoError(t, err)
	assert.Equal(t, 4, router.lastReq.Retries)
	_, hasRetries := router.lastReq.Config["router_retries"]
	assert.False(t, hasRetries)
	assert.Equal(t, 0.2, router.lastReq.Config["temperature"])
}
