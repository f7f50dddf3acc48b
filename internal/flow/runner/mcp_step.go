package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/mcprouter"
	"github.com/flowctl/flowctl/internal/prompttemplate"
)

// RouterClient is the subset of *mcprouter.Router the runner depends on, so
// tests can substitute a fake.
type RouterClient interface {
	Generate(ctx context.Context, req mcprouter.GenerateRequest) (*mcprouter.ProviderResponse, error)
	Name() string
}

// MCPDispatcher resolves a step's prompt, interpolates it, and dispatches it
// to the MCP Router per spec §4.6.
type MCPDispatcher struct {
	Router RouterClient
}

func (d MCPDispatcher) Dispatch(ctx context.Context, step *flow.Step, rc *RunContext) (map[string]interface{}, error) {
	m := step.MCP

	prompt, err := d.resolvePrompt(m, rc)
	if err != nil {
		return nil, err
	}

	resolved := prompttemplate.Resolve(prompt, prompttemplate.Context{
		RunID:        rc.RunID,
		RunDir:       rc.RunDir,
		ArtifactsDir: rc.ArtifactsDir,
		FlowDir:      rc.FlowDir,
		WorkspaceDir: rc.WorkspaceDir,
		Variables:    m.Variables,
	})

	config := stripRouterRetries(m.Config)
	retries := -1
	if n, ok := m.RouterRetries(); ok {
		retries = n
	}

	resp, err := d.Router.Generate(ctx, mcprouter.GenerateRequest{
		Prompt:         resolved,
		Model:          m.Policy.Model,
		PromptLimit:    m.Policy.PromptLimit,
		PromptBuffer:   m.Policy.PromptBuffer,
		Sandbox:        m.Policy.Sandbox,
		ApprovalPolicy: "never",
		Config:         config,
		TimeoutSec:     step.TimeoutSec,
		Retries:        retries,
	})
	if err != nil {
		return nil, err
	}

	result := map[string]interface{}{
		"provider":   d.Router.Name(),
		"text":       resp.Text,
		"latency_ms": resp.LatencyMs,
	}
	if resp.TokenUsage != nil {
		result["token_usage"] = map[string]interface{}{
			"prompt_tokens":     resp.TokenUsage.PromptTokens,
			"completion_tokens": resp.TokenUsage.CompletionTokens,
			"total_tokens":      resp.TokenUsage.TotalTokens,
		}
	}

	if m.SaveText != "" {
		savePath := filepath.Join(rc.RunDir, m.SaveText)
		if err := os.MkdirAll(filepath.Dir(savePath), 0o755); err != nil {
			return nil, fmt.Errorf("save.text: %w", err)
		}
		if err := os.WriteFile(savePath, []byte(resp.Text), 0o644); err != nil {
			return nil, fmt.Errorf("save.text: %w", err)
		}
		result["save"] = map[string]interface{}{"saved_text": savePath}
	}

	return result, nil
}

// resolvePrompt returns the inline prompt, or reads prompt_from from the
// flow directory (falling back to the workspace directory).
func (d MCPDispatcher) resolvePrompt(m *flow.MCPUses, rc *RunContext) (string, error) {
	if m.Prompt != "" {
		return m.Prompt, nil
	}

	candidates := []string{
		filepath.Join(rc.FlowDir, m.PromptFrom),
		filepath.Join(rc.WorkspaceDir, m.PromptFrom),
	}
	for _, c := range candidates {
		data, err := os.ReadFile(c)
		if err == nil {
			return string(data), nil
		}
	}
	return "", fmt.Errorf("prompt_from %q not found in flow dir or workspace", m.PromptFrom)
}

func stripRouterRetries(config map[string]interface{}) map[string]interface{} {
	if config == nil {
		return nil
	}
	out := make(map[string]interface{}, len(config))
	for k, v := range config {
		if k == "router_retries" {
			continue
		}
		out[k] = v
	}
	return out
}
