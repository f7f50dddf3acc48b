// Package mcprouter implements the MCP Router: a synchronous completion API
// backed by an asynchronous worker pool, admission control, retry, and a
// JSONL audit trail.
package mcprouter

import "context"

// TokenUsage mirrors a provider's reported token accounting.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ProviderRequest is passed to Provider.Generate for a single attempt.
type ProviderRequest struct {
	Prompt         string
	Model          string
	Sandbox        string
	ApprovalPolicy string
	Config         map[string]interface{}
	TimeoutSec     int
}

// ProviderResponse is a successful completion result.
type ProviderResponse struct {
	Text       string
	Content    map[string]interface{}
	Meta       map[string]interface{}
	LatencyMs  int64
	TokenUsage *TokenUsage
}

// Provider fulfills a ProviderRequest. Implementations: Dummy, OpenAI,
// GitHub.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req ProviderRequest) (*ProviderResponse, error)
}
