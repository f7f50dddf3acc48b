// Package providers implements the concrete MCP Router providers: an offline
// Dummy echo used for --dev-fast and tests, and HTTP-backed OpenAI and
// GitHub providers.
package providers

import (
	"context"
	"fmt"

	"github.com/flowctl/flowctl/internal/mcprouter"
)

// Dummy answers every request with a deterministic echo of the prompt,
// without making any network call. It is the fallback provider when no
// production credential is configured and ENV != production.
type Dummy struct{}

func (Dummy) Name() string { return "dummy" }

func (Dummy) Generate(ctx context.Context, req mcprouter.ProviderRequest) (*mcprouter.ProviderResponse, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	text := fmt.Sprintf("[dummy:%s] %s", req.Model, req.Prompt)
	return &mcprouter.ProviderResponse{
		Text: text,
		Meta: map[string]interface{}{"provider": "dummy"},
		TokenUsage: &mcprouter.TokenUsage{
			PromptTokens:     mcprouter.ApproxTokens(req.Prompt),
			CompletionTokens: mcprouter.ApproxTokens(text),
			TotalTokens:      mcprouter.ApproxTokens(req.Prompt) + mcprouter.ApproxTokens(text),
		},
	}, nil
}
