package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowctl/flowctl/internal/flowerrors"
	"github.com/flowctl/flowctl/internal/mcprouter"
)

const openAIEndpoint = "https://api.openai.com/v1/chat/completions"

// OpenAI calls the chat-completions endpoint. Requests are throttled by a
// per-process rate.Limiter since the router's worker pool is the only
// internal backpressure otherwise.
type OpenAI struct {
	APIKey     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Endpoint   string
}

// NewOpenAI builds an OpenAI provider allowing qps requests per second with
// a burst of the same size.
func NewOpenAI(apiKey string, qps float64) *OpenAI {
	if qps <= 0 {
		qps = 2
	}
	return &OpenAI{
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(qps), int(qps)+1),
		Endpoint:   openAIEndpoint,
	}
}

func (p *OpenAI) Name() string { return "openai" }

type openAIChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAI) Generate(ctx context.Context, req mcprouter.ProviderRequest) (*mcprouter.ProviderResponse, error) {
	if err := p.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(openAIChatRequest{
		Model: req.Model,
		Messages: []openAIChatMessage{
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, &flowerrors.ProviderError{Provider: p.Name(), Message: "encode request", Cause: err}
	}

	timeout := time.Duration(req.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = p.HTTPClient.Timeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &flowerrors.ProviderError{Provider: p.Name(), Message: "build request", Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.APIKey)

	start := time.Now()
	resp, err := p.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, &flowerrors.ProviderError{Provider: p.Name(), Message: "request failed", Retriable: true, Cause: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &flowerrors.ProviderError{Provider: p.Name(), Message: "read response", Retriable: true, Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &flowerrors.ProviderError{
			Provider:   p.Name(),
			Message:    fmt.Sprintf("unexpected status: %s", string(data)),
			StatusCode: resp.StatusCode,
			Retriable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		}
	}

	var parsed openAIChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &flowerrors.ProviderError{Provider: p.Name(), Message: "decode response", Cause: err}
	}
	if len(parsed.Choices) == 0 {
		return nil, &flowerrors.ProviderError{Provider: p.Name(), Message: "empty choices"}
	}

	return &mcprouter.ProviderResponse{
		Text:      parsed.Choices[0].Message.Content,
		LatencyMs: time.Since(start).Milliseconds(),
		TokenUsage: &mcprouter.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
