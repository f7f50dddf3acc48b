package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowctl/flowctl/internal/flowerrors"
	"github.com/flowctl/flowctl/internal/mcprouter"
)

const githubModelsEndpoint = "https://models.github.ai/inference/chat/completions"

// GitHub calls the GitHub Models inference endpoint and surfaces the
// standard GitHub REST rate-limit headers in the response metadata so
// callers can observe remaining quota without a separate round trip.
type GitHub struct {
	Token      string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	Endpoint   string
}

func NewGitHub(token string, qps float64) *GitHub {
	if qps <= 0 {
		qps = 1
	}
	return &GitHub{
		Token:      token,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Limiter:    rate.NewLimiter(rate.Limit(qps), int(qps)+1),
		Endpoint:   githubModelsEndpoint,
	}
}

func (p *GitHub) Name() string { return "github" }

type githubChatRequest struct {
	Model    string              `json:"model"`
	Messages []openAIChatMessage `json:"messages"`
}

func (p *GitHub) Generate(ctx context.Context, req mcprouter.ProviderRequest) (*mcprouter.ProviderResponse, error) {
	if err := p.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(githubChatRequest{
		Model:    req.Model,
		Messages: []openAIChatMessage{{Role: "user", Content: req.Prompt}},
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
	httpReq.Header.Set("Authorization", "Bearer "+p.Token)
	httpReq.Header.Set("Accept", "application/vnd.github+json")

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

	rateMeta := map[string]interface{}{}
	if v := resp.Header.Get("X-RateLimit-Remaining"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			rateMeta["rate_limit_remaining"] = n
		}
	}
	if v := resp.Header.Get("X-RateLimit-Reset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			rateMeta["rate_limit_reset"] = n
		}
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
		Meta:      rateMeta,
		LatencyMs: time.Since(start).Milliseconds(),
		TokenUsage: &mcprouter.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}
