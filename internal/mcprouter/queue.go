package mcprouter

import "context"

// GenerateRequest is the caller-facing request accepted by Router.Generate.
type GenerateRequest struct {
	Prompt         string
	Model          string
	PromptLimit    int
	PromptBuffer   int
	Sandbox        string
	ApprovalPolicy string
	Config         map[string]interface{}
	TimeoutSec     int
	// Retries overrides the router's default retry count when >= 0.
	Retries int
}

// queueItem is one admitted request waiting for a worker.
type queueItem struct {
	ctx          context.Context
	req          GenerateRequest
	approxTokens int
	result       chan generateResult
}

type generateResult struct {
	resp *ProviderResponse
	err  error
}
