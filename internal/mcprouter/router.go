package mcprouter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/backoff"
	"github.com/flowctl/flowctl/internal/flowerrors"
	"github.com/flowctl/flowctl/internal/metrics"
)

const (
	// DefaultWorkers is the worker pool size when Config.Workers is unset.
	DefaultWorkers = 5
	// DefaultQueueSize bounds the number of admitted-but-unstarted requests.
	DefaultQueueSize = 64
	// DefaultRetries is the retry count applied when a request does not
	// specify its own override.
	DefaultRetries = 2
)

// Config configures a Router.
type Config struct {
	Provider  Provider
	Workers   int
	QueueSize int
	Retries   int
	Audit     *audit.McpAuditLog
	Metrics   *metrics.Registry
}

// Router is the synchronous completion facade described in spec §4.8: calls
// to Generate enqueue onto a bounded channel consumed by a fixed worker
// pool, and block on a one-shot result channel until a worker finishes.
type Router struct {
	provider  Provider
	workers   int
	retries   int
	auditMu   sync.RWMutex
	auditLog  *audit.McpAuditLog
	metrics   *metrics.Registry
	queue     chan queueItem
	workerGrp errgroup.Group
	closeOnce sync.Once
}

// NewRouter constructs and starts a Router's worker pool.
func NewRouter(cfg Config) *Router {
	workers := cfg.Workers
	if workers < 1 {
		workers = DefaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	retries := cfg.Retries
	if retries < 0 {
		retries = DefaultRetries
	}

	r := &Router{
		provider: cfg.Provider,
		workers:  workers,
		retries:  retries,
		auditLog: cfg.Audit,
		metrics:  cfg.Metrics,
		queue:    make(chan queueItem, queueSize),
	}

	for i := 0; i < workers; i++ {
		workerID := i
		r.workerGrp.Go(func() error {
			r.work(workerID)
			return nil
		})
	}
	return r
}

// Name returns the underlying provider's name.
func (r *Router) Name() string { return r.provider.Name() }

// SetAudit swaps the McpAuditLog a running Router writes completion records
// to. The Router is constructed once per process but each run owns its own
// mcp_calls.jsonl, so the Runner calls this after opening the run directory.
func (r *Router) SetAudit(log *audit.McpAuditLog) {
	r.auditMu.Lock()
	r.auditLog = log
	r.auditMu.Unlock()
}

// Generate admits req, enqueues it, and blocks until a worker has produced a
// result or ctx is cancelled.
func (r *Router) Generate(ctx context.Context, req GenerateRequest) (*ProviderResponse, error) {
	approx := ApproxTokens(req.Prompt)
	if approx+req.PromptBuffer > req.PromptLimit {
		r.emitAudit(audit.McpAuditRecord{
			TS:          now(),
			Model:       req.Model,
			PromptChars: len(req.Prompt),
			Status:      audit.McpStatusPromptLimitExceeded,
			Error: (&flowerrors.PromptLimitExceededError{
				ApproxTokens: approx, PromptBuffer: req.PromptBuffer, PromptLimit: req.PromptLimit,
			}).Error(),
		})
		r.metrics.ObserveMCPRequest(string(audit.McpStatusPromptLimitExceeded))
		return nil, &flowerrors.PromptLimitExceededError{
			ApproxTokens: approx, PromptBuffer: req.PromptBuffer, PromptLimit: req.PromptLimit,
		}
	}

	item := queueItem{
		ctx:          ctx,
		req:          req,
		approxTokens: approx,
		result:       make(chan generateResult, 1),
	}

	select {
	case r.queue <- item:
		r.metrics.SetMCPQueueDepth(len(r.queue))
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-item.result:
		return res.resp, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown closes the queue and waits for in-flight and queued work to
// drain, then closes the audit log.
func (r *Router) Shutdown() {
	r.closeOnce.Do(func() { close(r.queue) })
	_ = r.workerGrp.Wait()
	r.auditMu.RLock()
	log := r.auditLog
	r.auditMu.RUnlock()
	if log != nil {
		log.Close()
	}
}

func (r *Router) work(id int) {
	for item := range r.queue {
		r.metrics.SetMCPQueueDepth(len(r.queue))
		resp, err := r.attemptWithRetry(item, id)
		item.result <- generateResult{resp: resp, err: err}
	}
}

func (r *Router) attemptWithRetry(item queueItem, workerID int) (*ProviderResponse, error) {
	retries := r.retries
	if item.req.Retries >= 0 {
		retries = item.req.Retries
	}
	attempts := retries + 1

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		start := time.Now()
		resp, err := r.provider.Generate(item.ctx, ProviderRequest{
			Prompt:         item.req.Prompt,
			Model:          item.req.Model,
			Sandbox:        item.req.Sandbox,
			ApprovalPolicy: item.req.ApprovalPolicy,
			Config:         item.req.Config,
			TimeoutSec:     item.req.TimeoutSec,
		})
		latency := time.Since(start).Milliseconds()

		if err == nil {
			r.emitAudit(audit.McpAuditRecord{
				TS: now(), Model: item.req.Model, Worker: intPtr(workerID),
				LatencyMs: latency, PromptChars: len(item.req.Prompt),
				TokenUsage: tokenUsageMap(resp.TokenUsage), Status: audit.McpStatusOK,
			})
			r.metrics.ObserveMCPRequest(string(audit.McpStatusOK))
			return resp, nil
		}

		lastErr = err
		r.emitAudit(audit.McpAuditRecord{
			TS: now(), Model: item.req.Model, Worker: intPtr(workerID),
			LatencyMs: latency, PromptChars: len(item.req.Prompt),
			Status: audit.McpStatusError, Error: err.Error(),
		})

		if !isRetriable(err) || attempt == attempts {
			r.metrics.ObserveMCPRequest(string(audit.McpStatusError))
			break
		}

		select {
		case <-time.After(backoff.ForAttempt(attempt)):
		case <-item.ctx.Done():
			return nil, item.ctx.Err()
		}
	}
	return nil, lastErr
}

func isRetriable(err error) bool {
	var pe *flowerrors.ProviderError
	if asProviderError(err, &pe) {
		return pe.Retriable
	}
	return true
}

func asProviderError(err error, target **flowerrors.ProviderError) bool {
	for err != nil {
		if pe, ok := err.(*flowerrors.ProviderError); ok {
			*target = pe
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func (r *Router) emitAudit(rec audit.McpAuditRecord) {
	r.auditMu.RLock()
	log := r.auditLog
	r.auditMu.RUnlock()
	if log == nil {
		return
	}
	_ = log.Emit(rec)
}

func tokenUsageMap(u *TokenUsage) map[string]interface{} {
	if u == nil {
		return nil
	}
	return map[string]interface{}{
		"prompt_tokens":     u.PromptTokens,
		"completion_tokens": u.CompletionTokens,
		"total_tokens":      u.TotalTokens,
	}
}

func intPtr(n int) *int { return &n }

// now is a seam so tests can avoid depending on wall-clock ordering.
var now = time.Now
