// Package audit defines the telemetry record shapes written to a run's
// runs.jsonl and mcp_calls.jsonl, and the writers that serialize them
// through the redactor.
package audit

import (
	"time"

	"github.com/flowctl/flowctl/internal/jsonl"
	"github.com/flowctl/flowctl/internal/redact"
)

// EventKind enumerates the lifecycle points of a single step attempt.
type EventKind string

const (
	EventStart EventKind = "start"
	EventEnd   EventKind = "end"
	EventError EventKind = "error"
)

// EventStatus is the terminal outcome of an event.
type EventStatus string

const (
	StatusOK   EventStatus = "ok"
	StatusFail EventStatus = "fail"
)

// RunEvent is one line of runs.jsonl.
type RunEvent struct {
	TS        time.Time              `json:"ts"`
	RunID     string                 `json:"run_id"`
	Step      string                 `json:"step"`
	Event     EventKind              `json:"event"`
	Status    EventStatus            `json:"status,omitempty"`
	LatencyMs *int64                 `json:"latency_ms,omitempty"`
	Retries   int                    `json:"retries"`
	Attempt   int                    `json:"attempt"`
	Extra     map[string]interface{} `json:"extra,omitempty"`
}

// McpCallStatus enumerates MCP Router audit statuses.
type McpCallStatus string

const (
	McpStatusOK                 McpCallStatus = "ok"
	McpStatusError               McpCallStatus = "error"
	McpStatusPromptLimitExceeded McpCallStatus = "prompt_limit_exceeded"
)

// McpAuditRecord is one line of mcp_calls.jsonl.
type McpAuditRecord struct {
	TS          time.Time              `json:"ts"`
	Model       string                 `json:"model"`
	Worker      *int                   `json:"worker,omitempty"`
	LatencyMs   int64                  `json:"latency_ms"`
	PromptChars int                    `json:"prompt_chars"`
	TokenUsage  map[string]interface{} `json:"token_usage,omitempty"`
	Status      McpCallStatus          `json:"status"`
	Error       string                 `json:"error,omitempty"`
}

// StepFailure describes one step's terminal failure for RunSummary.
type StepFailure struct {
	Error string `json:"error"`
	Fatal bool   `json:"fatal"`
}

// StepStats aggregates the attempt outcomes for one step id.
type StepStats struct {
	OK      int   `json:"ok"`
	Fail    int   `json:"fail"`
	P50Ms   int64 `json:"p50_ms"`
	P95Ms   int64 `json:"p95_ms"`
	Retries int   `json:"retries,omitempty"`
}

// RunSummary is the contents of summary.json.
type RunSummary struct {
	RunID      string                 `json:"run_id"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	Steps      map[string]*StepStats  `json:"steps"`
	Failures   map[string]StepFailure `json:"failures,omitempty"`
}

// EventLog writes RunEvent records to runs.jsonl through the redactor.
type EventLog struct {
	w *jsonl.Writer
}

// NewEventLog wraps a jsonl.Writer for RunEvent records.
func NewEventLog(w *jsonl.Writer) *EventLog {
	return &EventLog{w: w}
}

// Emit redacts extra and writes the event.
func (l *EventLog) Emit(ev RunEvent) error {
	if ev.Extra != nil {
		ev.Extra = redact.Value(ev.Extra).(map[string]interface{})
	}
	return l.w.WriteJSON(ev)
}

// Close closes the underlying writer.
func (l *EventLog) Close() error { return l.w.Close() }

// McpAuditLog writes McpAuditRecord lines to mcp_calls.jsonl.
type McpAuditLog struct {
	w *jsonl.Writer
}

// NewMcpAuditLog wraps a jsonl.Writer for McpAuditRecord records.
func NewMcpAuditLog(w *jsonl.Writer) *McpAuditLog {
	return &McpAuditLog{w: w}
}

// Emit redacts token_usage and writes the record; error is written as is.
func (l *McpAuditLog) Emit(rec McpAuditRecord) error {
	if rec.TokenUsage != nil {
		rec.TokenUsage = redact.Value(rec.TokenUsage).(map[string]interface{})
	}
	return l.w.WriteJSON(rec)
}

// Close closes the underlying writer.
func (l *McpAuditLog) Close() error { return l.w.Close() }
