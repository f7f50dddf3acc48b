package runner

import (
	"context"
	"errors"
	"time"

	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/backoff"
	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/flowerrors"
	"github.com/flowctl/flowctl/internal/metrics"
)

// StepDispatcher executes one attempt of a step and returns its result
// mapping. It must respect ctx's deadline/cancellation.
type StepDispatcher interface {
	Dispatch(ctx context.Context, step *flow.Step, rc *RunContext) (map[string]interface{}, error)
}

// attemptOutcome is the terminal result of running a step to completion
// (success, or exhausted retries).
type attemptOutcome struct {
	Result map[string]interface{}
	Err    error
	Fatal  bool
}

// runStep implements the per-step protocol of spec §4.4: emit start, invoke
// with a hard timeout, retry with jittered backoff on timeout/error up to
// step.Retries, and emit the terminal event.
func runStep(ctx context.Context, rc *RunContext, step *flow.Step, dispatcher StepDispatcher, events *audit.EventLog, summary *audit.SummaryBuilder, m *metrics.Registry) attemptOutcome {
	attempt := 1
	for {
		start := time.Now()
		_ = events.Emit(audit.RunEvent{
			TS:      time.Now().UTC(),
			RunID:   rc.RunID,
			Step:    step.ID,
			Event:   audit.EventStart,
			Attempt: attempt,
			Retries: step.Retries,
			Extra:   map[string]interface{}{"type": string(step.Uses)},
		})

		stepCtx, cancel := context.WithTimeout(ctx, time.Duration(step.TimeoutSec)*time.Second)
		result, err := dispatcher.Dispatch(stepCtx, step, rc)
		timedOut := errors.Is(stepCtx.Err(), context.DeadlineExceeded)
		cancel()

		latency := time.Since(start).Milliseconds()

		if err == nil {
			_ = events.Emit(audit.RunEvent{
				TS:        time.Now().UTC(),
				RunID:     rc.RunID,
				Step:      step.ID,
				Event:     audit.EventEnd,
				Status:    audit.StatusOK,
				LatencyMs: latencyPtr(latency),
				Attempt:   attempt,
				Retries:   step.Retries,
			})
			summary.Record(step.ID, audit.StatusOK, latency, attempt)
			m.ObserveStepDuration(string(step.Uses), float64(latency)/1000)
			m.ObserveStepAttempt("ok")
			return attemptOutcome{Result: result}
		}

		reason := err.Error()
		if timedOut {
			reason = "timeout"
			err = &flowerrors.StepTimeoutError{StepID: step.ID, Timeout: time.Duration(step.TimeoutSec) * time.Second}
		}

		if attempt <= step.Retries {
			_ = events.Emit(audit.RunEvent{
				TS:        time.Now().UTC(),
				RunID:     rc.RunID,
				Step:      step.ID,
				Event:     audit.EventError,
				Status:    audit.StatusFail,
				LatencyMs: latencyPtr(latency),
				Attempt:   attempt,
				Retries:   step.Retries,
				Extra:     map[string]interface{}{"reason": reason},
			})

			select {
			case <-time.After(backoff.ForAttempt(attempt)):
			case <-ctx.Done():
				return attemptOutcome{Err: ctx.Err(), Fatal: !step.ContinueOnError}
			}
			attempt++
			continue
		}

		_ = events.Emit(audit.RunEvent{
			TS:        time.Now().UTC(),
			RunID:     rc.RunID,
			Step:      step.ID,
			Event:     audit.EventError,
			Status:    audit.StatusFail,
			LatencyMs: latencyPtr(latency),
			Attempt:   attempt,
			Retries:   step.Retries,
			Extra:     map[string]interface{}{"reason": reason},
		})
		summary.Record(step.ID, audit.StatusFail, latency, attempt)
		m.ObserveStepDuration(string(step.Uses), float64(latency)/1000)
		m.ObserveStepAttempt("fail")

		fatal := !step.ContinueOnError
		summary.Fail(step.ID, reason, fatal)
		return attemptOutcome{Err: &flowerrors.StepFailureError{StepID: step.ID, Attempt: attempt, Cause: err}, Fatal: fatal}
	}
}

func latencyPtr(ms int64) *int64 { return &ms }
