package runner

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/flow/plan"
	"github.com/flowctl/flowctl/internal/metrics"
)

var errUnsatisfiedDependency = errors.New("unsatisfied dependency after drain")

// StepOutcome records one step's terminal result for ExecutionResult.Failed.
type StepOutcome struct {
	StepID string
	Err    error
	Fatal  bool
}

// ExecutionResult is the contract of §4.3: every failed step (fatal or not,
// told apart by StepOutcome.Fatal) and the ids that ran to completion
// (success or non-fatal failure).
type ExecutionResult struct {
	Failed         []StepOutcome
	CompletedSteps map[string]bool
}

// Success reports whether no fatal failure occurred.
func (r *ExecutionResult) Success() bool {
	for _, f := range r.Failed {
		if f.Fatal {
			return false
		}
	}
	return true
}

// Executor drives the DAG per §4.3: remaining_deps/dependents/ready queue,
// concurrent dispatch bounded only by the frontier (or MaxConcurrency if
// set), and cancellation of in-flight steps on the first fatal failure.
type Executor struct {
	Flow           *flow.Flow
	Dispatcher     StepDispatcher
	Events         *audit.EventLog
	Summary        *audit.SummaryBuilder
	MaxConcurrency int // 0 = unbounded, matching the spec's default
	Metrics        *metrics.Registry
}

type doneMsg struct {
	id      string
	outcome attemptOutcome
}

// Run executes p.Order's frontier concurrently against ctx and rc.
func (e *Executor) Run(ctx context.Context, rc *RunContext, p *plan.Plan) *ExecutionResult {
	byID := make(map[string]*flow.Step, len(e.Flow.Steps))
	for _, s := range e.Flow.Steps {
		byID[s.ID] = s
	}

	active := make(map[string]bool, len(p.Order))
	for _, id := range p.Order {
		active[id] = true
	}

	remaining := make(map[string]int, len(active))
	dependents := make(map[string][]string, len(active))
	for _, id := range p.Order {
		step := byID[id]
		count := 0
		for _, dep := range step.DependsOn {
			if active[dep] {
				count++
				dependents[dep] = append(dependents[dep], id)
			}
		}
		remaining[id] = count
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var sem chan struct{}
	if e.MaxConcurrency > 0 {
		sem = make(chan struct{}, e.MaxConcurrency)
	}

	done := make(chan doneMsg)
	pending := len(active)
	var g errgroup.Group

	start := func(id string) {
		g.Go(func() error {
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			outcome := runStep(runCtx, rc, byID[id], e.Dispatcher, e.Events, e.Summary, e.Metrics)
			done <- doneMsg{id: id, outcome: outcome}
			return nil
		})
	}

	var ready []string
	for _, id := range p.Order {
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}
	for _, id := range ready {
		start(id)
	}
	inFlight := len(ready)

	result := &ExecutionResult{CompletedSteps: make(map[string]bool)}
	fatalHit := false

	for pending > 0 && inFlight > 0 {
		msg := <-done
		inFlight--
		pending--

		if msg.outcome.Err == nil || !msg.outcome.Fatal {
			result.CompletedSteps[msg.id] = true
		}
		if msg.outcome.Err != nil {
			result.Failed = append(result.Failed, StepOutcome{StepID: msg.id, Err: msg.outcome.Err, Fatal: msg.outcome.Fatal})
			if msg.outcome.Fatal {
				fatalHit = true
				cancel()
			}
		}

		if fatalHit {
			continue // let remaining in-flight steps unwind; don't start new ones
		}

		next := dependents[msg.id]
		sort.Slice(next, func(i, j int) bool { return e.Flow.StepIndex[next[i]] < e.Flow.StepIndex[next[j]] })
		for _, dep := range next {
			remaining[dep]--
			if remaining[dep] == 0 {
				start(dep)
				inFlight++
			}
		}
	}

	_ = g.Wait()

	if !fatalHit && pending > 0 {
		// Defensive: the planner should have caught this, but guard anyway.
		result.Failed = append(result.Failed, StepOutcome{StepID: "<plan>", Fatal: true, Err: errUnsatisfiedDependency})
	}

	return result
}
