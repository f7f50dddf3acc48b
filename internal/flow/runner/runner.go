package runner

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/flowctl/flowctl/internal/agents"
	"github.com/flowctl/flowctl/internal/audit"
	"github.com/flowctl/flowctl/internal/flow"
	"github.com/flowctl/flowctl/internal/flow/plan"
	"github.com/flowctl/flowctl/internal/flowerrors"
	"github.com/flowctl/flowctl/internal/jsonl"
	"github.com/flowctl/flowctl/internal/metrics"
)

// Options configures one invocation of Runner.Run.
type Options struct {
	RunID          string
	OutputDir      string // overrides the flow's run.output_dir when non-empty
	WorkspaceDir   string
	Only           []string
	ContinueFrom   string
	DryRun         bool
	DevFast        bool
	MaxConcurrency int
	LogFlushEvery  int
}

// compositeDispatcher routes each step to its Shell/MCP/Agent implementation.
type compositeDispatcher struct {
	shell StepDispatcher
	mcp   StepDispatcher
	agent StepDispatcher
}

func (c compositeDispatcher) Dispatch(ctx context.Context, step *flow.Step, rc *RunContext) (map[string]interface{}, error) {
	switch step.Uses {
	case flow.UsesShell:
		return c.shell.Dispatch(ctx, step, rc)
	case flow.UsesMCP:
		return c.mcp.Dispatch(ctx, step, rc)
	case flow.UsesAgent:
		return c.agent.Dispatch(ctx, step, rc)
	default:
		return nil, &flowerrors.PlanError{Reason: "unknown step kind", StepID: step.ID}
	}
}

// Runner loads, plans, and executes a flow document end to end, writing the
// runs.jsonl/mcp_calls.jsonl/summary.json run-directory layout of spec §6.
type Runner struct {
	Router         RouterClient
	AgentRegistry  *agents.Registry
	MaxConcurrency int
	Metrics        *metrics.Registry
}

// Outcome is the terminal result of Runner.Run.
type Outcome struct {
	RunID   string
	RunDir  string
	Plan    *plan.Plan
	Summary *audit.RunSummary
	Fatal   *flowerrors.FatalExecutionError
}

// Run loads flowPath, computes the plan, and (unless DryRun) executes it,
// writing the full audit trail before returning.
func (r *Runner) Run(ctx context.Context, flowPath string, opts Options) (*Outcome, error) {
	f, err := flow.Load(flowPath, flow.LoadOptions{DevFast: opts.DevFast})
	if err != nil {
		return nil, err
	}

	p, err := plan.Compute(f, opts.Only, opts.ContinueFrom)
	if err != nil {
		return nil, err
	}

	outputTemplate := f.OutputDir
	if opts.OutputDir != "" {
		outputTemplate = opts.OutputDir
	}

	rc, err := NewRunContext(outputTemplate, filepath.Dir(flowPath), opts.WorkspaceDir, opts.RunID)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return &Outcome{RunID: rc.RunID, RunDir: rc.RunDir, Plan: p}, nil
	}

	flushEvery := opts.LogFlushEvery
	if flushEvery <= 0 {
		flushEvery = jsonl.DefaultFlushEvery
	}
	if opts.DevFast {
		flushEvery = 1
	}

	runsFile, err := os.Create(filepath.Join(rc.RunDir, "runs.jsonl"))
	if err != nil {
		return nil, err
	}
	mcpFile, err := os.Create(filepath.Join(rc.RunDir, "mcp_calls.jsonl"))
	if err != nil {
		return nil, err
	}

	events := audit.NewEventLog(jsonl.New(runsFile, flushEvery))
	mcpAudit := audit.NewMcpAuditLog(jsonl.New(mcpFile, flushEvery))
	defer events.Close()
	defer mcpAudit.Close()

	if auditable, ok := r.Router.(interface {
		SetAudit(*audit.McpAuditLog)
	}); ok {
		auditable.SetAudit(mcpAudit)
		defer auditable.SetAudit(nil)
	}

	summary := audit.NewSummaryBuilder(rc.RunID)

	registry := r.AgentRegistry
	if registry == nil {
		registry = agents.Default
	}

	dispatcher := compositeDispatcher{
		shell: ShellDispatcher{},
		mcp:   MCPDispatcher{Router: r.Router},
		agent: AgentDispatcher{Registry: registry},
	}

	maxConcurrency := r.MaxConcurrency
	if opts.MaxConcurrency > 0 {
		maxConcurrency = opts.MaxConcurrency
	}

	exec := &Executor{
		Flow:           f,
		Dispatcher:     dispatcher,
		Events:         events,
		Summary:        summary,
		MaxConcurrency: maxConcurrency,
		Metrics:        r.Metrics,
	}

	startedAt := time.Now().UTC()
	result := exec.Run(ctx, rc, p)
	finishedAt := time.Now().UTC()

	runSummary := summary.Build()
	runSummary.StartedAt = startedAt
	runSummary.FinishedAt = finishedAt

	if err := writeSummary(rc.RunDir, runSummary); err != nil {
		return nil, err
	}

	outcome := &Outcome{RunID: rc.RunID, RunDir: rc.RunDir, Plan: p, Summary: runSummary}

	if !result.Success() {
		failures := make(map[string]error, len(result.Failed))
		for _, fail := range result.Failed {
			if fail.Fatal {
				failures[fail.StepID] = fail.Err
			}
		}
		if len(failures) > 0 {
			outcome.Fatal = &flowerrors.FatalExecutionError{Failures: failures}
			return outcome, outcome.Fatal
		}
	}

	return outcome, nil
}

func writeSummary(runDir string, summary *audit.RunSummary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(runDir, "summary.json"), data, 0o644)
}
