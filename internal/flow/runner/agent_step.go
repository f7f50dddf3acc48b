package runner

import (
	"context"

	"github.com/flowctl/flowctl/internal/agents"
	"github.com/flowctl/flowctl/internal/flow"
)

// AgentDispatcher resolves a module:ClassName step against the static
// agents.Registry and invokes it.
type AgentDispatcher struct {
	Registry *agents.Registry
}

func (d AgentDispatcher) Dispatch(ctx context.Context, step *flow.Step, rc *RunContext) (map[string]interface{}, error) {
	registry := d.Registry
	if registry == nil {
		registry = agents.Default
	}

	factory, ok := registry.Lookup(step.Agent.Raw)
	if !ok {
		return nil, agents.ErrUnknownAgent(step.Agent.Raw)
	}

	agent := factory()
	return agent.Run(ctx, agents.Input{
		RunID:        rc.RunID,
		RunDir:       rc.RunDir,
		ArtifactsDir: rc.ArtifactsDir,
		WorkspaceDir: rc.WorkspaceDir,
		Values:       step.Agent.Input,
		Config:       step.Agent.Config,
	})
}
