// Package agents implements the static, in-process registry that resolves
// module:ClassName step declarations to Go implementations (spec §9's
// redesign of the original dynamic-import mechanism).
package agents

import "context"

// Input is the per-invocation context passed to an Agent, mirroring the
// external agent contract of spec §6: run identifiers, a workspace rooted
// in the run, and the step's declared input/config.
type Input struct {
	RunID        string
	RunDir       string
	ArtifactsDir string
	WorkspaceDir string
	Values       map[string]interface{}
	Config       map[string]interface{}
}

// Agent is the contract every module:ClassName step target implements.
type Agent interface {
	Run(ctx context.Context, in Input) (map[string]interface{}, error)
}

// Factory constructs a fresh Agent instance for one step dispatch.
type Factory func() Agent
