// Package flow defines the flow document model: the parsed, validated,
// immutable representation of a YAML/JSON flow file.
package flow

// UsesKind distinguishes the three step variants.
type UsesKind string

const (
	UsesShell UsesKind = "shell"
	UsesMCP   UsesKind = "mcp"
	UsesAgent UsesKind = "agent"
)

// Flow is the normalized, immutable flow document consumed by the planner
// and runner.
type Flow struct {
	Version    int
	OutputDir  string
	AgentPaths []string
	Steps      []*Step
	// StepIndex maps id -> declaration order position, used by the planner
	// for continue_from ordering.
	StepIndex map[string]int
}

// Step is one node of the DAG, in declaration order.
type Step struct {
	ID               string
	Uses             UsesKind
	DependsOn        []string
	TimeoutSec       int
	Retries          int
	ContinueOnError  bool

	Shell *ShellUses
	MCP   *MCPUses
	Agent *AgentUses
}

// ShellUses is the payload of a uses: shell step.
type ShellUses struct {
	Run string
}

// MCPPolicy carries the admission/model policy of a uses: mcp step.
type MCPPolicy struct {
	Model        string
	PromptLimit  int
	PromptBuffer int
	Sandbox      string // "read-only" | "read-write"
}

// MCPUses is the payload of a uses: mcp step.
type MCPUses struct {
	Prompt     string
	PromptFrom string
	Variables  map[string]interface{}
	Policy     MCPPolicy
	Config     map[string]interface{}
	SaveText   string
}

// RouterRetries returns the config's router_retries override, if set, and
// whether it was present. router_retries is stripped from the config map
// passed on to the provider.
func (m *MCPUses) RouterRetries() (int, bool) {
	if m.Config == nil {
		return 0, false
	}
	v, ok := m.Config["router_retries"]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// AgentUses is the payload of a uses: module:ClassName step.
type AgentUses struct {
	Raw    string // the full "module:ClassName" string, the agents.Registry key
	Name   string // the ClassName component, used only for display/logging
	Input  map[string]interface{}
	Config map[string]interface{}
}
