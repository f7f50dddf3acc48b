package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flowctl/flowctl/internal/flow/schema"
	"github.com/flowctl/flowctl/internal/flowerrors"
)

type rawFlow struct {
	Version    int                    `yaml:"version" json:"version"`
	Run        rawRun                 `yaml:"run" json:"run"`
	AgentPaths []string               `yaml:"agent_paths" json:"agent_paths"`
	Steps      []rawStep              `yaml:"steps" json:"steps"`
	Schema     map[string]interface{} `yaml:"schema" json:"schema"`
}

type rawRun struct {
	OutputDir string `yaml:"output_dir" json:"output_dir"`
}

type rawPolicy struct {
	Model        string `yaml:"model" json:"model"`
	PromptLimit  int    `yaml:"prompt_limit" json:"prompt_limit"`
	PromptBuffer int    `yaml:"prompt_buffer" json:"prompt_buffer"`
	Sandbox      string `yaml:"sandbox" json:"sandbox"`
}

type rawSave struct {
	Text string `yaml:"text" json:"text"`
}

type rawStep struct {
	ID              string                 `yaml:"id" json:"id"`
	Uses            string                 `yaml:"uses" json:"uses"`
	Run             string                 `yaml:"run" json:"run"`
	Input           map[string]interface{} `yaml:"input" json:"input"`
	Policy          *rawPolicy             `yaml:"policy" json:"policy"`
	Config          map[string]interface{} `yaml:"config" json:"config"`
	Save            *rawSave               `yaml:"save" json:"save"`
	DependsOn       []string               `yaml:"depends_on" json:"depends_on"`
	TimeoutSec      int                    `yaml:"timeout_sec" json:"timeout_sec"`
	Retries         int                    `yaml:"retries" json:"retries"`
	ContinueOnError bool                   `yaml:"continue_on_error" json:"continue_on_error"`
}

// LoadOptions controls validation behavior.
type LoadOptions struct {
	// DevFast skips JSON-Schema validation and the unknown top-level key check.
	DevFast bool
}

// Load reads, parses, (optionally) schema-validates, and normalizes a flow
// document. YAML and JSON are both accepted; JSON is a subset of YAML so a
// single yaml.Unmarshal handles both.
func Load(path string, opts LoadOptions) (*Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &flowerrors.LoadError{Path: path, Reason: "read file", Cause: err}
	}

	var raw rawFlow
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &flowerrors.LoadError{Path: path, Reason: "parse document", Cause: err}
	}

	if !opts.DevFast {
		var top map[string]interface{}
		if err := yaml.Unmarshal(data, &top); err == nil {
			known := map[string]bool{"version": true, "run": true, "agent_paths": true, "steps": true, "schema": true}
			for key := range top {
				if !known[key] {
					return nil, &flowerrors.LoadError{Path: path, Reason: fmt.Sprintf("unrecognized top-level key %q", key)}
				}
			}
		}
	}

	if !opts.DevFast && raw.Schema != nil {
		if err := validateAgainstSchema(raw, raw.Schema); err != nil {
			return nil, &flowerrors.LoadError{Path: path, Reason: "schema validation", Cause: err}
		}
	}

	return normalize(path, raw)
}

func validateAgainstSchema(raw rawFlow, docSchema map[string]interface{}) error {
	// Round-trip through JSON so the validator sees the same
	// map[string]interface{}/[]interface{} shapes a JSON decoder would
	// produce, regardless of whether the source was YAML or JSON.
	buf, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	var data interface{}
	if err := json.Unmarshal(buf, &data); err != nil {
		return err
	}
	return schema.NewValidator().Validate(docSchema, data)
}

func normalize(path string, raw rawFlow) (*Flow, error) {
	if raw.Version != 1 {
		return nil, &flowerrors.LoadError{Path: path, Reason: fmt.Sprintf("unsupported version %d, expected 1", raw.Version)}
	}
	if raw.Run.OutputDir == "" {
		return nil, &flowerrors.LoadError{Path: path, Reason: "run.output_dir is required"}
	}
	if len(raw.Steps) == 0 {
		return nil, &flowerrors.LoadError{Path: path, Reason: "steps must not be empty"}
	}

	flowDir := filepath.Dir(path)

	flow := &Flow{
		Version:    raw.Version,
		OutputDir:  raw.Run.OutputDir,
		AgentPaths: raw.AgentPaths,
		Steps:      make([]*Step, 0, len(raw.Steps)),
		StepIndex:  make(map[string]int, len(raw.Steps)),
	}

	seen := make(map[string]bool, len(raw.Steps))
	for i, rs := range raw.Steps {
		if rs.ID == "" {
			return nil, &flowerrors.LoadError{Path: path, Reason: fmt.Sprintf("step at index %d has an empty id", i)}
		}
		if seen[rs.ID] {
			return nil, &flowerrors.LoadError{Path: path, Reason: fmt.Sprintf("duplicate step id %q", rs.ID)}
		}
		seen[rs.ID] = true

		step, err := normalizeStep(flowDir, rs)
		if err != nil {
			return nil, &flowerrors.LoadError{Path: path, Reason: err.Error()}
		}

		flow.StepIndex[step.ID] = i
		flow.Steps = append(flow.Steps, step)
	}

	for _, step := range flow.Steps {
		for _, dep := range step.DependsOn {
			if _, ok := flow.StepIndex[dep]; !ok {
				return nil, &flowerrors.LoadError{Path: path, Reason: fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep)}
			}
		}
	}

	return flow, nil
}

func normalizeStep(flowDir string, rs rawStep) (*Step, error) {
	step := &Step{
		ID:              rs.ID,
		DependsOn:       rs.DependsOn,
		TimeoutSec:      rs.TimeoutSec,
		Retries:         rs.Retries,
		ContinueOnError: rs.ContinueOnError,
	}
	if step.TimeoutSec == 0 {
		step.TimeoutSec = 60
	}
	if step.TimeoutSec < 1 {
		return nil, fmt.Errorf("step %q: timeout_sec must be >= 1", rs.ID)
	}
	if step.Retries < 0 {
		return nil, fmt.Errorf("step %q: retries must be >= 0", rs.ID)
	}

	switch {
	case rs.Uses == string(UsesShell):
		if rs.Run == "" {
			return nil, fmt.Errorf("step %q: uses: shell requires run", rs.ID)
		}
		step.Uses = UsesShell
		step.Shell = &ShellUses{Run: rs.Run}

	case rs.Uses == string(UsesMCP):
		mcp, err := normalizeMCP(rs)
		if err != nil {
			return nil, fmt.Errorf("step %q: %w", rs.ID, err)
		}
		step.Uses = UsesMCP
		step.MCP = mcp

	case strings.Contains(rs.Uses, ":"):
		parts := strings.SplitN(rs.Uses, ":", 2)
		className := parts[1]
		if className == "" {
			return nil, fmt.Errorf("step %q: uses %q is missing a class name", rs.ID, rs.Uses)
		}
		step.Uses = UsesAgent
		step.Agent = &AgentUses{
			Raw:    rs.Uses,
			Name:   className,
			Input:  rs.Input,
			Config: rs.Config,
		}

	default:
		return nil, fmt.Errorf("step %q: unknown step kind %q", rs.ID, rs.Uses)
	}

	_ = flowDir // prompt_from resolution happens at execution time (runner has access to the workspace dir too)
	return step, nil
}

func normalizeMCP(rs rawStep) (*MCPUses, error) {
	prompt, _ := rs.Input["prompt"].(string)
	promptFrom, _ := rs.Input["prompt_from"].(string)
	if prompt == "" && promptFrom == "" {
		return nil, fmt.Errorf("uses: mcp requires input.prompt or input.prompt_from")
	}

	variables, _ := rs.Input["variables"].(map[string]interface{})

	policy := MCPPolicy{Sandbox: "read-only"}
	if rs.Policy != nil {
		policy = MCPPolicy{
			Model:        rs.Policy.Model,
			PromptLimit:  rs.Policy.PromptLimit,
			PromptBuffer: rs.Policy.PromptBuffer,
			Sandbox:      rs.Policy.Sandbox,
		}
	}
	if policy.PromptLimit <= policy.PromptBuffer {
		return nil, fmt.Errorf("policy.prompt_limit (%d) must be greater than policy.prompt_buffer (%d)", policy.PromptLimit, policy.PromptBuffer)
	}

	saveText := ""
	if rs.Save != nil {
		saveText = rs.Save.Text
	}

	return &MCPUses{
		Prompt:     prompt,
		PromptFrom: promptFrom,
		Variables:  variables,
		Policy:     policy,
		Config:     rs.Config,
		SaveText:   saveText,
	}, nil
}
