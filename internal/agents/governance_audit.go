package agents

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

func init() {
	Register("builtin:GovernanceAudit", NewGovernanceAuditAgent)
}

// GovernanceAuditAgent checks the existence and modification time of a
// declared set of governance artifacts (CODEOWNERS, SECURITY.md, and the
// like) under the workspace, reporting any that are missing or stale.
// Grounded on spec.md's own example use case for the dynamic agent step.
type GovernanceAuditAgent struct{}

// NewGovernanceAuditAgent is the Factory registered under
// "builtin:GovernanceAudit".
func NewGovernanceAuditAgent() Agent { return &GovernanceAuditAgent{} }

// ArtifactReport is the per-file outcome of a governance audit.
type ArtifactReport struct {
	Path    string `json:"path"`
	Present bool   `json:"present"`
	Stale   bool   `json:"stale,omitempty"`
	AgeDays int    `json:"age_days,omitempty"`
}

func (a *GovernanceAuditAgent) Run(ctx context.Context, in Input) (map[string]interface{}, error) {
	artifacts := stringSlice(in.Values["artifacts"])
	if len(artifacts) == 0 {
		artifacts = []string{"CODEOWNERS", "SECURITY.md", "CONTRIBUTING.md"}
	}

	maxAgeDays := 180
	if v, ok := in.Config["max_age_days"]; ok {
		if n, ok := toInt(v); ok {
			maxAgeDays = n
		}
	}

	reports := make([]ArtifactReport, 0, len(artifacts))
	missing, stale := 0, 0

	for _, rel := range artifacts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		full := filepath.Join(in.WorkspaceDir, rel)
		info, err := os.Stat(full)
		if err != nil {
			reports = append(reports, ArtifactReport{Path: rel, Present: false})
			missing++
			continue
		}

		ageDays := int(time.Since(info.ModTime()).Hours() / 24)
		isStale := ageDays > maxAgeDays
		if isStale {
			stale++
		}
		reports = append(reports, ArtifactReport{Path: rel, Present: true, Stale: isStale, AgeDays: ageDays})
	}

	return map[string]interface{}{
		"artifacts": reports,
		"missing":   missing,
		"stale":     stale,
		"ok":        missing == 0 && stale == 0,
	}, nil
}

func stringSlice(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toInt(v interface{}) (int, bool) {
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
