// Package skills implements the Skill Registry & Matcher and the Skill
// Execution Guard of spec §4.9/§4.10: frontmatter indexing, BM25 ranking,
// and hash+allowlist-gated subprocess execution.
package skills

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Entry is one row of skills/registry.json.
type Entry struct {
	Name      string   `json:"name"`
	Path      string   `json:"path"`
	Owner     string   `json:"owner"`
	Tags      []string `json:"tags"`
	Enabled   bool     `json:"enabled"`
	AllowExec bool     `json:"allow_exec"`
}

// Skill is an indexed SKILL.md document joined with its registry entry.
type Skill struct {
	Entry       Entry
	Dir         string // directory containing SKILL.md, relative to the skills root
	Description string
	Body        string
}

// frontmatter is the only shape SKILL.md's YAML frontmatter may take; any
// other key is rejected.
type frontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

const (
	maxNameLen        = 80
	maxDescriptionLen = 500
)

// LoadRegistry reads skills/registry.json from root.
func LoadRegistry(root string) ([]Entry, error) {
	data, err := os.ReadFile(filepath.Join(root, "registry.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("skills: parse registry.json: %w", err)
	}
	return entries, nil
}

// Discover globs every SKILL.md under root (typically "<workspace>/skills")
// and "<workspace>/agents/**/skills/", skipping hidden/underscored path
// segments, and joins each against its registry.Entry by directory.
func Discover(workspaceDir string) ([]Skill, error) {
	skillsRoot := filepath.Join(workspaceDir, "skills")
	entries, err := LoadRegistry(skillsRoot)
	if err != nil {
		return nil, err
	}
	byPath := make(map[string]Entry, len(entries))
	for _, e := range entries {
		byPath[filepath.Clean(e.Path)] = e
	}

	var matches []string
	for _, pattern := range []string{
		filepath.Join(skillsRoot, "**", "SKILL.md"),
		filepath.Join(workspaceDir, "agents", "**", "skills", "**", "SKILL.md"),
	} {
		found, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}
		matches = append(matches, found...)
	}

	var out []Skill
	for _, m := range matches {
		if isHiddenOrUnderscored(m, workspaceDir) {
			continue
		}
		dir := filepath.Dir(m)
		fm, body, err := parseSkillFile(m)
		if err != nil {
			return nil, fmt.Errorf("skills: %s: %w", m, err)
		}

		rel, _ := filepath.Rel(workspaceDir, dir)
		entry, ok := byPath[filepath.Clean(rel)]
		if !ok {
			entry = Entry{Name: fm.Name, Path: rel, Enabled: true}
		}

		out = append(out, Skill{Entry: entry, Dir: dir, Description: fm.Description, Body: body})
	}
	return out, nil
}

func isHiddenOrUnderscored(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, seg := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(seg, ".") || strings.HasPrefix(seg, "_") {
			return true
		}
	}
	return false
}

// parseSkillFile splits a SKILL.md's YAML frontmatter from its body and
// validates the frontmatter contains only name/description.
func parseSkillFile(path string) (frontmatter, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return frontmatter{}, "", err
	}

	text := string(data)
	const delim = "---"
	if !strings.HasPrefix(text, delim) {
		return frontmatter{}, "", fmt.Errorf("missing frontmatter delimiter")
	}
	rest := text[len(delim):]
	end := strings.Index(rest, delim)
	if end < 0 {
		return frontmatter{}, "", fmt.Errorf("unterminated frontmatter")
	}
	rawFM := rest[:end]
	body := strings.TrimSpace(rest[end+len(delim):])

	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(rawFM), &raw); err != nil {
		return frontmatter{}, "", fmt.Errorf("parse frontmatter: %w", err)
	}
	for k := range raw {
		if k != "name" && k != "description" {
			return frontmatter{}, "", fmt.Errorf("frontmatter key %q is not allowed", k)
		}
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(rawFM), &fm); err != nil {
		return frontmatter{}, "", err
	}
	if len(fm.Name) > maxNameLen {
		return frontmatter{}, "", fmt.Errorf("name exceeds %d characters", maxNameLen)
	}
	if len(fm.Description) > maxDescriptionLen {
		return frontmatter{}, "", fmt.Errorf("description exceeds %d characters", maxDescriptionLen)
	}

	return fm, body, nil
}
