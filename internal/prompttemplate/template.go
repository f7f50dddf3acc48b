// Package prompttemplate resolves the single-brace interpolation syntax used
// by MCP steps: {run_id}, {run_dir}, {artifacts_dir}, and {variables.*}.
package prompttemplate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// Context supplies the values substituted into a prompt template.
type Context struct {
	RunID        string
	RunDir       string
	ArtifactsDir string
	FlowDir      string
	WorkspaceDir string
	Variables    map[string]interface{}
}

// Resolve substitutes every {placeholder} in tmpl. Built-ins are run_id,
// run_dir, artifacts_dir; anything else is looked up in variables. A
// variable whose resolved string value looks like a path is additionally
// resolved against run dir, then flow dir, then workspace dir (first
// existing wins; otherwise the run-dir candidate is kept).
func Resolve(tmpl string, c Context) string {
	return placeholderRe.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := match[1 : len(match)-1]

		switch name {
		case "run_id":
			return c.RunID
		case "run_dir":
			return c.RunDir
		case "artifacts_dir":
			return c.ArtifactsDir
		}

		const prefix = "variables."
		if !strings.HasPrefix(name, prefix) {
			return match
		}
		key := strings.TrimPrefix(name, prefix)
		val, ok := c.Variables[key]
		if !ok {
			return match
		}

		str := toString(val)
		if LooksLikePath(str) {
			return resolveAgainstDirs(str, c.RunDir, c.FlowDir, c.WorkspaceDir)
		}
		return str
	})
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// LooksLikePath implements the §4.6/§9 path-detection heuristic: a string
// "looks like a path" if it has a directory separator, begins with ~, ./,
// ../, or a drive letter, or has a non-numeric suffix/stem that isn't a URL.
// Pure numeric literals and URLs are preserved untouched.
func LooksLikePath(s string) bool {
	if s == "" {
		return false
	}
	if isURL(s) {
		return false
	}
	if isNumericLiteral(s) {
		return false
	}
	if strings.ContainsAny(s, "/\\") {
		return true
	}
	if strings.HasPrefix(s, "~") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") {
		return true
	}
	if isDriveLetterPath(s) {
		return true
	}
	// A bare filename like "data.json" has a non-numeric stem and a suffix;
	// treat it as a path candidate only if it has an extension.
	if ext := filepath.Ext(s); ext != "" && ext != s {
		return true
	}
	return false
}

func isURL(s string) bool {
	for _, scheme := range []string{"http://", "https://", "ftp://", "s3://"} {
		if strings.HasPrefix(s, scheme) {
			return true
		}
	}
	return false
}

func isNumericLiteral(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

func isDriveLetterPath(s string) bool {
	return len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') &&
		((s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z'))
}

// resolveAgainstDirs returns the first of runDir/s, flowDir/s, workspaceDir/s
// that exists on disk, falling back to the run-dir candidate.
func resolveAgainstDirs(s, runDir, flowDir, workspaceDir string) string {
	expanded := s
	if strings.HasPrefix(s, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			expanded = filepath.Join(home, strings.TrimPrefix(s, "~"))
		}
	}
	if filepath.IsAbs(expanded) {
		return expanded
	}

	candidates := []string{
		filepath.Join(runDir, expanded),
		filepath.Join(flowDir, expanded),
		filepath.Join(workspaceDir, expanded),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}
