package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, dir, frontmatter, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	content := "---\n" + frontmatter + "---\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0o644))
}

func TestDiscoverFindsSkillsUnderSkillsRoot(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills", "triage"),
		"name: triage\ndescription: Triage an incident\n", "Run the triage checklist.")

	found, err := Discover(ws)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "triage", found[0].Entry.Name)
	assert.Equal(t, "Triage an incident", found[0].Description)
	assert.Contains(t, found[0].Body, "triage checklist")
}

func TestDiscoverSkipsHiddenAndUnderscoredDirs(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills", ".hidden"), "name: a\ndescription: b\n", "x")
	writeSkill(t, filepath.Join(ws, "skills", "_draft"), "name: a\ndescription: b\n", "x")
	writeSkill(t, filepath.Join(ws, "agents", "reviewer", "skills", "lint"),
		"name: lint\ndescription: Lint code\n", "Runs the linter.")

	found, err := Discover(ws)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "lint", found[0].Entry.Name)
}

func TestDiscoverJoinsRegistryEntry(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills", "triage"),
		"name: triage\ndescription: Triage an incident\n", "body")
	registry := `[{"name":"triage","path":"triage","owner":"sre","tags":["ops"],"enabled":true,"allow_exec":true}]`
	require.NoError(t, os.WriteFile(filepath.Join(ws, "skills", "registry.json"), []byte(registry), 0o644))

	found, err := Discover(ws)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.True(t, found[0].Entry.AllowExec)
	assert.Equal(t, "sre", found[0].Entry.Owner)
	assert.Equal(t, []string{"ops"}, found[0].Entry.Tags)
}

func TestParseSkillFileRejectsUnknownFrontmatterKey(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, filepath.Join(ws, "skills", "bad"),
		"name: bad\ndescription: d\nversion: 2\n", "body")

	_, err := Discover(ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestParseSkillFileRejectsOversizedFields(t *testing.T) {
	ws := t.TempDir()
	longName := ""
	for i := 0; i < maxNameLen+1; i++ {
		longName += "a"
	}
	writeSkill(t, filepath.Join(ws, "skills", "big"),
		"name: "+longName+"\ndescription: d\n", "body")

	_, err := Discover(ws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name exceeds")
}

func TestLoadRegistryReturnsNilWhenAbsent(t *testing.T) {
	entries, err := LoadRegistry(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}
