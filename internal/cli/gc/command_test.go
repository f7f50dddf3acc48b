package gc

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRunDir(t *testing.T, baseDir, name string, mtime time.Time) string {
	t.Helper()
	dir := filepath.Join(baseDir, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.Chtimes(dir, mtime, mtime))
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGCKeepsOnlyMostRecentN(t *testing.T) {
	baseDir := t.TempDir()
	now := time.Now()
	makeRunDir(t, baseDir, "oldest", now)
	makeRunDir(t, baseDir, "middle", now.Add(time.Minute))
	makeRunDir(t, baseDir, "newest", now.Add(2*time.Minute))

	_, err := execute(t, "--base-dir", baseDir, "--keep", "2")
	require.NoError(t, err)

	remaining, err := os.ReadDir(baseDir)
	require.NoError(t, err)
	var names []string
	for _, e := range remaining {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"middle", "newest"}, names)
}

func TestGCDryRunDoesNotDelete(t *testing.T) {
	baseDir := t.TempDir()
	now := time.Now()
	makeRunDir(t, baseDir, "a", now)
	makeRunDir(t, baseDir, "b", now.Add(time.Minute))

	out, err := execute(t, "--base-dir", baseDir, "--keep", "1", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would remove")

	remaining, err := os.ReadDir(baseDir)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestGCOnMissingBaseDirIsNoOp(t *testing.T) {
	_, err := execute(t, "--base-dir", filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
}
