package runner

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRunContextGeneratesDashlessRunID(t *testing.T) {
	flowDir := t.TempDir()
	rc, err := NewRunContext("./runs/${RUN_ID}", flowDir, "", "")
	require.NoError(t, err)
	assert.NotContains(t, rc.RunID, "-")
	assert.NotEmpty(t, rc.RunID)
}

func TestNewRunContextExpandsOutputDirAndCreatesArtifacts(t *testing.T) {
	flowDir := t.TempDir()
	rc, err := NewRunContext("./runs/${RUN_ID}", flowDir, "", "abc123")
	require.NoError(t, err)

	assert.Equal(t, "abc123", rc.RunID)
	assert.True(t, strings.HasSuffix(rc.RunDir, filepath.Join("runs", "abc123")))
	assert.DirExists(t, rc.ArtifactsDir)
	assert.Equal(t, flowDir, rc.WorkspaceDir)
}

func TestNewRunContextHonorsExplicitWorkspaceDir(t *testing.T) {
	flowDir := t.TempDir()
	ws := t.TempDir()
	rc, err := NewRunContext("./runs/${RUN_ID}", flowDir, ws, "r1")
	require.NoError(t, err)
	assert.Equal(t, ws, rc.WorkspaceDir)
}

func TestNewRunContextAbsoluteOutputDir(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "out")
	flowDir := t.TempDir()
	rc, err := NewRunContext(filepath.Join(abs, "${RUN_ID}"), flowDir, "", "r1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(abs, "r1"), rc.RunDir)
	_ = os.RemoveAll(abs)
}
