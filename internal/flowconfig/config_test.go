package flowconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("FLOWCTL_BASE_OUTPUT_DIR", "")
	t.Setenv("MCP_MAX_SESSIONS", "")
	t.Setenv("ENV", "")

	cfg := FromEnv()
	assert.Equal(t, "./runs/${RUN_ID}", cfg.BaseOutputDir)
	assert.Equal(t, 5, cfg.MCPMaxSessions)
	assert.False(t, cfg.IsProduction())
	assert.False(t, cfg.SkillsExec)
	assert.Equal(t, "default", cfg.SkillSandbox)
}

func TestFromEnvSkillsExecOverride(t *testing.T) {
	t.Setenv("FLOWCTL_SKILLS_EXEC", "true")
	t.Setenv("SKILL_SANDBOX", "ci")

	cfg := FromEnv()
	assert.True(t, cfg.SkillsExec)
	assert.Equal(t, "ci", cfg.SkillSandbox)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MCP_MAX_SESSIONS", "9")
	t.Setenv("MCP_BACKOFF_BASE_SEC", "1.5")
	t.Setenv("ENV", "production")

	cfg := FromEnv()
	assert.Equal(t, 9, cfg.MCPMaxSessions)
	assert.Equal(t, 1.5, cfg.MCPBackoffBaseSec)
	assert.True(t, cfg.IsProduction())
}

func TestFromEnvInvalidIntFallsBackToDefault(t *testing.T) {
	t.Setenv("MCP_MAX_RETRIES", "not-a-number")
	cfg := FromEnv()
	assert.Equal(t, 2, cfg.MCPMaxRetries)
}
