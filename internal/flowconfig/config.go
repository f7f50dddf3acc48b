// Package flowconfig reads the environment variables that tune the runner
// and the MCP Router, applying the same defaults spec.md documents.
package flowconfig

import (
	"os"
	"strconv"
)

// Config holds every ambient, environment-sourced tunable.
type Config struct {
	BaseOutputDir  string
	LogFlushEvery  int
	MCPMaxSessions int
	MCPRequestTimeoutSec int
	MCPMaxRetries        int
	MCPBackoffBaseSec    float64
	MCPLogFlushEvery     int
	Env                  string
	SkillsExec           bool
	SkillSandbox         string
}

// FromEnv reads FLOWCTL_*/MCP_*/ENV with spec-documented defaults.
func FromEnv() *Config {
	return &Config{
		BaseOutputDir:        getString("FLOWCTL_BASE_OUTPUT_DIR", "./runs/${RUN_ID}"),
		LogFlushEvery:        getInt("FLOWCTL_LOG_FLUSH_EVERY", 50),
		MCPMaxSessions:       getInt("MCP_MAX_SESSIONS", 5),
		MCPRequestTimeoutSec: getInt("MCP_REQUEST_TIMEOUT_SEC", 120),
		MCPMaxRetries:        getInt("MCP_MAX_RETRIES", 2),
		MCPBackoffBaseSec:    getFloat("MCP_BACKOFF_BASE_SEC", 0.5),
		MCPLogFlushEvery:     getInt("MCP_LOG_FLUSH_EVERY", 50),
		Env:                  getString("ENV", "development"),
		SkillsExec:           getBool("FLOWCTL_SKILLS_EXEC", false),
		SkillSandbox:         getString("SKILL_SANDBOX", "default"),
	}
}

// IsProduction reports whether ENV=production.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
