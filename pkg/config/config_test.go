package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 1, cfg.MaxToolRounds)
	assert.False(t, cfg.HasServer())
}

func TestLoadFileOverlaysPresentKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := `
model: gpt-4o-mini
max_tool_rounds: 3
request_timeout: 30s
server:
  command: uvx
  args: ["weather-server"]
  env:
    UNITS: metric
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path, DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL, "absent keys keep defaults")
	assert.Equal(t, 3, cfg.MaxToolRounds)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "uvx", cfg.Server.Command)
	assert.Equal(t, []string{"weather-server"}, cfg.Server.Args)
	assert.Equal(t, "metric", cfg.Server.Env["UNITS"])
	assert.True(t, cfg.HasServer())
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("modle: typo\n"), 0o644))

	_, err := LoadFile(path, DefaultConfig())
	require.Error(t, err)
}

func TestLoadFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	cfg, err := LoadFile(path, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), DefaultConfig())
	require.Error(t, err)
}

func TestApplyEnvPrefersGitHubToken(t *testing.T) {
	env := map[string]string{
		"GITHUB_TOKEN":   " gh-token ",
		"OPENAI_API_KEY": "sk-other",
		"OPENAI_MODEL":   "gpt-4.1",
	}
	cfg := ApplyEnv(DefaultConfig(), func(k string) string { return env[k] })

	assert.Equal(t, "gh-token", cfg.APIKey)
	assert.Equal(t, "gpt-4.1", cfg.Model)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
}

func TestApplyEnvFallsBackToOpenAIKey(t *testing.T) {
	env := map[string]string{"OPENAI_API_KEY": "sk-test", "OPENAI_BASE_URL": "http://localhost:8080/v1"}
	cfg := ApplyEnv(DefaultConfig(), func(k string) string { return env[k] })

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "http://localhost:8080/v1", cfg.BaseURL)
}

func TestNormalizeClampsAndTrims(t *testing.T) {
	cfg := Normalize(Config{
		ServerScript:  "  server.py ",
		Model:         " gpt-4o ",
		MaxToolRounds: -2,
		LogLevel:      " DEBUG ",
	})

	assert.Equal(t, "server.py", cfg.ServerScript)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 1, cfg.MaxToolRounds)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerScript = "server.py"
	assert.EqualError(t, Validate(cfg), "GITHUB_TOKEN is not set")

	cfg.APIKey = "token"
	cfg.Model = ""
	assert.EqualError(t, Validate(cfg), "model is not set")

	cfg.Model = DefaultModel
	cfg.ServerScript = ""
	assert.EqualError(t, Validate(cfg), "no MCP server configured")

	cfg.Server.Command = "node"
	assert.NoError(t, Validate(cfg))
}
