package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestEnvFlagSetRejectsMissingEquals(t *testing.T) {
	var f envFlag
	if err := f.Set("UNITS"); err == nil {
		t.Fatal("expected value without '=' to be rejected")
	}
	if err := f.Set("=metric"); err == nil {
		t.Fatal("expected empty key to be rejected")
	}
}

func TestEnvFlagSetAcceptsSingleValue(t *testing.T) {
	var f envFlag
	if err := f.Set("UNITS=metric"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f) != 1 || f[0] != "UNITS=metric" {
		t.Fatalf("unexpected flag values: %#v", f)
	}
}

func TestParseCLIConfigScriptAndEnv(t *testing.T) {
	cfg, err := parseCLIConfig(
		[]string{"-max_tool_rounds", "2", "weather.py"},
		envOf(map[string]string{"GITHUB_TOKEN": "gh-token"}),
		io.Discard,
	)
	require.NoError(t, err)
	assert.Equal(t, "weather.py", cfg.ServerScript)
	assert.Equal(t, "gh-token", cfg.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Model)
	assert.Equal(t, 2, cfg.MaxToolRounds)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseCLIConfigMissingServerIsUsageError(t *testing.T) {
	_, err := parseCLIConfig(nil, envOf(map[string]string{"GITHUB_TOKEN": "x"}), io.Discard)
	assert.ErrorIs(t, err, errUsage)
}

func TestParseCLIConfigMissingToken(t *testing.T) {
	_, err := parseCLIConfig([]string{"server.js"}, envOf(nil), io.Discard)
	require.EqualError(t, err, "GITHUB_TOKEN is not set")
}

func TestParseCLIConfigFlagsOverrideFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := "model: from-file\nrequest_timeout: 10s\nserver:\n  command: uvx\n  args: [weather]\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := parseCLIConfig(
		[]string{"-config", path, "-model", "from-flag", "-server_env", "UNITS=metric", "-verbose"},
		envOf(map[string]string{"GITHUB_TOKEN": "t", "OPENAI_MODEL": "from-env"}),
		io.Discard,
	)
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Model)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "uvx", cfg.Server.Command)
	assert.Equal(t, []string{"weather"}, cfg.Server.Args)
	assert.Equal(t, "metric", cfg.Server.Env["UNITS"])
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseCLIConfigServerCommand(t *testing.T) {
	cfg, err := parseCLIConfig(
		[]string{"-server_cmd", "npx", "--", "-y", "@modelcontextprotocol/server-everything"},
		envOf(map[string]string{"OPENAI_API_KEY": "sk"}),
		io.Discard,
	)
	require.NoError(t, err)
	assert.Empty(t, cfg.ServerScript)
	assert.Equal(t, "npx", cfg.Server.Command)
	assert.Equal(t, []string{"-y", "@modelcontextprotocol/server-everything"}, cfg.Server.Args)
}

func TestParseCLIConfigExplicitEnvFileMustExist(t *testing.T) {
	_, err := parseCLIConfig(
		[]string{"-env_file", filepath.Join(t.TempDir(), "missing.env"), "server.py"},
		envOf(map[string]string{"GITHUB_TOKEN": "t"}),
		io.Discard,
	)
	require.Error(t, err)
}
