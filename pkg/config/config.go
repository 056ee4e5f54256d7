package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultBaseURL is the GitHub Models inference endpoint.
	DefaultBaseURL = "https://models.inference.ai.azure.com"
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o"

	DefaultMaxToolRounds  = 1
	DefaultRequestTimeout = 2 * time.Minute
)

// ServerConfig describes how to start the MCP server subprocess.
type ServerConfig struct {
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// Config holds all runtime configuration for the client.
type Config struct {
	ServerScript string       `yaml:"server_script"`
	Server       ServerConfig `yaml:"server"`

	// APIKey is read from the environment only.
	APIKey  string `yaml:"-"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`

	SystemPrompt   string        `yaml:"system_prompt"`
	MaxToolRounds  int           `yaml:"max_tool_rounds"`
	RequestTimeout time.Duration `yaml:"request_timeout"`

	Verbose  bool   `yaml:"verbose"`
	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns a baseline configuration without side effects.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		Model:          DefaultModel,
		MaxToolRounds:  DefaultMaxToolRounds,
		RequestTimeout: DefaultRequestTimeout,
		Verbose:        false,
		LogLevel:       "info",
	}
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv copies non-empty values from the process environment.
// GITHUB_TOKEN wins over OPENAI_API_KEY.
func ApplyEnv(cfg Config, getenv func(string) string) Config {
	if getenv == nil {
		getenv = os.Getenv
	}
	if v := strings.TrimSpace(getenv("GITHUB_TOKEN")); v != "" {
		cfg.APIKey = v
	} else if v := strings.TrimSpace(getenv("OPENAI_API_KEY")); v != "" {
		cfg.APIKey = v
	}
	if v := strings.TrimSpace(getenv("OPENAI_BASE_URL")); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(getenv("OPENAI_MODEL")); v != "" {
		cfg.Model = v
	}
	return cfg
}

// Normalize sanitizes configuration values and applies defaults.
func Normalize(cfg Config) Config {
	cfg.ServerScript = strings.TrimSpace(cfg.ServerScript)
	cfg.Server.Command = strings.TrimSpace(cfg.Server.Command)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Model = strings.TrimSpace(cfg.Model)
	cfg.SystemPrompt = strings.TrimSpace(cfg.SystemPrompt)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

// HasServer reports whether a server script or command is configured.
func (c Config) HasServer() bool {
	return c.ServerScript != "" || c.Server.Command != ""
}

// Validate checks that the settings needed to start a session are present.
func Validate(cfg Config) error {
	if cfg.APIKey == "" {
		return errors.New("GITHUB_TOKEN is not set")
	}
	if cfg.Model == "" {
		return errors.New("model is not set")
	}
	if !cfg.HasServer() {
		return errors.New("no MCP server configured")
	}
	return nil
}
