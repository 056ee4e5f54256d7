package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	configpkg "github.com/minhyannv/mcp-client-go/pkg/config"
)

const usageLine = "Usage: mcp-client-go [flags] <path_to_server_script>"

// errUsage means no server was given on the command line or in the config file.
var errUsage = errors.New("missing server script")

// parseCLIConfig loads .env, the optional YAML file, the environment and
// flags, in increasing order of precedence.
func parseCLIConfig(args []string, getenv func(string) string, stderr io.Writer) (configpkg.Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	defaults := configpkg.DefaultConfig()

	fs := flag.NewFlagSet("mcp-client-go", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintln(fs.Output(), usageLine)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "YAML config file")
	envFile := fs.String("env_file", ".env", "dotenv file to load before reading the environment")
	model := fs.String("model", defaults.Model, "Chat model name (env OPENAI_MODEL)")
	baseURL := fs.String("base_url", defaults.BaseURL, "Chat completion endpoint (env OPENAI_BASE_URL)")
	systemPrompt := fs.String("system_prompt", "", "Optional system prompt")
	maxToolRounds := fs.Int("max_tool_rounds", defaults.MaxToolRounds, "Tool-call rounds allowed per query")
	timeout := fs.Duration("timeout", defaults.RequestTimeout, "Timeout for one completion request")
	verbose := fs.Bool("verbose", defaults.Verbose, "Verbose tool-call logging")
	logLevel := fs.String("log_level", defaults.LogLevel, "Log level: debug, info, warn, error")
	serverCmd := fs.String("server_cmd", "", "Run this command as the MCP server; positional arguments become its arguments")
	serverEnv := make(envFlag, 0)
	fs.Var(&serverEnv, "server_env", "KEY=VALUE passed to the server. Repeat this flag for multiple variables")

	if err := fs.Parse(args); err != nil {
		return configpkg.Config{}, err
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if err := godotenv.Load(*envFile); err != nil && set["env_file"] {
		return configpkg.Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := defaults
	if *configPath != "" {
		loaded, err := configpkg.LoadFile(*configPath, cfg)
		if err != nil {
			return configpkg.Config{}, err
		}
		cfg = loaded
	}
	cfg = configpkg.ApplyEnv(cfg, getenv)

	if set["model"] {
		cfg.Model = *model
	}
	if set["base_url"] {
		cfg.BaseURL = *baseURL
	}
	if set["system_prompt"] {
		cfg.SystemPrompt = *systemPrompt
	}
	if set["max_tool_rounds"] {
		cfg.MaxToolRounds = *maxToolRounds
	}
	if set["timeout"] {
		cfg.RequestTimeout = *timeout
	}
	if set["verbose"] {
		cfg.Verbose = *verbose
	}
	if set["log_level"] {
		cfg.LogLevel = *logLevel
	}
	if cfg.Verbose && !set["log_level"] {
		cfg.LogLevel = "debug"
	}

	positional := fs.Args()
	if strings.TrimSpace(*serverCmd) != "" {
		cfg.ServerScript = ""
		cfg.Server.Command = *serverCmd
		cfg.Server.Args = positional
	} else if len(positional) > 0 {
		cfg.ServerScript = positional[0]
		cfg.Server = configpkg.ServerConfig{Env: cfg.Server.Env}
	}
	if len(serverEnv) > 0 {
		if cfg.Server.Env == nil {
			cfg.Server.Env = map[string]string{}
		}
		for _, kv := range serverEnv {
			k, v, _ := strings.Cut(kv, "=")
			cfg.Server.Env[k] = v
		}
	}

	cfg = configpkg.Normalize(cfg)
	if !cfg.HasServer() {
		return cfg, errUsage
	}
	if err := configpkg.Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// envFlag supports repeatable -server_env KEY=VALUE flags.
type envFlag []string

func (f *envFlag) String() string {
	if f == nil {
		return ""
	}
	return strings.Join(*f, ",")
}

func (f *envFlag) Set(value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("empty server environment variable")
	}
	key, _, ok := strings.Cut(value, "=")
	if !ok || strings.TrimSpace(key) == "" {
		return fmt.Errorf("server environment variable must be KEY=VALUE, got %q", value)
	}
	*f = append(*f, value)
	return nil
}
