// Package main provides an interactive chat client that lets a hosted model
// call the tools of a local MCP server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/minhyannv/mcp-client-go/pkg/agent"
	configpkg "github.com/minhyannv/mcp-client-go/pkg/config"
	loggerpkg "github.com/minhyannv/mcp-client-go/pkg/logger"
	"github.com/minhyannv/mcp-client-go/pkg/mcpclient"
	"golang.org/x/term"
)

// main is the program entry point.
func main() {
	cfg, err := parseCLIConfig(os.Args[1:], os.Getenv, os.Stderr)
	if err != nil {
		switch {
		case errors.Is(err, flag.ErrHelp):
			os.Exit(0)
		case errors.Is(err, errUsage):
			_, _ = fmt.Fprintln(os.Stderr, usageLine)
		default:
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// A second interrupt during shutdown kills the process.
		<-ctx.Done()
		stop()
	}()

	if err := run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// run connects to the server, builds the agent loop and serves the REPL.
// The server subprocess is stopped on every return path.
func run(ctx context.Context, cfg configpkg.Config, stdin *os.File, stdout, stderr io.Writer) error {
	appLogger := loggerpkg.NewWriterLoggerLevel(stderr, cfg.LogLevel)

	server, err := serverFromConfig(cfg)
	if err != nil {
		return err
	}
	session, err := mcpclient.Launch(ctx, server, mcpclient.Options{
		Logger:  appLogger,
		Verbose: cfg.Verbose,
		Stderr:  stderr,
	})
	if err != nil {
		return fmt.Errorf("connect to server: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			loggerpkg.Warn(appLogger, "close mcp session", map[string]any{"error": err.Error()})
		}
	}()

	app, err := agent.New(cfg, session, agent.WithLogger(appLogger))
	if err != nil {
		return err
	}
	if err := app.RefreshTools(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "\nConnected to server with tools: %s\n", formatToolNames(app.ToolNames()))

	return runREPL(ctx, app, replOptions{
		Interactive: term.IsTerminal(int(stdin.Fd())),
		Verbose:     cfg.Verbose,
		Logger:      appLogger,
	}, stdin, stdout)
}

// serverFromConfig turns the configured script or command into a Server.
func serverFromConfig(cfg configpkg.Config) (mcpclient.Server, error) {
	if cfg.Server.Command != "" {
		return mcpclient.Server{
			Command: cfg.Server.Command,
			Args:    cfg.Server.Args,
			Env:     cfg.Server.Env,
		}, nil
	}
	server, err := mcpclient.ResolveServer(cfg.ServerScript)
	if err != nil {
		return mcpclient.Server{}, err
	}
	server.Env = cfg.Server.Env
	return server, nil
}
