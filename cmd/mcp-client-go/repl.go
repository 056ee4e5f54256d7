package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minhyannv/mcp-client-go/pkg/agent"
	loggerpkg "github.com/minhyannv/mcp-client-go/pkg/logger"
)

// chatAgent is the part of *agent.AgentLoop the REPL drives.
type chatAgent interface {
	Run(ctx context.Context, query string) (agent.Reply, error)
	Reset()
	ToolNames() []string
}

// replOptions configures REPL behavior.
type replOptions struct {
	// Interactive shows the input prompt; off when stdin is not a terminal.
	Interactive bool
	Verbose     bool
	Logger      loggerpkg.Logger
}

// runREPL reads queries line by line until quit, EOF or cancellation. A
// failed query is reported and the loop continues.
func runREPL(ctx context.Context, app chatAgent, opts replOptions, in io.Reader, out io.Writer) error {
	if app == nil {
		return fmt.Errorf("agent loop is required")
	}
	if in == nil {
		return fmt.Errorf("input reader is required")
	}
	if out == nil {
		out = io.Discard
	}

	loggerpkg.Debug(opts.Verbose, opts.Logger, "repl start", map[string]any{"interactive": opts.Interactive})

	lines, readErr, stopReading := readLines(in)
	defer stopReading()
	printWelcome(out)

	for ctx.Err() == nil {
		if opts.Interactive {
			_, _ = fmt.Fprint(out, "\nQuery: ")
		}
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			line = l
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "quit") {
			break
		}

		if strings.HasPrefix(input, "/") {
			if shouldQuit := handleCommand(input, app, out); shouldQuit {
				break
			}
			continue
		}

		reply, err := app.Run(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			_, _ = fmt.Fprintf(out, "\nError: %v\n", err)
			continue
		}
		_, _ = fmt.Fprintf(out, "\n%s\n", reply.Text())
	}
	return nil
}

// readLines scans in on its own goroutine so a blocked read never delays
// cancellation. lines is closed at EOF, after the scan error (possibly nil)
// is sent on errc. stop releases the goroutine once it can deliver again; a
// read that never returns keeps it parked until the process exits.
func readLines(in io.Reader) (lines <-chan string, errc <-chan error, stop func()) {
	out := make(chan string)
	errs := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-done:
				return
			}
		}
		errs <- scanner.Err()
	}()
	var once sync.Once
	return out, errs, func() { once.Do(func() { close(done) }) }
}

func printWelcome(out io.Writer) {
	_, _ = fmt.Fprintln(out, "\nMCP Client Started!")
	_, _ = fmt.Fprintln(out, "Type your queries or 'quit' to exit.")
	_, _ = fmt.Fprintln(out, "Type /help for commands.")
}

// handleCommand runs a slash command and reports whether the REPL should stop.
func handleCommand(input string, app chatAgent, out io.Writer) bool {
	cmd := strings.ToLower(input)
	switch cmd {
	case "/help", "/h":
		printHelp(out)
	case "/clear", "/c":
		app.Reset()
		_, _ = fmt.Fprintln(out, "Conversation history cleared.")
	case "/tools", "/t":
		_, _ = fmt.Fprintf(out, "Available tools: %s\n", formatToolNames(app.ToolNames()))
	case "/quit", "/exit", "/q":
		_, _ = fmt.Fprintln(out, "Goodbye!")
		return true
	default:
		_, _ = fmt.Fprintf(out, "Unknown command: %s. Type /help for available commands.\n", input)
	}
	return false
}

func printHelp(out io.Writer) {
	_, _ = fmt.Fprintln(out, "Commands:")
	_, _ = fmt.Fprintln(out, "  /help  - Show this help message")
	_, _ = fmt.Fprintln(out, "  /clear - Clear conversation history")
	_, _ = fmt.Fprintln(out, "  /tools - List the server's tools")
	_, _ = fmt.Fprintln(out, "  /quit  - Exit the program")
	_, _ = fmt.Fprintln(out, "  /exit  - Exit the program")
	_, _ = fmt.Fprintln(out, "  quit   - Exit the program")
}

func formatToolNames(names []string) string {
	return "[" + strings.Join(names, ", ") + "]"
}
