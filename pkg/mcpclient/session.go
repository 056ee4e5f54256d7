// Package mcpclient runs an MCP server as a stdio subprocess and exposes its
// tools to the rest of the client.
package mcpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	loggerpkg "github.com/minhyannv/mcp-client-go/pkg/logger"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const clientName = "mcp-client-go"

// Version is reported to the server during initialization.
var Version = "0.1.0"

// ErrClosed is returned by calls on a closed session.
var ErrClosed = errors.New("mcp session is closed")

// Options configures a session.
type Options struct {
	Logger  loggerpkg.Logger
	Verbose bool
	// Stderr receives the server's stderr. Nil discards it.
	Stderr io.Writer
}

// Tool is a tool advertised by the server.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Result is the outcome of a tool call.
type Result struct {
	Parts   []string
	IsError bool
}

// Text joins the rendered content parts.
func (r Result) Text() string {
	return strings.Join(r.Parts, "\n")
}

// Session is an initialized connection to one MCP server.
type Session struct {
	cs      *mcp.ClientSession
	logger  loggerpkg.Logger
	verbose bool

	mu     sync.Mutex
	closed bool
}

// Launch starts the server subprocess and performs the MCP handshake.
func Launch(ctx context.Context, srv Server, opts Options) (*Session, error) {
	if strings.TrimSpace(srv.Command) == "" {
		return nil, errors.New("server command is required")
	}
	cmd := exec.Command(srv.Command, srv.Args...)
	cmd.Env = serverEnv(srv.Env)
	if opts.Stderr != nil {
		cmd.Stderr = opts.Stderr
	}
	loggerpkg.Debug(opts.Verbose, opts.Logger, "launching mcp server", map[string]any{
		"command": srv.Command,
		"args":    srv.Args,
	})
	return Connect(ctx, &mcp.CommandTransport{Command: cmd}, opts)
}

// Connect initializes a session over an arbitrary MCP transport.
func Connect(ctx context.Context, transport mcp.Transport, opts Options) (*Session, error) {
	if opts.Logger == nil {
		opts.Logger = loggerpkg.NopLogger{}
	}
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: Version}, nil)
	cs, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}
	loggerpkg.Debug(opts.Verbose, opts.Logger, "mcp session initialized", nil)
	return &Session{cs: cs, logger: opts.Logger, verbose: opts.Verbose}, nil
}

// ListTools returns every tool the server advertises, following pagination.
func (s *Session) ListTools(ctx context.Context) ([]Tool, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	var out []Tool
	params := &mcp.ListToolsParams{}
	for {
		res, err := s.cs.ListTools(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("list tools: %w", err)
		}
		for _, t := range res.Tools {
			if t == nil {
				continue
			}
			schema, err := marshalSchema(t.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("tool %s: %w", t.Name, err)
			}
			out = append(out, Tool{Name: t.Name, Description: t.Description, InputSchema: schema})
		}
		if res.NextCursor == "" {
			break
		}
		params = &mcp.ListToolsParams{Cursor: res.NextCursor}
	}
	loggerpkg.Debug(s.verbose, s.logger, "tools listed", map[string]any{"count": len(out)})
	return out, nil
}

// CallTool invokes a tool by name.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (Result, error) {
	if s.isClosed() {
		return Result{}, ErrClosed
	}
	if args == nil {
		args = map[string]any{}
	}
	loggerpkg.Debug(s.verbose, s.logger, "calling tool", map[string]any{"tool": name, "args": args})
	res, err := s.cs.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return Result{}, fmt.Errorf("call tool %s: %w", name, err)
	}
	result, err := renderResult(res)
	if err != nil {
		return Result{}, fmt.Errorf("call tool %s: %w", name, err)
	}
	loggerpkg.Debug(s.verbose, s.logger, "tool returned", map[string]any{
		"tool":     name,
		"is_error": result.IsError,
		"parts":    len(result.Parts),
	})
	return result, nil
}

// Close ends the session and stops the subprocess. Later calls are no-ops.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.cs.Close()
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func marshalSchema(schema any) (json.RawMessage, error) {
	if schema == nil {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	if string(b) == "null" {
		return json.RawMessage(`{"type":"object"}`), nil
	}
	return b, nil
}

// renderResult flattens tool content into text parts. Non-text content is
// kept as its JSON encoding.
func renderResult(res *mcp.CallToolResult) (Result, error) {
	if res == nil {
		return Result{}, errors.New("empty tool result")
	}
	out := Result{IsError: res.IsError}
	for _, c := range res.Content {
		switch c := c.(type) {
		case *mcp.TextContent:
			out.Parts = append(out.Parts, c.Text)
		default:
			b, err := json.Marshal(c)
			if err != nil {
				return Result{}, fmt.Errorf("marshal tool content: %w", err)
			}
			out.Parts = append(out.Parts, string(b))
		}
	}
	if len(out.Parts) == 0 && res.StructuredContent != nil {
		b, err := json.Marshal(res.StructuredContent)
		if err != nil {
			return Result{}, fmt.Errorf("marshal structured content: %w", err)
		}
		out.Parts = append(out.Parts, string(b))
	}
	return out, nil
}
