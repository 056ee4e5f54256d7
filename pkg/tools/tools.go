package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	lru "github.com/hashicorp/golang-lru/v2"
	loggerpkg "github.com/minhyannv/mcp-client-go/pkg/logger"
	"github.com/minhyannv/mcp-client-go/pkg/mcpclient"
	"github.com/openai/openai-go"
)

const validatorCacheSize = 256

// Sentinel causes carried by ClientError.
var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ClientError is reported back to the model so it can correct the call.
type ClientError struct {
	Reason string
	Err    error
}

func (e *ClientError) Error() string {
	return e.Reason
}

func (e *ClientError) Unwrap() error { return e.Err }

// Source is the server side of the catalog. *mcpclient.Session implements it.
type Source interface {
	ListTools(ctx context.Context) ([]mcpclient.Tool, error)
	CallTool(ctx context.Context, name string, args map[string]any) (mcpclient.Result, error)
}

// Context carries the logging settings a Registry reports with.
type Context struct {
	Verbose bool
	Logger  loggerpkg.Logger
}

func (c Context) debugf(format string, args ...any) {
	loggerpkg.Debugf(c.Verbose, c.Logger, format, args...)
}

// Invocation records one executed tool call.
type Invocation struct {
	Name   string
	Args   map[string]any
	Output string
	Failed bool
}

// ArgsJSON renders the decoded arguments for display.
func (i Invocation) ArgsJSON() string {
	if i.Args == nil {
		return "{}"
	}
	b, err := json.Marshal(i.Args)
	if err != nil {
		return fmt.Sprintf("%v", i.Args)
	}
	return string(b)
}

// Registry mirrors the server's tool catalog as OpenAI tool definitions.
type Registry struct {
	source     Source
	ctx        Context
	registry   map[string]mcpclient.Tool
	names      []string
	params     []openai.ChatCompletionToolParam
	validators *lru.Cache[string, *jsonschema.Resolved]
}

type toolResponse struct {
	OK   bool        `json:"ok"`
	Tool string      `json:"tool,omitempty"`
	Data interface{} `json:"data,omitempty"`
	Err  string      `json:"error,omitempty"`
}

// New builds an empty registry backed by source. Call Refresh to load tools.
func New(source Source, ctx Context) *Registry {
	if ctx.Logger == nil {
		ctx.Logger = loggerpkg.NopLogger{}
	}
	cache, err := lru.New[string, *jsonschema.Resolved](validatorCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}
	return &Registry{
		source:     source,
		ctx:        ctx,
		registry:   make(map[string]mcpclient.Tool),
		validators: cache,
	}
}

// Refresh re-lists the server's tools and rebuilds the definitions.
func (t *Registry) Refresh(ctx context.Context) error {
	if t.source == nil {
		return errors.New("tool source is not set")
	}
	listed, err := t.source.ListTools(ctx)
	if err != nil {
		return err
	}

	registry := make(map[string]mcpclient.Tool, len(listed))
	names := make([]string, 0, len(listed))
	var params []openai.ChatCompletionToolParam
	for _, tool := range listed {
		if tool.Name == "" {
			continue
		}
		if _, dup := registry[tool.Name]; dup {
			t.ctx.Logger.Warn("duplicate tool name ignored", map[string]any{"tool": tool.Name})
			continue
		}
		param, err := definition(tool)
		if err != nil {
			t.ctx.Logger.Warn("tool skipped", map[string]any{"tool": tool.Name, "error": err.Error()})
			continue
		}
		registry[tool.Name] = tool
		names = append(names, tool.Name)
		params = append(params, param)
		t.ctx.debugf("[verbose] registered tool: %s", tool.Name)
	}

	t.registry = registry
	t.names = names
	t.params = params
	return nil
}

// Definitions returns the tool definitions for a completion request, or nil
// when the server has no tools.
func (t *Registry) Definitions() []openai.ChatCompletionToolParam {
	return t.params
}

// Names lists the registered tools in server order.
func (t *Registry) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Execute runs one tool call requested by the model. Problems the model can
// fix are returned as a failed Invocation; transport failures are errors.
func (t *Registry) Execute(ctx context.Context, call openai.ChatCompletionMessageToolCall) (Invocation, error) {
	name := call.Function.Name
	inv := Invocation{Name: name}

	select {
	case <-ctx.Done():
		return inv, ctx.Err()
	default:
	}

	tool, ok := t.registry[name]
	if !ok {
		return t.reject(inv, &ClientError{Reason: fmt.Sprintf("unknown tool: %s", name), Err: ErrToolNotFound})
	}

	args, err := DecodeArguments(call.Function.Arguments)
	if err != nil {
		return t.reject(inv, err)
	}
	inv.Args = args

	if err := t.validate(tool, args); err != nil {
		return t.reject(inv, err)
	}

	t.ctx.debugf("[verbose] %s: args=%s", name, inv.ArgsJSON())
	result, err := t.source.CallTool(ctx, name, args)
	if err != nil {
		return inv, err
	}
	if result.IsError {
		inv.Failed = true
		inv.Output, err = marshalToolResponse(name, nil, errors.New(result.Text()))
		return inv, err
	}
	inv.Output = result.Text()
	t.ctx.debugf("[verbose] %s: completed, output=%d bytes", name, len(inv.Output))
	return inv, nil
}

func (t *Registry) reject(inv Invocation, cause error) (Invocation, error) {
	t.ctx.debugf("[verbose] %s: rejected: %v", inv.Name, cause)
	inv.Failed = true
	out, err := marshalToolResponse(inv.Name, nil, cause)
	inv.Output = out
	return inv, err
}

// validate checks args against the tool's input schema. A schema that cannot
// be resolved disables validation for that tool.
func (t *Registry) validate(tool mcpclient.Tool, args map[string]any) error {
	resolved := t.validator(tool)
	if resolved == nil {
		return nil
	}
	if err := resolved.Validate(args); err != nil {
		return &ClientError{Reason: err.Error(), Err: ErrInvalidArguments}
	}
	return nil
}

// validator returns the cached resolved schema for tool, or nil when the
// schema is unusable. Failures are cached too, so each one is logged once.
func (t *Registry) validator(tool mcpclient.Tool) *jsonschema.Resolved {
	sum := sha256.Sum256(tool.InputSchema)
	key := tool.Name + "@" + hex.EncodeToString(sum[:8])
	if resolved, ok := t.validators.Get(key); ok {
		return resolved
	}
	resolved, err := resolveSchema(tool.InputSchema)
	if err != nil {
		t.ctx.Logger.Warn("input schema not usable for validation", map[string]any{
			"tool":  tool.Name,
			"error": err.Error(),
		})
		resolved = nil
	}
	t.validators.Add(key, resolved)
	return resolved
}

// resolveSchema compiles a tool input schema. "$schema" is dropped at every
// level: the validator refuses any declared version other than draft 2020-12.
func resolveSchema(raw json.RawMessage) (*jsonschema.Resolved, error) {
	var schemaMap map[string]any
	if err := json.Unmarshal(raw, &schemaMap); err != nil {
		return nil, err
	}
	walkSchema(schemaMap, func(n map[string]any) {
		delete(n, "$schema")
	})
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, err
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(b, &schema); err != nil {
		return nil, err
	}
	return schema.Resolve(nil)
}

// walkSchema calls visit on schemaMap and on every nested object.
func walkSchema(schemaMap map[string]any, visit func(map[string]any)) {
	if schemaMap == nil {
		return
	}
	visit(schemaMap)
	for _, val := range schemaMap {
		switch v := val.(type) {
		case map[string]any:
			walkSchema(v, visit)
		case []any:
			for _, item := range v {
				if m, ok := item.(map[string]any); ok {
					walkSchema(m, visit)
				}
			}
		}
	}
}

// DecodeArguments parses model-produced arguments. Payloads written with
// single quotes are accepted after normalizing them to double quotes.
func DecodeArguments(raw string) (map[string]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	err := json.Unmarshal([]byte(raw), &args)
	if err != nil {
		if lenientErr := json.Unmarshal([]byte(strings.ReplaceAll(raw, "'", `"`)), &args); lenientErr != nil {
			return nil, &ClientError{Reason: "json parse error: " + err.Error(), Err: ErrInvalidArguments}
		}
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func definition(tool mcpclient.Tool) (openai.ChatCompletionToolParam, error) {
	var params openai.FunctionParameters
	if len(tool.InputSchema) > 0 {
		if err := json.Unmarshal(tool.InputSchema, &params); err != nil {
			return openai.ChatCompletionToolParam{}, fmt.Errorf("decode input schema: %w", err)
		}
	}
	if params == nil {
		params = openai.FunctionParameters{"type": "object"}
	}
	fn := openai.FunctionDefinitionParam{
		Name:       tool.Name,
		Parameters: params,
	}
	if desc := strings.TrimSpace(tool.Description); desc != "" {
		fn.Description = openai.String(desc)
	}
	return openai.ChatCompletionToolParam{Function: fn}, nil
}

func marshalToolResponse(toolName string, data interface{}, err error) (string, error) {
	resp := toolResponse{
		OK:   err == nil,
		Tool: toolName,
		Data: data,
	}
	if err != nil {
		resp.Err = err.Error()
	}
	payload, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		return "", marshalErr
	}
	return string(payload), nil
}
