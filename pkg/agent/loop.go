package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	configpkg "github.com/minhyannv/mcp-client-go/pkg/config"
	loggerpkg "github.com/minhyannv/mcp-client-go/pkg/logger"
	"github.com/minhyannv/mcp-client-go/pkg/tools"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// AgentLoop holds the conversation and drives model/tool turns.
type AgentLoop struct {
	config  configpkg.Config
	client  openai.Client
	tools   *tools.Registry
	history []openai.ChatCompletionMessageParamUnion

	logger  loggerpkg.Logger
	verbose bool
}

// Reply is the outcome of one query.
type Reply struct {
	ToolCalls []tools.Invocation
	Content   string
}

// Text renders the reply the way it is shown to the user: one line per tool
// call followed by the model's final answer.
func (r Reply) Text() string {
	lines := make([]string, 0, len(r.ToolCalls)+1)
	for _, inv := range r.ToolCalls {
		lines = append(lines, fmt.Sprintf("[Calling tool %s with args %s]", inv.Name, inv.ArgsJSON()))
	}
	if r.Content != "" {
		lines = append(lines, r.Content)
	}
	return strings.Join(lines, "\n")
}

// New initializes an AgentLoop that calls tools through source.
func New(cfg configpkg.Config, source tools.Source, opts ...AgentOption) (*AgentLoop, error) {
	cfg = configpkg.Normalize(cfg)
	deps := agentDeps{logger: loggerpkg.NopLogger{}}
	for _, opt := range opts {
		if opt != nil {
			opt(&deps)
		}
	}
	if deps.logger == nil {
		deps.logger = loggerpkg.NopLogger{}
	}

	loggerpkg.Debug(cfg.Verbose, deps.logger, "agent_loop init", map[string]any{
		"model":           cfg.Model,
		"base_url":        cfg.BaseURL,
		"max_tool_rounds": cfg.MaxToolRounds,
	})
	if cfg.APIKey == "" {
		return nil, errors.New("APIKey is not set")
	}
	if cfg.Model == "" {
		return nil, errors.New("Model is not set")
	}
	if source == nil {
		return nil, errors.New("tool source is required")
	}

	a := &AgentLoop{
		config: cfg,
		client: newOpenAIClient(cfg, deps),
		tools: tools.New(source, tools.Context{
			Verbose: cfg.Verbose,
			Logger:  deps.logger,
		}),
		logger:  deps.logger,
		verbose: cfg.Verbose,
	}
	a.Reset()
	return a, nil
}

func newOpenAIClient(cfg configpkg.Config, deps agentDeps) openai.Client {
	// Failed requests are reported, never retried.
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.RequestTimeout))
	}
	if deps.httpClient != nil {
		opts = append(opts, option.WithHTTPClient(deps.httpClient))
	}
	opts = append(opts, deps.requestOptions...)
	return openai.NewClient(opts...)
}

// RefreshTools reloads the tool catalog from the server.
func (a *AgentLoop) RefreshTools(ctx context.Context) error {
	if err := a.tools.Refresh(ctx); err != nil {
		return fmt.Errorf("list tools: %w", err)
	}
	return nil
}

// ToolNames lists the tools offered to the model.
func (a *AgentLoop) ToolNames() []string {
	return a.tools.Names()
}

// Run processes one user query and returns the final reply. The tool catalog
// is re-listed first so server-side changes are picked up. On failure the
// conversation is left as it was before the call.
func (a *AgentLoop) Run(ctx context.Context, query string) (Reply, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Reply{}, errors.New("query is required")
	}
	queryID := uuid.NewString()
	loggerpkg.Debug(a.verbose, a.logger, "query start", map[string]any{
		"query_id": queryID,
		"bytes":    len(query),
	})

	if err := a.RefreshTools(ctx); err != nil {
		return Reply{}, err
	}

	previousLen := len(a.history)
	a.history = append(a.history, openai.UserMessage(query))

	reply, err := a.runIteration(ctx, queryID)
	if err != nil {
		a.history = a.history[:previousLen]
		loggerpkg.Warn(a.logger, "query failed", map[string]any{"query_id": queryID, "error": err.Error()})
		return Reply{}, err
	}
	loggerpkg.Debug(a.verbose, a.logger, "query done", map[string]any{
		"query_id":   queryID,
		"tool_calls": len(reply.ToolCalls),
	})
	return reply, nil
}

// Reset clears conversation history and keeps only the system prompt.
func (a *AgentLoop) Reset() {
	a.history = nil
	if a.config.SystemPrompt != "" {
		a.history = append(a.history, openai.SystemMessage(a.config.SystemPrompt))
	}
}

// History returns a copy of the conversation sent to the model.
func (a *AgentLoop) History() []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, len(a.history))
	copy(out, a.history)
	return out
}

// runOnce performs one model completion request.
func (a *AgentLoop) runOnce(ctx context.Context, params openai.ChatCompletionNewParams) (openai.ChatCompletionMessage, error) {
	completion, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return openai.ChatCompletionMessage{}, err
	}
	if len(completion.Choices) == 0 {
		return openai.ChatCompletionMessage{}, errors.New("empty completion choices")
	}
	return completion.Choices[0].Message, nil
}

// runIteration sends the conversation, executes the requested tools and
// asks for a follow-up until the model answers in plain text. Once
// MaxToolRounds rounds have run, tools are disabled for the next request.
func (a *AgentLoop) runIteration(ctx context.Context, queryID string) (Reply, error) {
	var reply Reply
	for round := 0; ; round++ {
		allowTools := round < a.config.MaxToolRounds
		a.debugf("[verbose] %s: round %d, tools allowed=%v", queryID, round+1, allowTools)

		message, err := a.runOnce(ctx, a.newChatParams(a.history, allowTools))
		if err != nil {
			return Reply{}, err
		}

		if len(message.ToolCalls) == 0 || !allowTools {
			reply.Content = message.Content
			a.history = append(a.history, openai.AssistantMessage(message.Content))
			return reply, nil
		}

		// Persist the assistant tool-call turn before appending tool responses.
		a.history = append(a.history, message.ToParam())
		a.debugf("[verbose] %s: assistant requested %d tool call(s)", queryID, len(message.ToolCalls))
		for _, call := range message.ToolCalls {
			inv, err := a.tools.Execute(ctx, call)
			if err != nil {
				return Reply{}, fmt.Errorf("tool %s: %w", call.Function.Name, err)
			}
			reply.ToolCalls = append(reply.ToolCalls, inv)
			a.history = append(a.history, openai.ToolMessage(inv.Output, call.ID))
		}
	}
}

func (a *AgentLoop) debugf(format string, args ...any) {
	loggerpkg.Debugf(a.verbose, a.logger, format, args...)
}

func (a *AgentLoop) newChatParams(messages []openai.ChatCompletionMessageParamUnion, allowTools bool) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.config.Model),
		Messages: messages,
	}
	defs := a.tools.Definitions()
	if len(defs) == 0 {
		return params
	}
	// Tool definitions are always sent once the server has tools; the last
	// round only disables them.
	params.Tools = defs
	if !allowTools {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String("none"),
		}
	}
	return params
}
