package agent

import (
	"net/http"

	loggerpkg "github.com/minhyannv/mcp-client-go/pkg/logger"
	"github.com/openai/openai-go/option"
)

// AgentOption configures optional runtime dependencies for AgentLoop.
type AgentOption func(*agentDeps)

type agentDeps struct {
	logger         loggerpkg.Logger
	httpClient     *http.Client
	requestOptions []option.RequestOption
}

// WithLogger injects a logger dependency.
func WithLogger(l loggerpkg.Logger) AgentOption {
	return func(d *agentDeps) {
		d.logger = l
	}
}

// WithHTTPClient sets the HTTP client used for completion requests.
func WithHTTPClient(c *http.Client) AgentOption {
	return func(d *agentDeps) {
		d.httpClient = c
	}
}

// WithRequestOptions appends raw OpenAI client options.
func WithRequestOptions(opts ...option.RequestOption) AgentOption {
	return func(d *agentDeps) {
		d.requestOptions = append(d.requestOptions, opts...)
	}
}
