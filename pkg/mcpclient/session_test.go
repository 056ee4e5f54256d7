package mcpclient

import (
	"context"
	"encoding/json"
	"strconv"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type addArgs struct {
	A int `json:"a"`
	B int `json:"b"`
}

type echoArgs struct {
	Text string `json:"text"`
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: isError,
	}
}

// newTestSession connects a Session to an in-memory server exposing add, echo and fail.
func newTestSession(t *testing.T) *Session {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "test-server", Version: "v0.0.1"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "add", Description: "Add two integers"},
		func(_ context.Context, _ *mcp.CallToolRequest, in addArgs) (*mcp.CallToolResult, any, error) {
			return textResult(strconv.Itoa(in.A+in.B), false), nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "echo", Description: "Echo text back"},
		func(_ context.Context, _ *mcp.CallToolRequest, in echoArgs) (*mcp.CallToolResult, any, error) {
			return textResult(in.Text, false), nil, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "fail", Description: "Always fails"},
		func(_ context.Context, _ *mcp.CallToolRequest, _ echoArgs) (*mcp.CallToolResult, any, error) {
			return textResult("upstream unavailable", true), nil, nil
		})

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	session, err := Connect(ctx, clientTransport, Options{})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Wait()
	})
	return session
}

func TestSessionListTools(t *testing.T) {
	session := newTestSession(t)

	tools, err := session.ListTools(context.Background())
	require.NoError(t, err)

	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"add", "echo", "fail"}, names)

	for _, tool := range tools {
		if tool.Name != "add" {
			continue
		}
		assert.Equal(t, "Add two integers", tool.Description)
		var schema map[string]any
		require.NoError(t, json.Unmarshal(tool.InputSchema, &schema))
		assert.Equal(t, "object", schema["type"])
		props, ok := schema["properties"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, props, "a")
		assert.Contains(t, props, "b")
	}
}

func TestSessionCallTool(t *testing.T) {
	session := newTestSession(t)

	res, err := session.CallTool(context.Background(), "add", map[string]any{"a": 2, "b": 3})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "5", res.Text())
}

func TestSessionCallToolReportsToolError(t *testing.T) {
	session := newTestSession(t)

	res, err := session.CallTool(context.Background(), "fail", map[string]any{"text": "x"})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "upstream unavailable", res.Text())
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	session := newTestSession(t)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())

	_, err := session.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = session.CallTool(context.Background(), "add", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRenderResult(t *testing.T) {
	res, err := renderResult(&mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "line one"},
			&mcp.ImageContent{Data: []byte("png"), MIMEType: "image/png"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Parts, 2)
	assert.Equal(t, "line one", res.Parts[0])
	assert.Contains(t, res.Parts[1], "image/png")

	res, err = renderResult(&mcp.CallToolResult{StructuredContent: map[string]any{"temp": 21}})
	require.NoError(t, err)
	assert.Equal(t, `{"temp":21}`, res.Text())

	_, err = renderResult(nil)
	assert.Error(t, err)
}

func TestMarshalSchemaDefaultsToObject(t *testing.T) {
	b, err := marshalSchema(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, string(b))

	b, err = marshalSchema(map[string]any{"type": "object", "required": []string{"q"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object","required":["q"]}`, string(b))
}
