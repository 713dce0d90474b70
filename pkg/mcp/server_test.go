package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewServer(t *testing.T) {
	logger := zap.NewNop()
	s := NewServer("flexiapi", "1.0.0", logger)

	require.NotNil(t, s)
	assert.NotNil(t, s.MCP())
	assert.Same(t, logger, s.logger)
	assert.NotNil(t, s.NewStreamableHTTPServer())
}

func echoTool(s *Server) {
	s.RegisterTool(
		mcp.NewTool("echo", mcp.WithDescription("echo"), mcp.WithString("api_key"), mcp.WithArray("data")),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := req.Params.Arguments.(map[string]any)
			if args["fail"] == true {
				return nil, errors.New("connection refused")
			}
			return mcp.NewToolResultText(`{"affected":3}`), nil
		},
	)
}

func TestServer_AuditsToolCalls(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewServer("flexiapi", "1.0.0", zap.New(core))
	echoTool(s)

	s.MCP().HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"echo","arguments":{"api_key":"hunter2","data":[1,2]}}}`))

	entries := logs.FilterMessage("MCP tool call").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "echo", fields["tool"])

	params := fields["params"].(map[string]any)
	assert.True(t, strings.HasPrefix(params["api_key"].(string), "sha256:"))
	assert.Equal(t, "[2 items]", params["data"])

	result := fields["result"].(map[string]any)
	assert.Equal(t, int64(3), result["affected"])
}

func TestServer_AuditsToolFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewServer("flexiapi", "1.0.0", zap.New(core))
	echoTool(s)

	s.MCP().HandleMessage(context.Background(), []byte(
		`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"echo","arguments":{"fail":true}}}`))

	entries := logs.FilterMessage("MCP tool call failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "echo", entries[0].ContextMap()["tool"])
}

func TestServer_StreamableHTTP(t *testing.T) {
	s := NewServer("flexiapi", "1.0.0", zap.NewNop())
	echoTool(s)

	ts := httptest.NewServer(s.NewStreamableHTTPServer())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodPost, ts.URL,
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Result.Tools, 1)
	assert.Equal(t, "echo", body.Result.Tools[0].Name)
}

func TestSanitizeParams(t *testing.T) {
	assert.Nil(t, sanitizeParams(nil))
	assert.Nil(t, sanitizeParams("not a map"))

	got := sanitizeParams(map[string]any{
		"table":    "users",
		"password": "pw",
		"where":    map[string]any{"field": "token_hash", "value": strings.Repeat("x", 2000)},
		"values":   []any{1, 2, 3},
		"limit":    float64(5),
	})
	assert.Equal(t, "users", got["table"])
	assert.Equal(t, hashSensitiveValue("pw"), got["password"])
	assert.Equal(t, "[3 items]", got["values"])
	assert.Equal(t, float64(5), got["limit"])
	where := got["where"].(map[string]any)
	assert.Len(t, where["value"].(string), maxParamSize+3)
}

func TestSummarizeResult(t *testing.T) {
	assert.Nil(t, summarizeResult(nil))

	rows := summarizeResult(mcp.NewToolResultText(`{"rows":[{"id":1},{"id":2}],"pagination":{}}`))
	assert.Equal(t, 2, rows["row_count"])
	assert.Equal(t, false, rows["is_error"])

	rejected := mcp.NewToolResultText(`{"error":true,"code":"validation_error","message":"Rejected suspicious value for parameter(s): field_0"}`)
	rejected.IsError = true
	assert.Equal(t, true, summarizeResult(rejected)["suspicious"])
}
