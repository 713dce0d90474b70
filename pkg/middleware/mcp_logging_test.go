package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func serveMCP(t *testing.T, logger *zap.Logger, reqBody, respBody string) *httptest.ResponseRecorder {
	t.Helper()
	handler := MCPRequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(respBody))
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewBufferString(reqBody)))
	return rec
}

func TestMCPRequestLogger(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantMessage string
		wantLevel   zapcore.Level
	}{
		{
			name:        "success",
			response:    `{"jsonrpc":"2.0","id":1,"result":{"content":[{"type":"text","text":"{}"}]}}`,
			wantMessage: "MCP response success",
			wantLevel:   zapcore.DebugLevel,
		},
		{
			name:        "tool error result",
			response:    `{"jsonrpc":"2.0","id":1,"result":{"isError":true,"content":[{"type":"text","text":"Invalid table name"}]}}`,
			wantMessage: "MCP tool returned error result",
			wantLevel:   zapcore.DebugLevel,
		},
		{
			name:        "protocol error",
			response:    `{"jsonrpc":"2.0","id":1,"error":{"code":-32602,"message":"unknown tool"}}`,
			wantMessage: "MCP protocol error",
			wantLevel:   zapcore.InfoLevel,
		},
	}

	req := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"select_rows","arguments":{"table":"users"}}}`
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			rec := serveMCP(t, zap.New(core), req, tt.response)

			assert.Equal(t, tt.response, rec.Body.String(), "response passes through unchanged")
			require.Equal(t, 2, logs.Len())

			first := logs.All()[0]
			assert.Equal(t, "MCP request", first.Message)
			assert.Equal(t, "tools/call", first.ContextMap()["method"])
			assert.Equal(t, "select_rows", first.ContextMap()["tool"])

			second := logs.All()[1]
			assert.Equal(t, tt.wantMessage, second.Message)
			assert.Equal(t, tt.wantLevel, second.Level)
		})
	}
}

func TestMCPRequestLogger_NonJSONResponse(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	serveMCP(t, zap.New(core), `{"method":"initialize"}`, "event: message\ndata: {}\n\n")
	assert.Equal(t, 1, logs.Len(), "streamed responses only log the request")
}

func TestMCPRequestLogger_BodyStillReadable(t *testing.T) {
	var got string
	handler := MCPRequestLogger(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(r.Body)
		got = buf.String()
	}))
	body := `{"method":"tools/list"}`
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body)))
	assert.Equal(t, body, got)
}

func TestSummarizeArguments(t *testing.T) {
	assert.Nil(t, summarizeArguments(nil))

	got := summarizeArguments(map[string]any{
		"table":     "users",
		"api_key":   "abc",
		"data":      []any{map[string]any{"email": "a@b.c"}, map[string]any{"email": "d@e.f"}},
		"values":    []any{1, 2, 3},
		"params":    map[string]any{"limit": 5},
		"condition": strings.Repeat("x", 300),
		"limit":     float64(10),
	})

	assert.Equal(t, "users", got["table"])
	assert.Equal(t, "[REDACTED]", got["api_key"])
	assert.Equal(t, "[2 items]", got["data"])
	assert.Equal(t, "[3 items]", got["values"])
	assert.Equal(t, "{1 keys}", got["params"])
	assert.Len(t, got["condition"], 203)
	assert.Equal(t, float64(10), got["limit"])
}
