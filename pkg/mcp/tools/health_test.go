package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// callTool issues a tools/call request and returns the decoded JSON-RPC result.
func callTool(t *testing.T, s *server.MCPServer, request string) toolCallResponse {
	t.Helper()
	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(request)))
	require.NoError(t, err)

	var resp toolCallResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

type toolCallResponse struct {
	Result *struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r toolCallResponse) text(t *testing.T) string {
	t.Helper()
	require.Nil(t, r.Error, "unexpected JSON-RPC error")
	require.NotNil(t, r.Result)
	require.NotEmpty(t, r.Result.Content)
	return r.Result.Content[0].Text
}

func listToolNames(t *testing.T, s *server.MCPServer) []string {
	t.Helper()
	raw, err := json.Marshal(s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`)))
	require.NoError(t, err)

	var response struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &response))

	names := make([]string, 0, len(response.Result.Tools))
	for _, tool := range response.Result.Tools {
		names = append(names, tool.Name)
	}
	return names
}

func TestHealthTool(t *testing.T) {
	tests := []struct {
		name     string
		db       Pinger
		status   string
		database string
	}{
		{"no database", nil, "ok", "unchecked"},
		{"reachable", pingFunc(func(context.Context) error { return nil }), "ok", "ok"},
		{"unreachable", pingFunc(func(context.Context) error { return errors.New("refused") }), "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
			RegisterHealthTool(s, "1.2.3", tt.db)
			assert.Contains(t, listToolNames(t, s), "health")

			resp := callTool(t, s, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"health"},"id":1}`)
			var health healthResult
			require.NoError(t, json.Unmarshal([]byte(resp.text(t)), &health))
			assert.Equal(t, tt.status, health.Status)
			assert.Equal(t, "1.2.3", health.Version)
			assert.Equal(t, tt.database, health.Database)
		})
	}
}
