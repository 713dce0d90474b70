package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	"github.com/flexiapi/flexiapi/pkg/config"
	"github.com/flexiapi/flexiapi/pkg/middleware"
)

func testConfig(key string, mcpEnabled bool) *config.Config {
	return &config.Config{
		Version: "test",
		API: config.APIConfig{
			Key:            key,
			DefaultLimit:   20,
			MaxLimit:       100,
			InjectionCheck: "reject",
			MCPEnabled:     mcpEnabled,
		},
		Database: config.DatabaseConfig{
			Driver:          "sqlite",
			Path:            ":memory:",
			IDColumn:        "id",
			WhitelistTables: []string{"users"},
		},
	}
}

func newTestApp(t *testing.T, cfg *config.Config) *app {
	t.Helper()
	store, err := datasource.Open(t.Context(), cfg.Database.Datasource())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Exec(t.Context(), `CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	require.NoError(t, err)
	return newApp(cfg, store, zap.NewNop())
}

func request(h http.Handler, method, target, body, key string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json, text/event-stream")
	}
	if key != "" {
		req.Header.Set(middleware.APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApp_EndToEnd(t *testing.T) {
	a := newTestApp(t, testConfig("k3y", true))

	rec := request(a.handler, http.MethodGet, "/api?table=users", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = request(a.handler, http.MethodPost, "/api",
		`{"table":"users","data":[{"username":"ann","email":"ann@example.com","status":"active"},{"username":"bob","email":"bob@example.com","status":"blocked"}]}`, "k3y")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = request(a.handler, http.MethodPost, "/api", `{"action":"custom","method":"activeUserCount"}`, "k3y")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var env struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, float64(1), env.Data["total"])

	query := url.Values{
		"table":     {"users"},
		"condition": {`[{"field":"username","value":"1' OR '1'='1"}]`},
	}
	rec = request(a.handler, http.MethodGet, "/api?"+query.Encode(), "", "k3y")
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reject mode refuses suspicious values")

	rec = request(a.handler, http.MethodGet, "/health", "", "k3y")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = request(a.handler, http.MethodPost, "/mcp",
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"select_rows","arguments":{"table":"users"}}}`, "k3y")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "ann@example.com")
}

func TestApp_MCPDisabled(t *testing.T) {
	a := newTestApp(t, testConfig("", false))
	rec := request(a.handler, http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("FLEXIAPI_KEY", "super-secret")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestCommands(t *testing.T) {
	t.Run("methods", func(t *testing.T) {
		assert.Equal(t, "activeUserCount\ngetTopUsers\n", runCommand(t, "methods"))
	})

	t.Run("config show", func(t *testing.T) {
		out := runCommand(t, "config", "show")
		assert.Contains(t, out, "driver: sqlite")
		assert.NotContains(t, out, "super-secret")
	})

	t.Run("postman", func(t *testing.T) {
		out := runCommand(t, "postman", "--base-url", "https://api.example.com")
		var collection struct {
			Item []struct {
				Name string `json:"name"`
			} `json:"item"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &collection))
		require.Len(t, collection.Item, 6)
		assert.Equal(t, "Custom: activeUserCount", collection.Item[4].Name)
		assert.Contains(t, out, "https://api.example.com")
	})
}
