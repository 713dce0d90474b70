package mcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/logging"
)

// maxParamSize is the longest string argument kept in an audit entry.
const maxParamSize = 1024

// AuditLogger records MCP tool calls through the application logger.
type AuditLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(logger *zap.Logger) *AuditLogger {
	return &AuditLogger{logger: logger.Named("mcp-audit")}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *AuditLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *AuditLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *AuditLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", a.elapsed(id).Milliseconds()),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
	}
	summary := summarizeResult(result)
	fields = append(fields, zap.Any("result", summary))

	switch {
	case summary["suspicious"] == true:
		a.logger.Warn("MCP tool call rejected suspicious value", append(fields, zap.Strings("flags", []string{"sql_injection_attempt"}))...)
	case result != nil && result.IsError:
		a.logger.Info("MCP tool call returned error result", fields...)
	default:
		a.logger.Info("MCP tool call", fields...)
	}
}

func (a *AuditLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}

	a.logger.Warn("MCP tool call failed",
		zap.String("tool", req.Params.Name),
		zap.Int64("duration_ms", a.elapsed(id).Milliseconds()),
		zap.Any("params", sanitizeParams(req.Params.Arguments)),
		zap.String("error", logging.SanitizeError(err)))
}

func (a *AuditLogger) elapsed(id any) time.Duration {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return time.Since(v.(time.Time))
	}
	return 0
}

// sanitizeParams prepares tool arguments for the audit log: sensitive keys
// are hashed, row payloads are reduced to counts and long strings truncated.
func sanitizeParams(args any) map[string]any {
	params, ok := args.(map[string]any)
	if !ok || len(params) == 0 {
		return nil
	}

	sanitized := make(map[string]any, len(params))
	for k, v := range params {
		sanitized[k] = sanitizeValue(k, v)
	}
	return sanitized
}

func sanitizeValue(key string, value any) any {
	if isSensitiveKey(key) {
		return hashSensitiveValue(value)
	}

	switch val := value.(type) {
	case string:
		return logging.TruncateString(val, maxParamSize)
	case map[string]any:
		return sanitizeParams(val)
	case []any:
		if key == "data" || key == "values" {
			return fmt.Sprintf("[%d items]", len(val))
		}
		return val
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range []string{"password", "secret", "token", "api_key", "apikey", "credential"} {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// hashSensitiveValue returns a SHA-256 prefix so entries can be correlated
// without storing the value.
func hashSensitiveValue(value any) string {
	str, ok := value.(string)
	if !ok {
		str = fmt.Sprintf("%v", value)
	}
	hash := sha256.Sum256([]byte(str))
	return "sha256:" + hex.EncodeToString(hash[:8])
}

// summarizeResult creates a compact summary of the tool result, including
// row and affected counts when the result carries them.
func summarizeResult(result *mcplib.CallToolResult) map[string]any {
	if result == nil {
		return nil
	}

	summary := map[string]any{"is_error": result.IsError}
	for _, c := range result.Content {
		tc, ok := c.(mcplib.TextContent)
		if !ok {
			continue
		}
		extractCounts(tc.Text, summary)
		if result.IsError && strings.Contains(tc.Text, "Rejected suspicious value") {
			summary["suspicious"] = true
		}
		summary["preview"] = logging.TruncateString(tc.Text, 200)
		break
	}
	return summary
}

func extractCounts(text string, summary map[string]any) {
	var partial struct {
		Rows     []json.RawMessage `json:"rows"`
		IDs      []json.RawMessage `json:"ids"`
		Affected *int64            `json:"affected"`
	}
	if err := json.Unmarshal([]byte(text), &partial); err != nil {
		return
	}
	if partial.Rows != nil {
		summary["row_count"] = len(partial.Rows)
	}
	if partial.IDs != nil {
		summary["row_count"] = len(partial.IDs)
	}
	if partial.Affected != nil {
		summary["affected"] = *partial.Affected
	}
}
