package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/logging"
)

// maxLoggedArgument bounds string arguments in MCP logs.
const maxLoggedArgument = 200

// MCPRequestLogger returns middleware that logs MCP JSON-RPC tool calls with
// their outcome. Row payloads are summarized, never logged.
// Pass nil logger to disable logging.
func MCPRequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logger == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				logger.Error("Failed to read MCP request body", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			var req jsonRPCRequest
			if err := json.Unmarshal(body, &req); err != nil {
				logger.Debug("Failed to parse MCP request JSON", zap.Error(err))
			}

			requestID := RequestIDFromContext(r.Context())
			logger.Debug("MCP request",
				zap.String("request_id", requestID),
				zap.String("method", req.Method),
				zap.String("tool", req.Params.Name),
				zap.Any("arguments", summarizeArguments(req.Params.Arguments)))

			recorder := &mcpResponseRecorder{ResponseWriter: w}
			start := time.Now()
			next.ServeHTTP(recorder, r)
			duration := time.Since(start)

			var resp jsonRPCResponse
			if err := json.Unmarshal(recorder.body.Bytes(), &resp); err != nil {
				// Streamed (SSE) responses are not JSON documents.
				return
			}

			switch {
			case resp.Error != nil:
				logger.Info("MCP protocol error",
					zap.String("request_id", requestID),
					zap.String("tool", req.Params.Name),
					zap.Int("error_code", resp.Error.Code),
					zap.String("error_message", logging.SanitizeError(fmt.Errorf("%s", resp.Error.Message))),
					zap.Duration("duration", duration))
			case resp.Result.IsError:
				logger.Debug("MCP tool returned error result",
					zap.String("request_id", requestID),
					zap.String("tool", req.Params.Name),
					zap.Duration("duration", duration))
			default:
				logger.Debug("MCP response success",
					zap.String("request_id", requestID),
					zap.String("tool", req.Params.Name),
					zap.Duration("duration", duration))
			}
		})
	}
}

type jsonRPCRequest struct {
	Method string `json:"method"`
	Params struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	} `json:"params"`
}

type jsonRPCResponse struct {
	Result struct {
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *jsonRPCError `json:"error"`
}

type jsonRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type mcpResponseRecorder struct {
	http.ResponseWriter
	body bytes.Buffer
}

func (r *mcpResponseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Flush keeps streaming responses working through the recorder.
func (r *mcpResponseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// summarizeArguments redacts secrets, replaces row payloads and value lists
// with their size, and truncates long strings.
func summarizeArguments(args map[string]any) map[string]any {
	if args == nil {
		return nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		lower := strings.ToLower(k)
		switch {
		case containsAny(lower, "password", "secret", "token", "key", "credential"):
			out[k] = logging.RedactedText
		case lower == "data" || lower == "values" || lower == "params":
			out[k] = describeSize(v)
		default:
			if s, ok := v.(string); ok {
				out[k] = logging.TruncateString(s, maxLoggedArgument)
			} else {
				out[k] = v
			}
		}
	}
	return out
}

func describeSize(v any) string {
	switch t := v.(type) {
	case []any:
		return fmt.Sprintf("[%d items]", len(t))
	case map[string]any:
		return fmt.Sprintf("{%d keys}", len(t))
	case string:
		return fmt.Sprintf("(%d bytes)", len(t))
	default:
		return fmt.Sprintf("(%T)", v)
	}
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
