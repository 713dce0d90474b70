package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/audit"
)

// APIKeyHeader is the header clients authenticate with.
const APIKeyHeader = "X-FlexiAPI-Key"

const unauthorizedMessage = "Unauthorized: invalid API key"

// APIKey returns middleware that rejects requests whose X-FlexiAPI-Key header
// does not match key. An empty key disables the check. Failures are recorded
// by the security auditor without the presented key.
func APIKey(key string, logger *zap.Logger) func(http.Handler) http.Handler {
	expected := []byte(key)
	auditor := audit.NewSecurityAuditor(logger)
	return func(next http.Handler) http.Handler {
		if key == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(r.Header.Get(APIKeyHeader))
			if subtle.ConstantTimeCompare(got, expected) == 1 {
				next.ServeHTTP(w, r)
				return
			}

			auditor.LogAuthFailure(audit.AuthFailureDetails{
				RequestID:     RequestIDFromContext(r.Context()),
				Path:          r.URL.Path,
				ClientIP:      r.RemoteAddr,
				HeaderPresent: len(got) > 0,
			})

			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status":  false,
				"message": unauthorizedMessage,
				"data":    nil,
				"error":   unauthorizedMessage,
			})
		})
	}
}
