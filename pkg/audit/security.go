// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventSQLInjectionAttempt is logged when libinjection flags a bound value.
	EventSQLInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventAuthFailure is logged when a request presents a missing or wrong API key.
	EventAuthFailure SecurityEventType = "auth_failure"
)

// SecurityEvent represents an auditable security event with all relevant context
// for SIEM ingestion and analysis.
type SecurityEvent struct {
	EventID   string            `json:"event_id"`
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a flagged bound value. The value
// itself is never recorded.
type InjectionDetails struct {
	Table       string `json:"table"`
	ParamName   string `json:"param_name"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
	Rejected    bool   `json:"rejected"`
}

// AuthFailureDetails describes a rejected request.
type AuthFailureDetails struct {
	RequestID     string `json:"request_id,omitempty"`
	Path          string `json:"path"`
	ClientIP      string `json:"client_ip"`
	HeaderPresent bool   `json:"header_present"`
}

// SecurityAuditor logs security events for SIEM consumption.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a security auditor logging under the
// "security_audit" name. A nil logger discards events.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// LogInjectionAttempt records a flagged bound value. Rejected attempts are
// critical and logged at ERROR; logged-only attempts are warnings.
func (a *SecurityAuditor) LogInjectionAttempt(details InjectionDetails) {
	severity, level := "warning", zapcore.WarnLevel
	if details.Rejected {
		severity, level = "critical", zapcore.ErrorLevel
	}

	a.logger.Log(level, "SQL injection attempt detected",
		zap.String("event_json", a.eventJSON(EventSQLInjectionAttempt, details, severity)),
		zap.String("table", details.Table),
		zap.String("param_name", details.ParamName),
		zap.String("fingerprint", details.Fingerprint),
		zap.Bool("rejected", details.Rejected),
		zap.String("severity", severity),
	)
}

// LogAuthFailure records a request rejected for a missing or wrong API key.
func (a *SecurityAuditor) LogAuthFailure(details AuthFailureDetails) {
	a.logger.Warn("Rejected request with invalid API key",
		zap.String("event_json", a.eventJSON(EventAuthFailure, details, "warning")),
		zap.String("request_id", details.RequestID),
		zap.String("path", details.Path),
		zap.String("client_ip", details.ClientIP),
		zap.Bool("header_present", details.HeaderPresent),
		zap.String("severity", "warning"),
	)
}

func (a *SecurityAuditor) eventJSON(eventType SecurityEventType, details any, severity string) string {
	event := SecurityEvent{
		EventID:   uuid.NewString(),
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Details:   details,
		Severity:  severity,
	}
	// Marshaling known types cannot fail.
	eventJSON, _ := json.Marshal(event)
	return string(eventJSON)
}
