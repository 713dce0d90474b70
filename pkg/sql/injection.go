package sql

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
)

// InjectionMode selects what happens when a bound string looks like SQL.
// Bound values can never alter the statement, so screening is an audit aid.
type InjectionMode string

const (
	InjectionOff    InjectionMode = "off"
	InjectionLog    InjectionMode = "log"
	InjectionReject InjectionMode = "reject"
)

// ParseInjectionMode parses a configured mode. Empty means InjectionLog.
func ParseInjectionMode(s string) (InjectionMode, error) {
	switch mode := InjectionMode(strings.ToLower(strings.TrimSpace(s))); mode {
	case "":
		return InjectionLog, nil
	case InjectionOff, InjectionLog, InjectionReject:
		return mode, nil
	default:
		return "", fmt.Errorf("invalid injection check mode %q (want off, log or reject)", s)
	}
}

// InjectionFinding is a bound parameter whose value matched a libinjection
// fingerprint.
type InjectionFinding struct {
	ParamName   string
	Fingerprint string
}

// CheckValue reports whether a single value looks like SQL. Only strings are
// checked; numbers and booleans cannot carry SQL text.
func CheckValue(value any) (bool, string) {
	s, ok := value.(string)
	if !ok {
		return false, ""
	}
	isSQLi, fingerprint := libinjection.IsSQLi(s)
	return isSQLi, string(fingerprint)
}

// ScreenStatement returns a finding for every parameter of stmt whose value
// looks like SQL, in binding order.
func ScreenStatement(stmt Statement) []InjectionFinding {
	var findings []InjectionFinding
	for _, p := range stmt.Params {
		if isSQLi, fp := CheckValue(p.Value); isSQLi {
			findings = append(findings, InjectionFinding{ParamName: p.Name, Fingerprint: fp})
		}
	}
	return findings
}

// RejectionError builds the ValidationError returned in InjectionReject mode.
func RejectionError(findings []InjectionFinding) error {
	names := make([]string, len(findings))
	for i, f := range findings {
		names[i] = f.ParamName
	}
	return apperrors.Validation("value", "Rejected suspicious value for parameter(s): %s", strings.Join(names, ", "))
}
