// Package sql compiles validated table requests into parameterized statements.
//
// Identifiers (table and column names) are the only request-supplied text that
// is ever written into SQL, and every one of them passes through
// QuoteIdentifier. Values are never written into SQL; they travel as bound
// parameters.
package sql

import (
	"regexp"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
)

// identifierPattern is the whole identifier grammar.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// IsValidIdentifier reports whether name may be used as a table or column name.
func IsValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// ValidateIdentifier returns a ValidationError naming kind when name is not an
// identifier.
func ValidateIdentifier(kind, name string) error {
	if !IsValidIdentifier(name) {
		return apperrors.ValidationWrap(kind, apperrors.ErrInvalidIdentifier, "Invalid %s name: %s", kind, name)
	}
	return nil
}

// QuoteIdentifier validates name and quotes it for the dialect.
func QuoteIdentifier(d Dialect, kind, name string) (string, error) {
	if err := ValidateIdentifier(kind, name); err != nil {
		return "", err
	}
	return d.Quote(name), nil
}
