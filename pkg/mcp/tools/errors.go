package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mattn/go-sqlite3"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results. Errors the
// caller can fix are returned as successful tool results carrying this body
// so that the message reaches the model instead of being swallowed.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for actionable errors (bad arguments, constraint violations).
// System failures such as a lost connection are returned as Go errors.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return newErrorResult(ErrorResponse{Error: true, Code: code, Message: message})
}

func newErrorResult(resp ErrorResponse) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// ToolError converts a service error into a tool result when the caller can
// act on it. It returns nil for failures that should surface as Go errors.
func ToolError(err error) *mcp.CallToolResult {
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		code := "validation_error"
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			code = "not_found"
		case errors.Is(err, apperrors.ErrTableNotAllowed):
			code = "table_not_allowed"
		case errors.Is(err, apperrors.ErrInvalidIdentifier):
			code = "invalid_identifier"
		case errors.Is(err, apperrors.ErrUnsupported):
			code = "unsupported"
		}
		return newErrorResult(ErrorResponse{Error: true, Code: code, Message: ve.Message, Field: ve.Field})
	}

	if code := SQLUserErrorCode(err); code != "" {
		return NewErrorResult(code, err.Error())
	}
	return nil
}

// SQLUserErrorCode classifies a driver error caused by the statement or its
// values (constraint violations, unknown columns, bad data) as a stable code.
// It returns "" for anything else, including connectivity failures.
func SQLUserErrorCode(err error) string {
	if err == nil {
		return ""
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return postgresCode(pgErr.Code)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlCode(myErr.Number)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return sqliteCode(liteErr)
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return sqlServerCode(msErr.Number)
	}

	return ""
}

// postgresCode maps a SQLSTATE. Only classes 22, 23, 42 and 44 are user errors.
func postgresCode(sqlState string) string {
	switch sqlState {
	case "42601":
		return "syntax_error"
	case "42703":
		return "undefined_column"
	case "42P01":
		return "undefined_table"
	case "23505":
		return "unique_violation"
	case "23503":
		return "foreign_key_violation"
	case "23502":
		return "not_null_violation"
	case "23514":
		return "check_violation"
	case "22001":
		return "value_too_long"
	case "22003":
		return "numeric_out_of_range"
	case "22007", "22008":
		return "invalid_datetime"
	case "22P02":
		return "invalid_input"
	}

	if len(sqlState) < 2 {
		return ""
	}
	switch sqlState[:2] {
	case "22":
		return "data_exception"
	case "23":
		return "constraint_violation"
	case "42":
		return "sql_error"
	case "44":
		return "check_option_violation"
	}
	return ""
}

func mysqlCode(number uint16) string {
	switch number {
	case 1062:
		return "unique_violation"
	case 1451, 1452:
		return "foreign_key_violation"
	case 1048, 1364:
		return "not_null_violation"
	case 3819:
		return "check_violation"
	case 1054:
		return "undefined_column"
	case 1146:
		return "undefined_table"
	case 1064:
		return "syntax_error"
	case 1406:
		return "value_too_long"
	case 1264:
		return "numeric_out_of_range"
	case 1292:
		return "invalid_datetime"
	case 1366:
		return "invalid_input"
	}
	return ""
}

func sqliteCode(err sqlite3.Error) string {
	switch err.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return "unique_violation"
	case sqlite3.ErrConstraintForeignKey:
		return "foreign_key_violation"
	case sqlite3.ErrConstraintNotNull:
		return "not_null_violation"
	case sqlite3.ErrConstraintCheck:
		return "check_violation"
	}

	switch err.Code {
	case sqlite3.ErrConstraint:
		return "constraint_violation"
	case sqlite3.ErrMismatch, sqlite3.ErrTooBig:
		return "data_exception"
	case sqlite3.ErrError:
		msg := err.Error()
		switch {
		case strings.Contains(msg, "no such column"), strings.Contains(msg, "has no column named"):
			return "undefined_column"
		case strings.Contains(msg, "no such table"):
			return "undefined_table"
		case strings.Contains(msg, "syntax error"):
			return "syntax_error"
		}
		return "sql_error"
	}
	return ""
}

func sqlServerCode(number int32) string {
	switch number {
	case 2627, 2601:
		return "unique_violation"
	case 547:
		return "constraint_violation"
	case 515:
		return "not_null_violation"
	case 207:
		return "undefined_column"
	case 208:
		return "undefined_table"
	case 102:
		return "syntax_error"
	case 8152, 2628:
		return "value_too_long"
	case 8115:
		return "numeric_out_of_range"
	case 241:
		return "invalid_datetime"
	case 245:
		return "invalid_input"
	}
	return ""
}
