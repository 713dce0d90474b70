// Package validation turns loosely typed request payloads into typed table
// requests. Every failure is an *apperrors.ValidationError and nothing here
// touches storage.
package validation

import (
	"math"
	"strings"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/jsonutil"
	"github.com/flexiapi/flexiapi/pkg/models"
	"github.com/flexiapi/flexiapi/pkg/sql"
)

// TableChecker is the table access policy consulted before a request is
// accepted.
type TableChecker interface {
	IsTableAllowed(name string) bool
}

// Limits bounds the page size of selects.
type Limits struct {
	DefaultLimit int
	MaxLimit     int
}

// Validator validates raw request payloads. It holds only read-only
// configuration and is safe for concurrent use.
type Validator struct {
	tables TableChecker
	limits Limits
}

// NewValidator creates a validator. Non-positive limits fall back to 20 and
// 100, and the default never exceeds the max.
func NewValidator(tables TableChecker, limits Limits) *Validator {
	if limits.MaxLimit < 1 {
		limits.MaxLimit = 100
	}
	if limits.DefaultLimit < 1 {
		limits.DefaultLimit = 20
	}
	if limits.DefaultLimit > limits.MaxLimit {
		limits.DefaultLimit = limits.MaxLimit
	}
	return &Validator{tables: tables, limits: limits}
}

// Limits returns the effective page-size limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// ValidateTable checks presence, identifier syntax and the access policy.
func (v *Validator) ValidateTable(raw any) (string, error) {
	name, _ := raw.(string)
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Validation("table", "Missing required field: table")
	}
	if !sql.IsValidIdentifier(name) {
		return "", apperrors.ValidationWrap("table", apperrors.ErrInvalidIdentifier, "Invalid table name: %s", name)
	}
	if v.tables != nil && !v.tables.IsTableAllowed(name) {
		return "", apperrors.ValidationWrap("table", apperrors.ErrTableNotAllowed, "Table '%s' is not whitelisted", name)
	}
	return name, nil
}

// ValidateSelect validates table, columns, condition, order, page and limit.
func (v *Validator) ValidateSelect(input map[string]any) (*models.SelectRequest, error) {
	table, err := v.ValidateTable(input["table"])
	if err != nil {
		return nil, err
	}

	columns, err := parseColumns(input["columns"])
	if err != nil {
		return nil, err
	}

	conditions, err := ParseConditions(input["condition"])
	if err != nil {
		return nil, err
	}

	return &models.SelectRequest{
		TableRequest: models.TableRequest{Table: table, Operation: models.OperationSelect},
		Columns:      columns,
		Conditions:   conditions,
		Order:        parseOrder(input["order"]),
		Pagination:   v.pagination(input["page"], input["limit"]),
	}, nil
}

// ValidateInsert validates table and data rows, plus the optional upsert flag
// and conflict target.
func (v *Validator) ValidateInsert(input map[string]any) (*models.InsertRequest, error) {
	table, err := v.ValidateTable(input["table"])
	if err != nil {
		return nil, err
	}

	rows, err := parseRows(input["data"])
	if err != nil {
		return nil, err
	}

	conflict, err := parseIdentifierList("conflict", input["conflict"])
	if err != nil {
		return nil, err
	}

	return &models.InsertRequest{
		TableRequest:    models.TableRequest{Table: table, Operation: models.OperationInsert},
		Rows:            rows,
		Upsert:          jsonutil.FlexibleBool(input["upsert"]),
		ConflictColumns: conflict,
	}, nil
}

// ValidateUpdate validates table, the single where condition and the data
// mapping.
func (v *Validator) ValidateUpdate(input map[string]any) (*models.UpdateRequest, error) {
	table, err := v.ValidateTable(input["table"])
	if err != nil {
		return nil, err
	}

	where, ok := input["where"].(map[string]any)
	if !ok || len(where) == 0 {
		return nil, apperrors.Validation("where", "Missing or invalid where condition")
	}
	cond, err := parseCondition(where)
	if err != nil {
		return nil, err
	}

	data, ok := input["data"].(map[string]any)
	if !ok || len(data) == 0 {
		return nil, apperrors.Validation("data", "Missing or invalid data for update")
	}
	set := make(map[string]any, len(data))
	for col, val := range data {
		if err := sql.ValidateIdentifier("column", col); err != nil {
			return nil, err
		}
		set[col] = jsonutil.NormalizeValue(val)
	}

	return &models.UpdateRequest{
		TableRequest: models.TableRequest{Table: table, Operation: models.OperationUpdate},
		Where:        cond,
		Data:         set,
	}, nil
}

// ValidateDelete validates table, column, values and the optional limit.
func (v *Validator) ValidateDelete(input map[string]any) (*models.DeleteRequest, error) {
	table, err := v.ValidateTable(input["table"])
	if err != nil {
		return nil, err
	}

	column, _ := input["column"].(string)
	if column == "" || !sql.IsValidIdentifier(column) {
		return nil, apperrors.ValidationWrap("column", apperrors.ErrInvalidIdentifier, "Missing or invalid column for delete")
	}

	list, ok := input["values"].([]any)
	if !ok || len(list) == 0 {
		return nil, apperrors.Validation("values", "Missing or invalid values for delete")
	}
	values := make([]any, len(list))
	for i, val := range list {
		if !isScalar(val) {
			return nil, apperrors.Validation("values", "Values for delete must be scalars")
		}
		values[i] = jsonutil.NormalizeValue(val)
	}

	limit := 0
	if raw, present := input["limit"]; present && raw != nil && raw != "" {
		n, ok := jsonutil.FlexibleInt(raw)
		if !ok {
			return nil, apperrors.Validation("limit", "Invalid limit for delete")
		}
		limit = max(1, n)
	}

	return &models.DeleteRequest{
		TableRequest: models.TableRequest{Table: table, Operation: models.OperationDelete},
		Column:       column,
		Values:       values,
		Limit:        limit,
	}, nil
}

// pagination clamps limit to [1, max], with unusable limits falling back to
// the default, and page to [1, last page whose offset fits in an int].
func (v *Validator) pagination(rawPage, rawLimit any) models.Pagination {
	limit, ok := jsonutil.FlexibleInt(rawLimit)
	if !ok || limit < 1 {
		limit = v.limits.DefaultLimit
	}
	limit = min(limit, v.limits.MaxLimit)

	page, ok := jsonutil.FlexibleInt(rawPage)
	if !ok || page < 1 {
		page = 1
	}
	page = min(page, math.MaxInt/limit+1)

	return models.Pagination{Page: page, Limit: limit}
}

func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return false
	default:
		return true
	}
}
