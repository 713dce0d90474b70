package validation

import (
	"strings"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/jsonutil"
	"github.com/flexiapi/flexiapi/pkg/models"
	"github.com/flexiapi/flexiapi/pkg/sql"
)

// parseColumns accepts a comma-separated string or a sequence of names.
// Absent, empty or a lone "*" selects every column and returns nil.
func parseColumns(raw any) ([]string, error) {
	var names []string
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		for _, part := range strings.Split(t, ",") {
			names = append(names, strings.TrimSpace(part))
		}
	case []string:
		names = t
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, apperrors.Validation("columns", "Invalid column name: %v", e)
			}
			names = append(names, strings.TrimSpace(s))
		}
	default:
		return nil, apperrors.Validation("columns", "Columns must be a comma-separated string or an array")
	}

	if len(names) == 0 || (len(names) == 1 && (names[0] == "*" || names[0] == "")) {
		return nil, nil
	}
	for _, name := range names {
		if err := sql.ValidateIdentifier("column", name); err != nil {
			return nil, err
		}
	}
	return names, nil
}

// ParseConditions accepts a JSON-encoded array, a sequence of condition
// mappings, or a single mapping. Empty input means no conditions.
func ParseConditions(raw any) ([]models.Condition, error) {
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		decoded, err := jsonutil.DecodeString(t)
		if err != nil {
			return nil, apperrors.Validation("condition", "Invalid JSON format for condition")
		}
		switch d := decoded.(type) {
		case []any:
			return parseConditionList(d)
		case map[string]any:
			return parseConditionList([]any{d})
		default:
			return nil, apperrors.Validation("condition", "Invalid JSON format for condition")
		}
	case []any:
		return parseConditionList(t)
	case []map[string]any:
		list := make([]any, len(t))
		for i, m := range t {
			list[i] = m
		}
		return parseConditionList(list)
	case map[string]any:
		if len(t) == 0 {
			return nil, nil
		}
		return parseConditionList([]any{t})
	default:
		return nil, apperrors.Validation("condition", "Condition must be JSON string or array")
	}
}

func parseConditionList(list []any) ([]models.Condition, error) {
	conditions := make([]models.Condition, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			return nil, apperrors.Validation("condition", "Each condition must be an object with field, operator and value")
		}
		cond, err := parseCondition(m)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// parseCondition checks one {field, operator, value} mapping. The operator is
// upper-cased and defaults to "=".
func parseCondition(m map[string]any) (models.Condition, error) {
	field, _ := m["field"].(string)
	if err := sql.ValidateIdentifier("field", field); err != nil {
		return models.Condition{}, err
	}

	op := models.OpEqual
	if raw, present := m["operator"]; present && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return models.Condition{}, apperrors.Validation("operator", "Invalid operator: %v", raw)
		}
		if s = strings.ToUpper(strings.Join(strings.Fields(s), " ")); s != "" {
			op = s
		}
	}
	if !models.IsValidOperator(op) {
		return models.Condition{}, apperrors.Validation("operator", "Invalid operator: %s", op)
	}

	value := jsonutil.NormalizeValue(m["value"])
	list, isList := value.([]any)
	if models.IsListOperator(op) {
		if !isList || len(list) == 0 {
			return models.Condition{}, apperrors.Validation("value", "Operator %s requires a non-empty array value for field %s", op, field)
		}
		for _, e := range list {
			if !isScalar(e) {
				return models.Condition{}, apperrors.Validation("value", "Operator %s requires scalar list entries for field %s", op, field)
			}
		}
	} else if !isScalar(value) {
		return models.Condition{}, apperrors.Validation("value", "Operator %s requires a scalar value for field %s", op, field)
	}

	return models.Condition{Field: field, Operator: op, Value: value}, nil
}

// parseOrder accepts a sequence of {column, direction} mappings, a single
// mapping, or either as a JSON string. Malformed entries are dropped.
func parseOrder(raw any) []models.OrderSpec {
	if s, ok := raw.(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		decoded, err := jsonutil.DecodeString(s)
		if err != nil {
			return nil
		}
		raw = decoded
	}

	var list []any
	switch t := raw.(type) {
	case []any:
		list = t
	case map[string]any:
		list = []any{t}
	default:
		return nil
	}

	var order []models.OrderSpec
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		col, _ := m["column"].(string)
		if !sql.IsValidIdentifier(col) {
			continue
		}
		dir := models.DirectionAsc
		if d, ok := m["direction"].(string); ok && strings.TrimSpace(d) != "" {
			dir = strings.ToUpper(strings.TrimSpace(d))
		}
		if dir != models.DirectionAsc && dir != models.DirectionDesc {
			continue
		}
		order = append(order, models.OrderSpec{Column: col, Direction: dir})
	}
	return order
}

// parseRows normalizes insert data to a sequence of row mappings. The first
// row fixes the column set; its names are validated here.
func parseRows(raw any) ([]map[string]any, error) {
	var list []any
	switch t := raw.(type) {
	case nil:
		return nil, apperrors.Validation("data", "Missing required field: data")
	case map[string]any:
		if len(t) == 0 {
			return nil, apperrors.Validation("data", "Missing required field: data")
		}
		list = []any{t}
	case []any:
		if len(t) == 0 {
			return nil, apperrors.Validation("data", "Missing required field: data")
		}
		list = t
	case []map[string]any:
		if len(t) == 0 {
			return nil, apperrors.Validation("data", "Missing required field: data")
		}
		for _, m := range t {
			list = append(list, m)
		}
	default:
		return nil, apperrors.Validation("data", "Invalid data format, must be array of objects")
	}

	rows := make([]map[string]any, len(list))
	for i, e := range list {
		m, ok := e.(map[string]any)
		if !ok || (i == 0 && len(m) == 0) {
			return nil, apperrors.Validation("data", "Invalid data format, must be array of objects")
		}
		row := make(map[string]any, len(m))
		for col, val := range m {
			if i == 0 {
				if err := sql.ValidateIdentifier("column", col); err != nil {
					return nil, err
				}
			}
			val = jsonutil.NormalizeValue(val)
			if !isScalar(val) {
				return nil, apperrors.Validation("data", "Value for column %s must be a scalar", col)
			}
			row[col] = val
		}
		rows[i] = row
	}
	return rows, nil
}

// parseIdentifierList accepts a comma-separated string or a sequence of
// names. Absent means none.
func parseIdentifierList(field string, raw any) ([]string, error) {
	var names []string
	switch t := raw.(type) {
	case nil:
		return nil, nil
	case string:
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				names = append(names, part)
			}
		}
	case []any:
		for _, e := range t {
			s, _ := e.(string)
			names = append(names, s)
		}
	case []string:
		names = t
	default:
		return nil, apperrors.Validation(field, "Invalid %s column list", field)
	}

	for _, name := range names {
		if err := sql.ValidateIdentifier(field+" column", name); err != nil {
			return nil, err
		}
	}
	return names, nil
}
