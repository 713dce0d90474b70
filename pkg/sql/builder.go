package sql

import (
	"fmt"
	"sort"
	"strings"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/models"
)

// DefaultIDColumn is the auto-generated key returned by inserts on engines
// that report ids through RETURNING / OUTPUT.
const DefaultIDColumn = "id"

// Builder compiles validated requests into statements. It holds no state
// between calls and is safe for concurrent use.
type Builder struct {
	dialect  Dialect
	idColumn string
}

// NewBuilder creates a builder for the dialect. An empty idColumn means
// DefaultIDColumn.
func NewBuilder(d Dialect, idColumn string) *Builder {
	if idColumn == "" {
		idColumn = DefaultIDColumn
	}
	return &Builder{dialect: d, idColumn: idColumn}
}

// Dialect returns the dialect statements are rendered for.
func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Where compiles conditions into a "WHERE ..." clause, or "" when there are
// none. Conditions are AND-joined in input order.
func (b *Builder) Where(conditions []models.Condition) (string, []Param, error) {
	bd := newBinder(b.dialect)
	clause, err := b.compileWhere(bd, conditions)
	if err != nil {
		return "", nil, err
	}
	return clause, bd.params, nil
}

func (b *Builder) compileWhere(bd *binder, conditions []models.Condition) (string, error) {
	clauses := make([]string, 0, len(conditions))
	idx := 0

	for _, cond := range conditions {
		field, err := QuoteIdentifier(b.dialect, "field", cond.Field)
		if err != nil {
			return "", err
		}

		op := strings.ToUpper(strings.TrimSpace(cond.Operator))
		if op == "" {
			op = models.OpEqual
		}
		if !models.IsValidOperator(op) {
			return "", apperrors.Validation("operator", "Invalid operator: %s", cond.Operator)
		}

		if models.IsListOperator(op) {
			values, ok := cond.Value.([]any)
			if !ok || len(values) == 0 {
				return "", apperrors.Validation("value", "Operator %s requires a non-empty list for field %s", op, cond.Field)
			}
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = bd.bind(fmt.Sprintf("%s_in_%d", cond.Field, idx), v)
				idx++
			}
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", field, op, strings.Join(placeholders, ",")))
			continue
		}

		if _, isList := cond.Value.([]any); isList {
			return "", apperrors.Validation("value", "Operator %s requires a scalar value for field %s", op, cond.Field)
		}
		placeholder := bd.bind(fmt.Sprintf("%s_%d", cond.Field, idx), cond.Value)
		idx++
		clauses = append(clauses, fmt.Sprintf("%s %s %s", field, op, placeholder))
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), nil
}

// Select compiles a paginated select.
func (b *Builder) Select(req *models.SelectRequest) (Statement, error) {
	table, err := QuoteIdentifier(b.dialect, "table", req.Table)
	if err != nil {
		return Statement{}, err
	}

	cols, err := b.projection(req.Columns)
	if err != nil {
		return Statement{}, err
	}

	bd := newBinder(b.dialect)
	where, err := b.compileWhere(bd, req.Conditions)
	if err != nil {
		return Statement{}, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(table)
	if where != "" {
		sb.WriteString(" ")
		sb.WriteString(where)
	}

	order := b.orderBy(req.Order)
	sb.WriteString(order)

	if req.Pagination.Limit > 0 {
		page := req.Pagination
		if page.Page < 1 {
			page.Page = 1
		}
		sb.WriteString(b.dialect.Paginate(page.Limit, page.Offset(), order != ""))
	}

	return bd.statement(sb.String()), nil
}

// Count compiles the row count of a select. It shares the select's WHERE
// clause and bindings exactly.
func (b *Builder) Count(req *models.SelectRequest) (Statement, error) {
	table, err := QuoteIdentifier(b.dialect, "table", req.Table)
	if err != nil {
		return Statement{}, err
	}

	bd := newBinder(b.dialect)
	where, err := b.compileWhere(bd, req.Conditions)
	if err != nil {
		return Statement{}, err
	}

	sql := "SELECT COUNT(*) AS cnt FROM " + table
	if where != "" {
		sql += " " + where
	}
	return bd.statement(sql), nil
}

func (b *Builder) projection(columns []string) (string, error) {
	if len(columns) == 0 || (len(columns) == 1 && columns[0] == "*") {
		return "*", nil
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		q, err := QuoteIdentifier(b.dialect, "column", c)
		if err != nil {
			return "", err
		}
		quoted[i] = q
	}
	return strings.Join(quoted, ","), nil
}

// orderBy drops entries with an invalid column or direction.
func (b *Builder) orderBy(order []models.OrderSpec) string {
	parts := make([]string, 0, len(order))
	for _, o := range order {
		if !IsValidIdentifier(o.Column) {
			continue
		}
		dir := strings.ToUpper(strings.TrimSpace(o.Direction))
		if dir == "" {
			dir = models.DirectionAsc
		}
		if dir != models.DirectionAsc && dir != models.DirectionDesc {
			continue
		}
		parts = append(parts, b.dialect.Quote(o.Column)+" "+dir)
	}
	if len(parts) == 0 {
		return ""
	}
	return " ORDER BY " + strings.Join(parts, ",")
}

// InsertColumns returns the column set of an insert: the keys of the first
// row, sorted.
func InsertColumns(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Insert compiles a multi-row insert, optionally as an upsert.
func (b *Builder) Insert(req *models.InsertRequest) (Statement, error) {
	table, err := QuoteIdentifier(b.dialect, "table", req.Table)
	if err != nil {
		return Statement{}, err
	}
	if len(req.Rows) == 0 {
		return Statement{}, apperrors.Validation("data", "Missing required field: data")
	}

	columns := InsertColumns(req.Rows)
	if len(columns) == 0 {
		return Statement{}, apperrors.Validation("data", "Invalid data format, must be array of objects")
	}
	quoted := make([]string, len(columns))
	for i, c := range columns {
		if quoted[i], err = QuoteIdentifier(b.dialect, "column", c); err != nil {
			return Statement{}, err
		}
	}

	bd := newBinder(b.dialect)
	groups := make([]string, len(req.Rows))
	for i, row := range req.Rows {
		placeholders := make([]string, len(columns))
		for j, col := range columns {
			placeholders[j] = bd.bind(fmt.Sprintf("%s_%d", col, i), row[col])
		}
		groups[i] = "(" + strings.Join(placeholders, ",") + ")"
	}

	var output, returning string
	if b.dialect.InsertIDs() == IDsFromReturning {
		idCol, err := QuoteIdentifier(b.dialect, "id column", b.idColumn)
		if err != nil {
			return Statement{}, err
		}
		output, returning = b.dialect.ReturnIDs(idCol)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s)%s VALUES %s", table, strings.Join(quoted, ","), output, strings.Join(groups, ","))

	if req.Upsert {
		conflict := make([]string, len(req.ConflictColumns))
		for i, c := range req.ConflictColumns {
			if conflict[i], err = QuoteIdentifier(b.dialect, "conflict column", c); err != nil {
				return Statement{}, err
			}
		}
		clause, err := b.dialect.Upsert(quoted, conflict)
		if err != nil {
			return Statement{}, err
		}
		sb.WriteString(clause)
	}
	sb.WriteString(returning)

	return bd.statement(sb.String()), nil
}

// Update compiles an update of the rows matching a single condition.
func (b *Builder) Update(req *models.UpdateRequest) (Statement, error) {
	table, err := QuoteIdentifier(b.dialect, "table", req.Table)
	if err != nil {
		return Statement{}, err
	}
	if len(req.Data) == 0 {
		return Statement{}, apperrors.Validation("data", "Missing or invalid data for update")
	}

	columns := make([]string, 0, len(req.Data))
	for c := range req.Data {
		columns = append(columns, c)
	}
	sort.Strings(columns)

	bd := newBinder(b.dialect)
	sets := make([]string, len(columns))
	for i, c := range columns {
		col, err := QuoteIdentifier(b.dialect, "column", c)
		if err != nil {
			return Statement{}, err
		}
		sets[i] = col + " = " + bd.bind("set_"+c, req.Data[c])
	}

	where, err := b.compileWhere(bd, []models.Condition{req.Where})
	if err != nil {
		return Statement{}, err
	}

	return bd.statement(fmt.Sprintf("UPDATE %s SET %s %s", table, strings.Join(sets, ","), where)), nil
}

// Delete compiles a delete of the rows whose column is in the value list.
func (b *Builder) Delete(req *models.DeleteRequest) (Statement, error) {
	table, err := QuoteIdentifier(b.dialect, "table", req.Table)
	if err != nil {
		return Statement{}, err
	}
	if len(req.Values) == 0 {
		return Statement{}, apperrors.Validation("values", "Missing or invalid values for delete")
	}

	bd := newBinder(b.dialect)
	where, err := b.compileWhere(bd, []models.Condition{{
		Field:    req.Column,
		Operator: models.OpIn,
		Value:    req.Values,
	}})
	if err != nil {
		return Statement{}, err
	}

	if req.Limit > 0 {
		return bd.statement(b.dialect.DeleteWithLimit(table, where, req.Limit)), nil
	}
	return bd.statement(fmt.Sprintf("DELETE FROM %s %s", table, where)), nil
}
