package models

// Operation is the kind of statement a table request compiles to.
type Operation string

const (
	OperationSelect Operation = "select"
	OperationInsert Operation = "insert"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Mutates reports whether the operation must run inside a transaction.
func (o Operation) Mutates() bool {
	return o == OperationInsert || o == OperationUpdate || o == OperationDelete
}

// Condition operators accepted by the grammar. Only AND-joined conditions exist.
const (
	OpEqual        = "="
	OpNotEqual     = "!="
	OpLess         = "<"
	OpLessEqual    = "<="
	OpGreater      = ">"
	OpGreaterEqual = ">="
	OpLike         = "LIKE"
	OpIn           = "IN"
	OpNotIn        = "NOT IN"
)

var validOperators = map[string]bool{
	OpEqual: true, OpNotEqual: true, OpLess: true, OpLessEqual: true,
	OpGreater: true, OpGreaterEqual: true, OpLike: true, OpIn: true, OpNotIn: true,
}

// IsValidOperator reports whether op (already upper-cased) is part of the grammar.
func IsValidOperator(op string) bool {
	return validOperators[op]
}

// IsListOperator reports whether op takes a sequence value.
func IsListOperator(op string) bool {
	return op == OpIn || op == OpNotIn
}

// Sort directions.
const (
	DirectionAsc  = "ASC"
	DirectionDesc = "DESC"
)

// TableRequest names the table and operation of a request.
type TableRequest struct {
	Table     string
	Operation Operation
}

// Condition is a single filter predicate. Value is a scalar, or a non-empty
// []any for IN / NOT IN.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// OrderSpec orders a select by one column.
type OrderSpec struct {
	Column    string
	Direction string
}

// Pagination is the validated page window of a select.
type Pagination struct {
	Page  int
	Limit int
}

// Offset returns the row offset of the page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.Limit
}

// SelectRequest is a validated select. Nil Columns selects all columns.
type SelectRequest struct {
	TableRequest
	Columns    []string
	Conditions []Condition
	Order      []OrderSpec
	Pagination Pagination
}

// InsertRequest is a validated insert of one or more rows. The column set of
// the first row is used for every row.
type InsertRequest struct {
	TableRequest
	Rows            []map[string]any
	Upsert          bool
	ConflictColumns []string
}

// UpdateRequest is a validated update of the rows matching Where.
type UpdateRequest struct {
	TableRequest
	Where Condition
	Data  map[string]any
}

// DeleteRequest deletes rows whose Column is one of Values. Limit 0 means no limit.
type DeleteRequest struct {
	TableRequest
	Column string
	Values []any
	Limit  int
}
