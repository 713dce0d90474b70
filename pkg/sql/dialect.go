package sql

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/flexiapi/flexiapi/pkg/apperrors"
)

// IDStrategy describes how an engine reports the ids of a multi-row insert.
type IDStrategy int

const (
	// IDsFromFirstInsertID: the reported insert id is the first row of the
	// batch and the batch is assumed contiguous (MySQL auto-increment).
	IDsFromFirstInsertID IDStrategy = iota
	// IDsFromLastInsertID: the reported insert id is the last row of the batch.
	IDsFromLastInsertID
	// IDsFromReturning: the statement itself returns one id per row.
	IDsFromReturning
)

// Dialect is the engine-specific part of statement rendering. The set of
// dialects is closed; see MySQL, SQLite, Postgres and SQLServer.
type Dialect interface {
	// Name is the registered engine name ("mysql", "sqlite", ...).
	Name() string

	// Quote wraps an already validated identifier.
	Quote(name string) string

	// Placeholder renders the bind marker for the 1-based parameter position.
	Placeholder(position int) string

	// Paginate renders the row window appended to a select. ordered tells
	// whether the select already has an ORDER BY clause.
	Paginate(limit, offset int, ordered bool) string

	// DeleteWithLimit renders a delete of at most limit rows. where is a
	// complete "WHERE ..." clause and table is quoted.
	DeleteWithLimit(table, where string, limit int) string

	// Upsert renders the conflict clause that overwrites every column with
	// the incoming value. All names are quoted.
	Upsert(columns, conflict []string) (string, error)

	// InsertIDs tells how inserted ids are reported.
	InsertIDs() IDStrategy

	// ReturnIDs renders the clauses that make an insert return its ids. Output
	// goes between the column list and VALUES, returning after the statement.
	ReturnIDs(idColumn string) (output, returning string)
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string                      { return "mysql" }
func (mysqlDialect) Quote(name string) string          { return "`" + name + "`" }
func (mysqlDialect) Placeholder(int) string            { return "?" }
func (mysqlDialect) InsertIDs() IDStrategy             { return IDsFromFirstInsertID }
func (mysqlDialect) ReturnIDs(string) (string, string) { return "", "" }

func (mysqlDialect) Paginate(limit, offset int, _ bool) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func (mysqlDialect) DeleteWithLimit(table, where string, limit int) string {
	return fmt.Sprintf("DELETE FROM %s %s LIMIT %d", table, where, limit)
}

func (mysqlDialect) Upsert(columns, _ []string) (string, error) {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s=VALUES(%s)", c, c)
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(parts, ","), nil
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string                      { return "sqlite" }
func (sqliteDialect) Quote(name string) string          { return "`" + name + "`" }
func (sqliteDialect) Placeholder(int) string            { return "?" }
func (sqliteDialect) InsertIDs() IDStrategy             { return IDsFromLastInsertID }
func (sqliteDialect) ReturnIDs(string) (string, string) { return "", "" }

func (sqliteDialect) Paginate(limit, offset int, _ bool) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

// SQLite builds without SQLITE_ENABLE_UPDATE_DELETE_LIMIT, so the limit goes
// through a rowid subquery.
func (sqliteDialect) DeleteWithLimit(table, where string, limit int) string {
	return fmt.Sprintf("DELETE FROM %s WHERE rowid IN (SELECT rowid FROM %s %s LIMIT %d)", table, table, where, limit)
}

func (sqliteDialect) Upsert(columns, conflict []string) (string, error) {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s=excluded.%s", c, c)
	}
	target := ""
	if len(conflict) > 0 {
		target = " (" + strings.Join(conflict, ",") + ")"
	}
	return " ON CONFLICT" + target + " DO UPDATE SET " + strings.Join(parts, ","), nil
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (postgresDialect) Placeholder(position int) string { return fmt.Sprintf("$%d", position) }
func (postgresDialect) InsertIDs() IDStrategy           { return IDsFromReturning }

func (postgresDialect) ReturnIDs(idColumn string) (string, string) {
	return "", " RETURNING " + idColumn
}

func (postgresDialect) Paginate(limit, offset int, _ bool) string {
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}

func (postgresDialect) DeleteWithLimit(table, where string, limit int) string {
	return fmt.Sprintf("DELETE FROM %s WHERE ctid IN (SELECT ctid FROM %s %s LIMIT %d)", table, table, where, limit)
}

func (postgresDialect) Upsert(columns, conflict []string) (string, error) {
	if len(conflict) == 0 {
		return "", apperrors.Validation("conflict", "Upsert on postgres requires conflict columns")
	}
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s=EXCLUDED.%s", c, c)
	}
	return " ON CONFLICT (" + strings.Join(conflict, ",") + ") DO UPDATE SET " + strings.Join(parts, ","), nil
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string                    { return "sqlserver" }
func (sqlServerDialect) Quote(name string) string        { return "[" + name + "]" }
func (sqlServerDialect) Placeholder(position int) string { return fmt.Sprintf("@p%d", position) }
func (sqlServerDialect) InsertIDs() IDStrategy           { return IDsFromReturning }

func (sqlServerDialect) ReturnIDs(idColumn string) (string, string) {
	return " OUTPUT INSERTED." + idColumn, ""
}

// OFFSET/FETCH is only valid after ORDER BY.
func (sqlServerDialect) Paginate(limit, offset int, ordered bool) string {
	order := ""
	if !ordered {
		order = " ORDER BY (SELECT NULL)"
	}
	return fmt.Sprintf("%s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", order, offset, limit)
}

func (sqlServerDialect) DeleteWithLimit(table, where string, limit int) string {
	return fmt.Sprintf("DELETE TOP (%d) FROM %s %s", limit, table, where)
}

func (sqlServerDialect) Upsert([]string, []string) (string, error) {
	return "", apperrors.ValidationWrap("upsert", apperrors.ErrUnsupported, "Upsert is not supported for sqlserver")
}

var (
	MySQL     Dialect = mysqlDialect{}
	SQLite    Dialect = sqliteDialect{}
	Postgres  Dialect = postgresDialect{}
	SQLServer Dialect = sqlServerDialect{}
)

// DialectByName returns the dialect registered for an engine name.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	default:
		return nil, fmt.Errorf("unknown dialect: %s", name)
	}
}
