package services

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	"github.com/flexiapi/flexiapi/pkg/apperrors"
	"github.com/flexiapi/flexiapi/pkg/audit"
	"github.com/flexiapi/flexiapi/pkg/logging"
	"github.com/flexiapi/flexiapi/pkg/models"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
	"github.com/flexiapi/flexiapi/pkg/validation"
)

// TableService runs generic CRUD requests against whitelisted tables.
// Each method takes the raw request mapping and returns a typed result, an
// *apperrors.ValidationError, or an *apperrors.ExecutionError.
type TableService interface {
	Select(ctx context.Context, input map[string]any) (*models.SelectResult, error)
	Insert(ctx context.Context, input map[string]any) (*models.InsertResult, error)
	Update(ctx context.Context, input map[string]any) (*models.MutationResult, error)
	Delete(ctx context.Context, input map[string]any) (*models.MutationResult, error)
}

// TableServiceConfig holds the statement options of the service.
type TableServiceConfig struct {
	// IDColumn is the auto-generated key reported by inserts. Defaults to "id".
	IDColumn string
	// InjectionMode controls libinjection screening of bound string values.
	InjectionMode sqlbuilder.InjectionMode
}

type tableService struct {
	store     datasource.Store
	validator *validation.Validator
	builder   *sqlbuilder.Builder
	idColumn  string
	injection sqlbuilder.InjectionMode
	auditor   *audit.SecurityAuditor
	logger    *zap.Logger
}

// NewTableService creates the table service for store.
func NewTableService(
	store datasource.Store,
	validator *validation.Validator,
	cfg TableServiceConfig,
	logger *zap.Logger,
) TableService {
	if cfg.IDColumn == "" {
		cfg.IDColumn = sqlbuilder.DefaultIDColumn
	}
	if cfg.InjectionMode == "" {
		cfg.InjectionMode = sqlbuilder.InjectionLog
	}
	return &tableService{
		store:     store,
		validator: validator,
		builder:   sqlbuilder.NewBuilder(store.Dialect(), cfg.IDColumn),
		idColumn:  cfg.IDColumn,
		injection: cfg.InjectionMode,
		auditor:   audit.NewSecurityAuditor(logger),
		logger:    logger.Named("table"),
	}
}

// Select runs the page query and the matching COUNT(*) outside any
// transaction.
func (s *tableService) Select(ctx context.Context, input map[string]any) (*models.SelectResult, error) {
	req, err := s.validator.ValidateSelect(input)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder.Select(req)
	if err != nil {
		return nil, err
	}
	countStmt, err := s.builder.Count(req)
	if err != nil {
		return nil, err
	}
	if err := s.screen(req.Table, stmt); err != nil {
		return nil, err
	}

	rows, err := s.store.Query(ctx, stmt.SQL, stmt.Args()...)
	if err != nil {
		return nil, s.executionFailed("Query failed", req.Table, stmt, err)
	}

	countRows, err := s.store.Query(ctx, countStmt.SQL, countStmt.Args()...)
	if err != nil {
		return nil, s.executionFailed("Query failed", req.Table, countStmt, err)
	}
	var total int64
	if len(countRows) > 0 {
		total = asInt64(countRows[0]["cnt"])
	}

	return &models.SelectResult{
		Rows:       rows,
		Pagination: models.NewPageInfo(req.Pagination, total),
	}, nil
}

// Insert runs inside a transaction and reports the inserted ids. Engines that
// return ids from the statement report them exactly; the others derive a
// contiguous range from the reported insert id, which is best-effort.
func (s *tableService) Insert(ctx context.Context, input map[string]any) (*models.InsertResult, error) {
	req, err := s.validator.ValidateInsert(input)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder.Insert(req)
	if err != nil {
		return nil, err
	}
	if err := s.screen(req.Table, stmt); err != nil {
		return nil, err
	}

	var ids []int64
	err = s.inTransaction(ctx, func(tx datasource.Tx) error {
		switch s.store.Dialect().InsertIDs() {
		case sqlbuilder.IDsFromReturning:
			rows, err := tx.Query(ctx, stmt.SQL, stmt.Args()...)
			if err != nil {
				return err
			}
			ids = make([]int64, 0, len(rows))
			for _, row := range rows {
				ids = append(ids, asInt64(row[s.idColumn]))
			}
		case sqlbuilder.IDsFromFirstInsertID:
			res, err := tx.Exec(ctx, stmt.SQL, stmt.Args()...)
			if err != nil {
				return err
			}
			ids = idRange(res.LastInsertID, len(req.Rows))
		case sqlbuilder.IDsFromLastInsertID:
			res, err := tx.Exec(ctx, stmt.SQL, stmt.Args()...)
			if err != nil {
				return err
			}
			ids = idRange(res.LastInsertID-int64(len(req.Rows))+1, len(req.Rows))
		}
		return nil
	})
	if err != nil {
		return nil, s.executionFailed("Insert/Upsert failed", req.Table, stmt, err)
	}

	s.logger.Debug("Rows inserted",
		zap.String("table", req.Table),
		zap.Int("rows", len(req.Rows)),
		zap.Bool("upsert", req.Upsert))

	return &models.InsertResult{IDs: ids, Upsert: req.Upsert}, nil
}

// Update runs inside a transaction and reports the affected-row count.
func (s *tableService) Update(ctx context.Context, input map[string]any) (*models.MutationResult, error) {
	req, err := s.validator.ValidateUpdate(input)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder.Update(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "Update failed", req.Table, stmt)
}

// Delete runs inside a transaction and reports the affected-row count.
func (s *tableService) Delete(ctx context.Context, input map[string]any) (*models.MutationResult, error) {
	req, err := s.validator.ValidateDelete(input)
	if err != nil {
		return nil, err
	}

	stmt, err := s.builder.Delete(req)
	if err != nil {
		return nil, err
	}
	return s.mutate(ctx, "Delete failed", req.Table, stmt)
}

func (s *tableService) mutate(ctx context.Context, failure, table string, stmt sqlbuilder.Statement) (*models.MutationResult, error) {
	if err := s.screen(table, stmt); err != nil {
		return nil, err
	}

	var affected int64
	err := s.inTransaction(ctx, func(tx datasource.Tx) error {
		res, err := tx.Exec(ctx, stmt.SQL, stmt.Args()...)
		if err != nil {
			return err
		}
		affected = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, s.executionFailed(failure, table, stmt, err)
	}
	return &models.MutationResult{Affected: affected}, nil
}

// inTransaction runs fn between Begin and Commit. Any failure rolls the
// transaction back before the error is returned.
func (s *tableService) inTransaction(ctx context.Context, fn func(tx datasource.Tx) error) (err error) {
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Error("Rollback failed", zap.String("error", logging.SanitizeError(rbErr)))
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// screen applies the configured injection mode to the bound values of stmt.
func (s *tableService) screen(table string, stmt sqlbuilder.Statement) error {
	if s.injection == sqlbuilder.InjectionOff {
		return nil
	}
	findings := sqlbuilder.ScreenStatement(stmt)
	if len(findings) == 0 {
		return nil
	}

	for _, f := range findings {
		s.auditor.LogInjectionAttempt(audit.InjectionDetails{
			Table:       table,
			ParamName:   f.ParamName,
			Fingerprint: f.Fingerprint,
			Rejected:    s.injection == sqlbuilder.InjectionReject,
		})
	}
	if s.injection == sqlbuilder.InjectionReject {
		return sqlbuilder.RejectionError(findings)
	}
	return nil
}

func (s *tableService) executionFailed(message, table string, stmt sqlbuilder.Statement, err error) error {
	s.logger.Error(message,
		zap.String("table", table),
		zap.String("sql", logging.SanitizeQuery(stmt.SQL)),
		zap.Int("params", len(stmt.Params)),
		zap.String("error", logging.SanitizeError(err)))
	return apperrors.Execution(message, err)
}

// idRange returns n consecutive ids starting at first, or nil when the engine
// reported no usable id.
func idRange(first int64, n int) []int64 {
	if first < 1 || n < 1 {
		return []int64{}
	}
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = first + int64(i)
	}
	return ids
}

// asInt64 converts a scanned numeric column to int64. Drivers differ: MySQL
// returns text for some aggregates, pgx returns int64, go-mssqldb int64.
func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case uint64:
		if t > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(t)
	case float64:
		return int64(t)
	case []byte:
		return asInt64(string(t))
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	default:
		return 0
	}
}
