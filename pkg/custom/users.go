// Package custom holds the sample custom methods shipped with the server.
package custom

import (
	"context"
	"fmt"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	"github.com/flexiapi/flexiapi/pkg/jsonutil"
	"github.com/flexiapi/flexiapi/pkg/models"
	"github.com/flexiapi/flexiapi/pkg/services"
	sqlbuilder "github.com/flexiapi/flexiapi/pkg/sql"
)

const (
	defaultTopUsers = 5
	maxTopUsers     = 100
)

// Register adds the sample methods to r.
func Register(r services.CustomMethodRegistry) {
	r.Register("getTopUsers", TopUsers)
	r.Register("activeUserCount", ActiveUserCount)
}

// TopUsers returns the most recently created users. params.limit defaults to
// 5 and is capped at 100.
func TopUsers(ctx context.Context, db datasource.Store, params map[string]any) (any, error) {
	limit := defaultTopUsers
	if n, ok := jsonutil.FlexibleInt(params["limit"]); ok {
		limit = min(max(n, 1), maxTopUsers)
	}

	stmt, err := sqlbuilder.NewBuilder(db.Dialect(), "").Select(&models.SelectRequest{
		TableRequest: models.TableRequest{Table: "users", Operation: models.OperationSelect},
		Columns:      []string{"id", "username", "email"},
		Order:        []models.OrderSpec{{Column: "created_at", Direction: models.DirectionDesc}},
		Pagination:   models.Pagination{Page: 1, Limit: limit},
	})
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, stmt.SQL, stmt.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query top users: %w", err)
	}
	return rows, nil
}

// ActiveUserCount returns {"total": n} for users with status 'active'.
func ActiveUserCount(ctx context.Context, db datasource.Store, _ map[string]any) (any, error) {
	stmt, err := sqlbuilder.NewBuilder(db.Dialect(), "").Count(&models.SelectRequest{
		TableRequest: models.TableRequest{Table: "users", Operation: models.OperationSelect},
		Conditions:   []models.Condition{{Field: "status", Operator: models.OpEqual, Value: "active"}},
	})
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(ctx, stmt.SQL, stmt.Args()...)
	if err != nil {
		return nil, fmt.Errorf("count active users: %w", err)
	}
	total := any(0)
	if len(rows) > 0 {
		total = rows[0]["cnt"]
	}
	return map[string]any{"total": total}, nil
}
