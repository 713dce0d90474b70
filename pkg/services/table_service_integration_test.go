//go:build integration

package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/testhelpers"
)

func TestTableService_Engines(t *testing.T) {
	for name, get := range map[string]func(*testing.T) *testhelpers.TestDB{
		"mysql":    testhelpers.GetMySQL,
		"postgres": testhelpers.GetPostgres,
	} {
		t.Run(name, func(t *testing.T) {
			ctx := t.Context()
			db := get(t)
			svc := NewTableService(db.Store, newValidatorFor("users"), TableServiceConfig{}, zap.NewNop())

			tag := uuid.NewString()[:8]
			inserted, err := svc.Insert(ctx, map[string]any{
				"table": "users",
				"data": []any{
					map[string]any{"username": "ann-" + tag, "email": "ann-" + tag + "@example.com"},
					map[string]any{"username": "bob-" + tag, "email": "bob-" + tag + "@example.com"},
				},
			})
			require.NoError(t, err)
			require.Len(t, inserted.IDs, 2)
			assert.Equal(t, inserted.IDs[0]+1, inserted.IDs[1], "ids are consecutive")

			selected, err := svc.Select(ctx, map[string]any{
				"table":     "users",
				"condition": []any{map[string]any{"field": "id", "operator": "IN", "value": []any{inserted.IDs[0], inserted.IDs[1]}}},
				"order":     []any{map[string]any{"column": "id", "direction": "ASC"}},
			})
			require.NoError(t, err)
			require.Len(t, selected.Rows, 2)
			assert.Equal(t, "ann-"+tag, selected.Rows[0]["username"])
			assert.EqualValues(t, 2, selected.Pagination.TotalRows)

			updated, err := svc.Update(ctx, map[string]any{
				"table": "users",
				"where": map[string]any{"field": "id", "operator": "=", "value": inserted.IDs[1]},
				"data":  map[string]any{"status": "blocked"},
			})
			require.NoError(t, err)
			assert.EqualValues(t, 1, updated.Affected)

			_, err = svc.Insert(ctx, map[string]any{
				"table": "users",
				"data": []any{
					map[string]any{"username": "cid-" + tag, "email": "cid-" + tag + "@example.com"},
					map[string]any{"username": "dup-" + tag, "email": "ann-" + tag + "@example.com"},
				},
			})
			require.Error(t, err)

			rows, err := db.Store.Query(ctx, "SELECT COUNT(*) AS cnt FROM users WHERE username = 'cid-"+tag+"'")
			require.NoError(t, err)
			assert.EqualValues(t, 0, asInt64(rows[0]["cnt"]), "failed insert is rolled back")

			deleted, err := svc.Delete(ctx, map[string]any{
				"table":  "users",
				"column": "id",
				"values": []any{inserted.IDs[0], inserted.IDs[1]},
			})
			require.NoError(t, err)
			assert.EqualValues(t, 2, deleted.Affected)
		})
	}
}
