package custom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flexiapi/flexiapi/pkg/adapters/datasource"
	_ "github.com/flexiapi/flexiapi/pkg/adapters/datasource/sqlite"
	"github.com/flexiapi/flexiapi/pkg/services"
)

func seededStore(t *testing.T) datasource.Store {
	t.Helper()
	ctx := t.Context()
	store, err := datasource.Open(ctx, datasource.Config{Driver: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	_, err = store.Exec(ctx, `CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		email TEXT,
		status TEXT,
		created_at TEXT
	)`)
	require.NoError(t, err)
	_, err = store.Exec(ctx, `INSERT INTO users (username, email, status, created_at) VALUES
		('ann', 'ann@example.com', 'active', '2024-01-01'),
		('bob', 'bob@example.com', 'blocked', '2024-02-01'),
		('cid', 'cid@example.com', 'active', '2024-03-01')`)
	require.NoError(t, err)
	return store
}

func TestRegister(t *testing.T) {
	r := services.NewCustomMethodRegistry(seededStore(t), zap.NewNop())
	Register(r)
	assert.Equal(t, []string{"activeUserCount", "getTopUsers"}, r.List())
}

func TestTopUsers(t *testing.T) {
	store := seededStore(t)

	got, err := TopUsers(t.Context(), store, map[string]any{"limit": "2"})
	require.NoError(t, err)
	rows := got.([]map[string]any)
	require.Len(t, rows, 2)
	assert.Equal(t, "cid", rows[0]["username"])
	assert.Equal(t, "bob", rows[1]["username"])
	assert.NotContains(t, rows[0], "status")

	got, err = TopUsers(t.Context(), store, map[string]any{})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = TopUsers(t.Context(), store, map[string]any{"limit": "1; DROP TABLE users"})
	require.NoError(t, err, "unparseable limits fall back to the default")
	assert.Len(t, got, 3)
}

func TestActiveUserCount(t *testing.T) {
	got, err := ActiveUserCount(t.Context(), seededStore(t), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"total": int64(2)}, got)
}
