package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPageInfo(t *testing.T) {
	tests := []struct {
		name      string
		p         Pagination
		total     int64
		wantPages int64
	}{
		{"no rows", Pagination{Page: 1, Limit: 20}, 0, 0},
		{"exact fit", Pagination{Page: 1, Limit: 5}, 10, 2},
		{"partial last page", Pagination{Page: 3, Limit: 5}, 11, 3},
		{"single row", Pagination{Page: 1, Limit: 100}, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := NewPageInfo(tt.p, tt.total)
			assert.Equal(t, tt.wantPages, info.TotalPages)
			assert.Equal(t, tt.total, info.TotalRows)
			assert.Equal(t, tt.p.Page, info.CurrentPage)
			assert.Equal(t, tt.p.Limit, info.Limit)
		})
	}
}

func TestPagination_Offset(t *testing.T) {
	assert.Equal(t, 0, Pagination{Page: 1, Limit: 5}.Offset())
	assert.Equal(t, 10, Pagination{Page: 3, Limit: 5}.Offset())
}

func TestOperators(t *testing.T) {
	for _, op := range []string{"=", "!=", "<", "<=", ">", ">=", "LIKE", "IN", "NOT IN"} {
		assert.True(t, IsValidOperator(op), op)
	}
	assert.False(t, IsValidOperator("like"))
	assert.False(t, IsValidOperator("OR"))
	assert.True(t, IsListOperator("NOT IN"))
	assert.False(t, IsListOperator("="))
	assert.True(t, OperationDelete.Mutates())
	assert.False(t, OperationSelect.Mutates())
}
