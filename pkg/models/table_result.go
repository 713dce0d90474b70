package models

// PageInfo is the pagination metadata returned with a select.
type PageInfo struct {
	CurrentPage int   `json:"current_page"`
	Limit       int   `json:"limit"`
	TotalRows   int64 `json:"total_rows"`
	TotalPages  int64 `json:"total_pages"`
}

// NewPageInfo derives the page count from the total row count.
func NewPageInfo(p Pagination, totalRows int64) PageInfo {
	info := PageInfo{CurrentPage: p.Page, Limit: p.Limit, TotalRows: totalRows}
	if p.Limit > 0 {
		info.TotalPages = (totalRows + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return info
}

// SelectResult holds the rows of one page and its pagination metadata.
type SelectResult struct {
	Rows       []map[string]any `json:"rows"`
	Pagination PageInfo         `json:"pagination"`
}

// InsertResult lists the ids assigned to inserted rows.
type InsertResult struct {
	IDs    []int64 `json:"ids"`
	Upsert bool    `json:"-"`
}

// MutationResult reports the rows touched by an update or delete.
type MutationResult struct {
	Affected int64 `json:"affected"`
}
