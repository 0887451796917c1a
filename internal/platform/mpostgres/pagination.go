package mpostgres

import (
	"time"

	sq "github.com/Masterminds/squirrel"
)

// Pagination is the envelope returned by every list operation.
type Pagination struct {
	Items any `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func (p *Pagination) SetItems(items any) { p.Items = items }

// CursorPagination supports the date-keyset pattern used for listing
// IngestionJobs and ConnectionHistoryEvents (§4.8), avoiding OFFSET scans
// over potentially large, append-only tables.
type CursorPagination struct {
	Limit int
	After *time.Time
}

// ApplyCursor adds a "column < After" keyset predicate plus ORDER BY and
// LIMIT to a SELECT builder, descending on column.
func (cp CursorPagination) ApplyCursor(b sq.SelectBuilder, column string) sq.SelectBuilder {
	if cp.After != nil {
		b = b.Where(sq.Lt{column: *cp.After})
	}

	limit := cp.Limit
	if limit <= 0 {
		limit = 50
	}

	return b.OrderBy(column + " DESC").Limit(uint64(limit))
}
