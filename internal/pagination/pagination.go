// Package pagination computes the navigation metadata attached to every
// paginated listing. The calculation is a pure function of the total record
// count, the requested page and the page size, so the users, movies and
// favorites listings all share it.
package pagination

import (
	"errors"
	"fmt"
)

// Default and boundary values for the page/limit query parameters.
const (
	DefaultLimit = 10
	MaxLimit     = 100
)

// ErrPageOutOfRange is returned when the requested page exceeds the number
// of available pages.
var ErrPageOutOfRange = errors.New("page out of range")

// Meta describes a page within an ordered result set. NextPage and PrevPage
// are nil when there is no such page, matching the nullable wire fields.
type Meta struct {
	TotalRecords int   `json:"total_records"`
	CurrentPage  int   `json:"current_pg"`
	Limit        int   `json:"limit"`
	Pages        int   `json:"pages"`
	HasNext      bool  `json:"has_next"`
	HasPrev      bool  `json:"has_prev"`
	NextPage     *int  `json:"next_page"`
	PrevPage     *int  `json:"prev_page"`
}

// NewMeta derives the page metadata. total must be >= 0, page >= 1 and
// limit in [1, MaxLimit]; an empty collection still has one (empty) page.
// Requesting a page past the last one fails with ErrPageOutOfRange.
func NewMeta(total, page, limit int) (Meta, error) {
	if total < 0 {
		return Meta{}, fmt.Errorf("total_records must be >= 0, got %d", total)
	}
	if page < 1 {
		return Meta{}, fmt.Errorf("page must be >= 1, got %d", page)
	}
	if limit < 1 || limit > MaxLimit {
		return Meta{}, fmt.Errorf("limit must be in [1,%d], got %d", MaxLimit, limit)
	}

	pages := 1
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	if page > pages {
		return Meta{}, fmt.Errorf("%w: page %d of %d", ErrPageOutOfRange, page, pages)
	}

	m := Meta{
		TotalRecords: total,
		CurrentPage:  page,
		Limit:        limit,
		Pages:        pages,
		HasPrev:      page > 1,
		HasNext:      page < pages,
	}
	if m.HasPrev {
		p := page - 1
		m.PrevPage = &p
	}
	if m.HasNext {
		n := page + 1
		m.NextPage = &n
	}
	return m, nil
}

// Offset converts a 1-indexed page into the row offset for a LIMIT query.
func Offset(page, limit int) int {
	return (page - 1) * limit
}
