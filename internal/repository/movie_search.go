package repository

import (
	"context"
	"strings"

	"github.com/filmoteca/filmoteca/internal/model"
)

// MovieSearchQuery defines the optional filters and pagination for the
// movie search. All supplied predicates are combined conjunctively; Year is
// mutually exclusive with the YearMin/YearMax range (enforced at the
// handler boundary).
type MovieSearchQuery struct {
	Title          string // substring, case-insensitive
	Director       string // substring, case-insensitive
	Genre          string // substring, case-insensitive
	Year           int    // exact match when > 0
	YearMin        int    // lower bound when > 0
	YearMax        int    // upper bound when > 0
	DurationMin    int    // lower bound in minutes when > 0
	DurationMax    int    // upper bound in minutes when > 0
	Classification string // exact match when set
	Page           int
	Limit          int
}

// Search runs the filtered query and returns one page ordered by movie id
// ascending, plus the total match count for the pagination metadata.
func (r *MovieRepo) Search(ctx context.Context, q MovieSearchQuery) ([]model.Movie, int, error) {
	where := []string{}
	args := []any{}

	if q.Title != "" {
		where = append(where, "LOWER(title) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Title)+"%")
	}
	if q.Director != "" {
		where = append(where, "LOWER(director) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Director)+"%")
	}
	if q.Genre != "" {
		where = append(where, "LOWER(genre) LIKE ?")
		args = append(args, "%"+strings.ToLower(q.Genre)+"%")
	}
	if q.Year > 0 {
		where = append(where, "year = ?")
		args = append(args, q.Year)
	}
	if q.YearMin > 0 {
		where = append(where, "year >= ?")
		args = append(args, q.YearMin)
	}
	if q.YearMax > 0 {
		where = append(where, "year <= ?")
		args = append(args, q.YearMax)
	}
	if q.DurationMin > 0 {
		where = append(where, "duration >= ?")
		args = append(args, q.DurationMin)
	}
	if q.DurationMax > 0 {
		where = append(where, "duration <= ?")
		args = append(args, q.DurationMax)
	}
	if q.Classification != "" {
		where = append(where, "classification = ?")
		args = append(args, strings.ToUpper(q.Classification))
	}

	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	var total int
	if err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM movies WHERE "+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	argsData := append(append([]any{}, args...), q.Limit, (q.Page-1)*q.Limit)
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+movieCols+" FROM movies WHERE "+cond+" ORDER BY id ASC LIMIT ? OFFSET ?",
		argsData...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMovies(rows, q.Limit, total)
}
