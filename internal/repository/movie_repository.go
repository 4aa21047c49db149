package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/filmoteca/filmoteca/internal/model"
)

type MovieRepo struct{ DB *sql.DB }

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{DB: db} }

// movieCols selects every movie column except the poster blob; listings
// never drag image bytes around, they only report whether one exists.
const movieCols = "id,title,director,genre,duration,year,classification,synopsis,created_at,poster IS NOT NULL"

func scanMovie(row interface{ Scan(...any) error }) (model.Movie, error) {
	var m model.Movie
	err := row.Scan(&m.ID, &m.Title, &m.Director, &m.Genre, &m.Duration,
		&m.Year, &m.Classification, &m.Synopsis, &m.CreatedAt, &m.HasPoster)
	return m, err
}

// Create inserts a movie and returns the stored row. The (title, year)
// unique key is the authoritative duplicate guard.
func (r *MovieRepo) Create(ctx context.Context, m model.Movie) (model.Movie, error) {
	m.Title = strings.TrimSpace(m.Title)
	m.CreatedAt = time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO movies (title,director,genre,duration,year,classification,synopsis,created_at)
		 VALUES (?,?,?,?,?,?,?,?)`,
		m.Title, m.Director, m.Genre, m.Duration, m.Year, m.Classification, m.Synopsis, m.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return model.Movie{}, ErrMovieExists
		}
		return model.Movie{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Movie{}, err
	}
	m.ID = uint64(id)
	return m, nil
}

// GetByID fetches a movie by id without its poster bytes.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	return scanMovie(r.DB.QueryRowContext(ctx,
		"SELECT "+movieCols+" FROM movies WHERE id=? LIMIT 1", id))
}

// ExistsByTitleYear reports whether a movie with this (title, year) already
// exists. Used by the import flow for pre-insert deduplication; the unique
// key still backs it up under races.
func (r *MovieRepo) ExistsByTitleYear(ctx context.Context, title string, year int) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM movies WHERE title=? AND year=? LIMIT 1",
		strings.TrimSpace(title), year).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List returns one page of movies ordered by id ascending plus the total
// count.
func (r *MovieRepo) List(ctx context.Context, page, limit int) ([]model.Movie, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+movieCols+" FROM movies ORDER BY id ASC LIMIT ? OFFSET ?",
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	return collectMovies(rows, limit, 0)
}

// Update applies a partial update: nil fields keep their current value.
func (r *MovieRepo) Update(ctx context.Context, id uint64, upd MovieUpdate) (model.Movie, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}
	if upd.Title != nil {
		m.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Director != nil {
		m.Director = *upd.Director
	}
	if upd.Genre != nil {
		m.Genre = *upd.Genre
	}
	if upd.Duration != nil {
		m.Duration = *upd.Duration
	}
	if upd.Year != nil {
		m.Year = *upd.Year
	}
	if upd.Classification != nil {
		m.Classification = *upd.Classification
	}
	if upd.Synopsis != nil {
		m.Synopsis = upd.Synopsis
	}
	_, err = r.DB.ExecContext(ctx,
		`UPDATE movies SET title=?,director=?,genre=?,duration=?,year=?,classification=?,synopsis=? WHERE id=?`,
		m.Title, m.Director, m.Genre, m.Duration, m.Year, m.Classification, m.Synopsis, id)
	if err != nil {
		if isDuplicate(err) {
			return model.Movie{}, ErrMovieExists
		}
		return model.Movie{}, err
	}
	return m, nil
}

// MovieUpdate carries the optional fields of a partial movie update.
type MovieUpdate struct {
	Title          *string
	Director       *string
	Genre          *string
	Duration       *int
	Year           *int
	Classification *string
	Synopsis       *string
}

// Delete removes a movie; its favorites go with it via ON DELETE CASCADE.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM movies WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ByClassification returns movies with the exact classification, ordered by
// id ascending.
func (r *MovieRepo) ByClassification(ctx context.Context, classification string, limit int) ([]model.Movie, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+movieCols+" FROM movies WHERE classification=? ORDER BY id ASC LIMIT ?",
		strings.ToUpper(classification), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectMovies(rows, limit, 0)
	return out, err
}

// Recent returns the newest catalog entries, creation time descending with
// id descending as the stable tie-break for rows created in the same second.
func (r *MovieRepo) Recent(ctx context.Context, limit int) ([]model.Movie, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+movieCols+" FROM movies ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectMovies(rows, limit, 0)
	return out, err
}

// Popular ranks movies by favorite count descending. Ties are broken by
// movie id ascending so the ranking is deterministic. Movies nobody has
// favorited do not appear (INNER JOIN, as a popularity list should).
func (r *MovieRepo) Popular(ctx context.Context, limit int) ([]model.Movie, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id,m.title,m.director,m.genre,m.duration,m.year,m.classification,m.synopsis,m.created_at,m.poster IS NOT NULL
		 FROM movies m
		 JOIN favorites f ON f.movie_id = m.id
		 GROUP BY m.id
		 ORDER BY COUNT(f.id) DESC, m.id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectMovies(rows, limit, 0)
	return out, err
}

// SetPoster stores the poster bytes for a movie. Size and content-type are
// validated at the handler boundary.
func (r *MovieRepo) SetPoster(ctx context.Context, id uint64, img []byte) error {
	res, err := r.DB.ExecContext(ctx, "UPDATE movies SET poster=? WHERE id=?", img, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		// MySQL reports zero affected rows for a no-op rewrite too, so
		// distinguish "missing movie" from "same bytes again".
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE id=? LIMIT 1", id).Scan(&one); err != nil {
			return err
		}
	}
	return nil
}

// GetPoster loads the poster bytes. sql.ErrNoRows means the movie is
// missing; a nil slice means it has no poster.
func (r *MovieRepo) GetPoster(ctx context.Context, id uint64) ([]byte, error) {
	var img []byte
	err := r.DB.QueryRowContext(ctx, "SELECT poster FROM movies WHERE id=? LIMIT 1", id).Scan(&img)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func collectMovies(rows *sql.Rows, capHint, total int) ([]model.Movie, int, error) {
	out := make([]model.Movie, 0, capHint)
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}
