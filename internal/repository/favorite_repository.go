package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/filmoteca/filmoteca/internal/model"
)

type FavoriteRepo struct{ DB *sql.DB }

func NewFavoriteRepo(db *sql.DB) *FavoriteRepo { return &FavoriteRepo{DB: db} }

const favoriteCols = "id,user_id,movie_id,marked_at"

// Create marks a movie as favorite for a user. Missing parents are reported
// with ErrUserNotFound / ErrMovieNotFound; a duplicate pair fails with
// ErrFavoriteExists raised by the unique key, so two racing requests cannot
// both succeed.
func (r *FavoriteRepo) Create(ctx context.Context, userID, movieID uint64) (model.Favorite, error) {
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return model.Favorite{}, ErrUserNotFound
		}
		return model.Favorite{}, err
	}
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE id=? LIMIT 1", movieID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return model.Favorite{}, ErrMovieNotFound
		}
		return model.Favorite{}, err
	}

	now := time.Now().UTC().Truncate(time.Second)
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO favorites (user_id, movie_id, marked_at) VALUES (?,?,?)",
		userID, movieID, now)
	if err != nil {
		if isDuplicate(err) {
			return model.Favorite{}, ErrFavoriteExists
		}
		return model.Favorite{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Favorite{}, err
	}
	return model.Favorite{ID: uint64(id), UserID: userID, MovieID: movieID, MarkedAt: now}, nil
}

// GetByID fetches a bare favorite row.
func (r *FavoriteRepo) GetByID(ctx context.Context, id uint64) (model.Favorite, error) {
	var f model.Favorite
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+favoriteCols+" FROM favorites WHERE id=? LIMIT 1",
		id).Scan(&f.ID, &f.UserID, &f.MovieID, &f.MarkedAt)
	return f, err
}

// detailQuery joins a favorite with its user and movie rows.
const detailQuery = `SELECT f.id, f.user_id, f.movie_id, f.marked_at,
	u.id, u.name, u.email, u.registered_at,
	m.id, m.title, m.director, m.genre, m.duration, m.year, m.classification, m.synopsis, m.created_at, m.poster IS NOT NULL
	FROM favorites f
	JOIN users u ON u.id = f.user_id
	JOIN movies m ON m.id = f.movie_id`

func scanDetail(row interface{ Scan(...any) error }) (model.FavoriteDetail, error) {
	var d model.FavoriteDetail
	err := row.Scan(
		&d.ID, &d.UserID, &d.MovieID, &d.MarkedAt,
		&d.User.ID, &d.User.Name, &d.User.Email, &d.User.RegisteredAt,
		&d.Movie.ID, &d.Movie.Title, &d.Movie.Director, &d.Movie.Genre, &d.Movie.Duration,
		&d.Movie.Year, &d.Movie.Classification, &d.Movie.Synopsis, &d.Movie.CreatedAt, &d.Movie.HasPoster)
	return d, err
}

// GetDetail fetches a favorite expanded with its user and movie.
func (r *FavoriteRepo) GetDetail(ctx context.Context, id uint64) (model.FavoriteDetail, error) {
	return scanDetail(r.DB.QueryRowContext(ctx, detailQuery+" WHERE f.id=? LIMIT 1", id))
}

// List returns one page of favorites ordered by id ascending plus the total
// count.
func (r *FavoriteRepo) List(ctx context.Context, page, limit int) ([]model.Favorite, int, error) {
	var total int
	if err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM favorites").Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+favoriteCols+" FROM favorites ORDER BY id ASC LIMIT ? OFFSET ?",
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]model.Favorite, 0, limit)
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.MovieID, &f.MarkedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, f)
	}
	return out, total, rows.Err()
}

// Delete removes a favorite by id.
func (r *FavoriteRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM favorites WHERE id=?", id)
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

// DeleteByUserAndMovie removes the favorite identified by its natural key.
// Both the users router and the favorites router delete through this single
// operation.
func (r *FavoriteRepo) DeleteByUserAndMovie(ctx context.Context, userID, movieID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id=? AND movie_id=?", userID, movieID)
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

// DeleteAllByUser removes every favorite of a user in one statement and
// returns how many rows went away. The user must exist.
func (r *FavoriteRepo) DeleteAllByUser(ctx context.Context, userID uint64) (int64, error) {
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx, "DELETE FROM favorites WHERE user_id=?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ByUser lists a user's favorites, expanded, in marking order (favorite id
// ascending). ErrUserNotFound when the user does not exist.
func (r *FavoriteRepo) ByUser(ctx context.Context, userID uint64) ([]model.FavoriteDetail, error) {
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return r.collectDetails(ctx, detailQuery+" WHERE f.user_id=? ORDER BY f.id ASC", userID)
}

// ByMovie lists every favorite pointing at a movie, expanded.
// ErrMovieNotFound when the movie does not exist.
func (r *FavoriteRepo) ByMovie(ctx context.Context, movieID uint64) ([]model.FavoriteDetail, error) {
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE id=? LIMIT 1", movieID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrMovieNotFound
		}
		return nil, err
	}
	return r.collectDetails(ctx, detailQuery+" WHERE f.movie_id=? ORDER BY f.id ASC", movieID)
}

func (r *FavoriteRepo) collectDetails(ctx context.Context, query string, args ...any) ([]model.FavoriteDetail, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.FavoriteDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Exists looks up the (user, movie) pair. A nil favorite means not marked.
func (r *FavoriteRepo) Exists(ctx context.Context, userID, movieID uint64) (*model.Favorite, error) {
	var f model.Favorite
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+favoriteCols+" FROM favorites WHERE user_id=? AND movie_id=? LIMIT 1",
		userID, movieID).Scan(&f.ID, &f.UserID, &f.MovieID, &f.MarkedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// MoviesOf returns the movies a user has favorited, in marking order. The
// statistics aggregator depends on that order for its first-encountered
// tie-breaks. ErrUserNotFound when the user does not exist.
func (r *FavoriteRepo) MoviesOf(ctx context.Context, userID uint64) ([]model.Movie, error) {
	var one int
	if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id=? LIMIT 1", userID).Scan(&one); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.id,m.title,m.director,m.genre,m.duration,m.year,m.classification,m.synopsis,m.created_at,m.poster IS NOT NULL
		 FROM movies m
		 JOIN favorites f ON f.movie_id = m.id
		 WHERE f.user_id=?
		 ORDER BY f.id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectMovies(rows, 8, 0)
	return out, err
}

// Recommend proposes movies sharing a genre or director with the user's
// favorites, excluding everything already favorited. Matching is an exact
// string comparison against the favorite set, candidates are ordered by id
// ascending so repeated calls over unchanged data return the same slice.
// A user without favorites gets an empty result, not an error.
func (r *FavoriteRepo) Recommend(ctx context.Context, userID uint64, limit int) ([]model.Movie, error) {
	favs, err := r.MoviesOf(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(favs) == 0 {
		return []model.Movie{}, nil
	}

	genres := map[string]bool{}
	directors := map[string]bool{}
	exclude := make([]any, 0, len(favs))
	for _, m := range favs {
		genres[m.Genre] = true
		directors[m.Director] = true
		exclude = append(exclude, m.ID)
	}

	args := []any{}
	genreIn := placeholders(len(genres))
	for g := range genres {
		args = append(args, g)
	}
	directorIn := placeholders(len(directors))
	for d := range directors {
		args = append(args, d)
	}
	notIn := placeholders(len(exclude))
	args = append(args, exclude...)
	args = append(args, limit)

	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+movieCols+" FROM movies"+
			" WHERE (genre IN ("+genreIn+") OR director IN ("+directorIn+"))"+
			" AND id NOT IN ("+notIn+")"+
			" ORDER BY id ASC LIMIT ?", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out, _, err := collectMovies(rows, limit, 0)
	return out, err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// CountAll returns the global favorite count.
func (r *FavoriteRepo) CountAll(ctx context.Context) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM favorites").Scan(&n)
	return n, err
}

// RankedUser is a user together with their favorite count.
type RankedUser struct {
	User  model.User
	Count int
}

// RankedMovie is a movie together with its favorite count.
type RankedMovie struct {
	Movie model.Movie
	Count int
}

// TopUser returns the user with the most favorites, ties broken by lowest
// user id. nil when there are no favorites at all.
func (r *FavoriteRepo) TopUser(ctx context.Context) (*RankedUser, error) {
	var ru RankedUser
	err := r.DB.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.registered_at, COUNT(f.id) AS cnt
		 FROM users u
		 JOIN favorites f ON f.user_id = u.id
		 GROUP BY u.id
		 ORDER BY cnt DESC, u.id ASC
		 LIMIT 1`).Scan(&ru.User.ID, &ru.User.Name, &ru.User.Email, &ru.User.RegisteredAt, &ru.Count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ru, nil
}

// TopMovie returns the most favorited movie, ties broken by lowest movie id.
// nil when there are no favorites at all.
func (r *FavoriteRepo) TopMovie(ctx context.Context) (*RankedMovie, error) {
	var rm RankedMovie
	err := r.DB.QueryRowContext(ctx,
		`SELECT m.id, m.title, m.director, m.genre, m.duration, m.year, m.classification, m.synopsis, m.created_at, m.poster IS NOT NULL, COUNT(f.id) AS cnt
		 FROM movies m
		 JOIN favorites f ON f.movie_id = m.id
		 GROUP BY m.id
		 ORDER BY cnt DESC, m.id ASC
		 LIMIT 1`).Scan(&rm.Movie.ID, &rm.Movie.Title, &rm.Movie.Director, &rm.Movie.Genre,
		&rm.Movie.Duration, &rm.Movie.Year, &rm.Movie.Classification, &rm.Movie.Synopsis,
		&rm.Movie.CreatedAt, &rm.Movie.HasPoster, &rm.Count)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rm, nil
}

// FavoritedGenres returns the genre of every favorited movie, one entry per
// favorite, in favorite-id order. The aggregator tallies them with an
// insertion-ordered counter so ties go to the first genre encountered.
func (r *FavoriteRepo) FavoritedGenres(ctx context.Context) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT m.genre
		 FROM favorites f
		 JOIN movies m ON m.id = f.movie_id
		 ORDER BY f.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
