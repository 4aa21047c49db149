// Package handler implements the HTTP endpoints. Handlers bind and validate
// input at the boundary, call repositories under a request-scoped timeout
// and translate sentinel errors into status codes; core logic below this
// layer never sees a malformed value.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/filmoteca/filmoteca/internal/model"
	"github.com/filmoteca/filmoteca/internal/pagination"
	"github.com/filmoteca/filmoteca/internal/stats"
)

// dbTimeout bounds every repository call issued by a handler.
const dbTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}

// pagedResponse is the envelope of every paginated listing.
type pagedResponse struct {
	Items any `json:"items"`
	pagination.Meta
}

// pageParams reads the page/limit query parameters with their defaults and
// bounds. Out-of-range values are rejected here, before any query runs.
func pageParams(c echo.Context) (page, limit int, err error) {
	page, limit = 1, pagination.DefaultLimit
	if s := c.QueryParam("page"); s != "" {
		page, err = strconv.Atoi(s)
		if err != nil || page < 1 {
			return 0, 0, errors.New("page must be an integer >= 1")
		}
	}
	if s := c.QueryParam("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 || limit > pagination.MaxLimit {
			return 0, 0, errors.New("limit must be an integer in [1,100]")
		}
	}
	return page, limit, nil
}

// limitParam reads a bare limit query parameter for the unpaged listings
// (recent, popular, recommendations), each with its own cap.
func limitParam(c echo.Context, def, max int) (int, error) {
	limit := def
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > max {
			return 0, strconv.ErrRange
		}
		limit = n
	}
	return limit, nil
}

func paramID(c echo.Context, name string) (uint64, error) {
	return strconv.ParseUint(c.Param(name), 10, 64)
}

// respondPage wraps one page of items with its navigation metadata. A page
// past the end maps to 400, mirroring the calculator's out-of-range error.
func respondPage(c echo.Context, items any, total, page, limit int) error {
	meta, err := pagination.NewMeta(total, page, limit)
	if err != nil {
		if errors.Is(err, pagination.ErrPageOutOfRange) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "pagination failed"})
	}
	return c.JSON(http.StatusOK, pagedResponse{Items: items, Meta: meta})
}

// movieView is the movie read model: the poster blob never rides along in
// JSON, only a URL that exists when the movie has an image.
type movieView struct {
	ID             uint64    `json:"id"`
	Title          string    `json:"title"`
	Director       string    `json:"director"`
	Genre          string    `json:"genre"`
	Duration       int       `json:"duration"`
	Year           int       `json:"year"`
	Classification string    `json:"classification"`
	Synopsis       *string   `json:"synopsis"`
	CreatedAt      time.Time `json:"created_at"`
	ImageURL       *string   `json:"image_url"`
}

func newMovieView(m model.Movie) movieView {
	v := movieView{
		ID:             m.ID,
		Title:          m.Title,
		Director:       m.Director,
		Genre:          m.Genre,
		Duration:       m.Duration,
		Year:           m.Year,
		Classification: m.Classification,
		Synopsis:       m.Synopsis,
		CreatedAt:      m.CreatedAt,
	}
	if m.HasPoster || len(m.Poster) > 0 {
		u := "/api/movies/" + strconv.FormatUint(m.ID, 10) + "/poster"
		v.ImageURL = &u
	}
	return v
}

func movieViews(ms []model.Movie) []movieView {
	out := make([]movieView, 0, len(ms))
	for _, m := range ms {
		out = append(out, newMovieView(m))
	}
	return out
}

// favoriteDetailView expands a favorite with its user and movie read models.
type favoriteDetailView struct {
	ID       uint64     `json:"id"`
	UserID   uint64     `json:"user_id"`
	MovieID  uint64     `json:"movie_id"`
	MarkedAt time.Time  `json:"marked_at"`
	User     model.User `json:"user"`
	Movie    movieView  `json:"movie"`
}

func newFavoriteDetailView(d model.FavoriteDetail) favoriteDetailView {
	return favoriteDetailView{
		ID:       d.ID,
		UserID:   d.UserID,
		MovieID:  d.MovieID,
		MarkedAt: d.MarkedAt,
		User:     d.User,
		Movie:    newMovieView(d.Movie),
	}
}

func favoriteDetailViews(ds []model.FavoriteDetail) []favoriteDetailView {
	out := make([]favoriteDetailView, 0, len(ds))
	for _, d := range ds {
		out = append(out, newFavoriteDetailView(d))
	}
	return out
}

// statsTop tallies values in order and returns the most common one. Ties go
// to the value seen first, which is why callers feed rows in marking order.
func statsTop(values []string) (stats.Entry, bool) {
	return stats.NewCounter(values).Top()
}
