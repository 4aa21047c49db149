package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/filmoteca/filmoteca/internal/queue"
	"github.com/filmoteca/filmoteca/internal/repository"
	queuepub "github.com/filmoteca/filmoteca/internal/service"
)

type FavoriteHandler struct {
	Favorites *repository.FavoriteRepo
}

func NewFavoriteHandler(favorites *repository.FavoriteRepo) *FavoriteHandler {
	return &FavoriteHandler{Favorites: favorites}
}

type createFavoriteRequest struct {
	UserID  uint64 `json:"user_id"`
	MovieID uint64 `json:"movie_id"`
}

// Create marks a movie as favorite through the favorites collection.
func (h *FavoriteHandler) Create(c echo.Context) error {
	var req createFavoriteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if req.UserID == 0 || req.MovieID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user_id and movie_id are required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	f, err := h.Favorites.Create(ctx, req.UserID, req.MovieID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrMovieNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		case errors.Is(err, repository.ErrFavoriteExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "movie already marked as favorite"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not mark favorite"})
		}
	}

	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		ev := queue.FavoriteMarkedEvent{
			FavoriteID: f.ID,
			UserID:     f.UserID,
			MovieID:    f.MovieID,
			MarkedAt:   f.MarkedAt.Format(time.RFC3339),
		}
		if d, err := h.Favorites.GetDetail(pctx, f.ID); err == nil {
			ev.UserName = d.User.Name
			ev.MovieTitle = d.Movie.Title
			ev.Genre = d.Movie.Genre
		}
		_ = queuepub.PublishFavoriteMarked(pctx, ev)
	}()

	return c.JSON(http.StatusCreated, f)
}

// List returns one page of favorites (bare rows, not expanded).
func (h *FavoriteHandler) List(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	favorites, total, err := h.Favorites.List(ctx, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list favorites"})
	}
	return respondPage(c, favorites, total, page, limit)
}

// Get fetches one favorite expanded with its user and movie.
func (h *FavoriteHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid favorite id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	d, err := h.Favorites.GetDetail(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "favorite not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch favorite"})
	}
	return c.JSON(http.StatusOK, newFavoriteDetailView(d))
}

// Delete removes a favorite by id.
func (h *FavoriteHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid favorite id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	f, err := h.Favorites.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "favorite not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete favorite"})
	}
	if err := h.Favorites.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "favorite not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete favorite"})
	}

	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		_ = queuepub.PublishFavoriteRemoved(pctx, queue.FavoriteRemovedEvent{
			UserID:  f.UserID,
			MovieID: f.MovieID,
		})
	}()

	return c.NoContent(http.StatusNoContent)
}

// ByUser lists a user's favorites, expanded, in marking order.
func (h *FavoriteHandler) ByUser(c echo.Context) error {
	userID, err := paramID(c, "userID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	details, err := h.Favorites.ByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list favorites"})
	}
	return c.JSON(http.StatusOK, favoriteDetailViews(details))
}

// ByMovie lists every favorite pointing at a movie, expanded.
func (h *FavoriteHandler) ByMovie(c echo.Context) error {
	movieID, err := paramID(c, "movieID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	details, err := h.Favorites.ByMovie(ctx, movieID)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list favorites"})
	}
	return c.JSON(http.StatusOK, favoriteDetailViews(details))
}

// Check reports whether a (user, movie) pair is marked as favorite.
func (h *FavoriteHandler) Check(c echo.Context) error {
	userID, err := paramID(c, "userID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	movieID, err := paramID(c, "movieID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	f, err := h.Favorites.Exists(ctx, userID, movieID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not check favorite"})
	}
	if f == nil {
		return c.JSON(http.StatusOK, echo.Map{"is_favorite": false})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"is_favorite": true,
		"favorite_id": f.ID,
		"marked_at":   f.MarkedAt,
	})
}

// DeleteAllByUser removes every favorite of one user in bulk.
func (h *FavoriteHandler) DeleteAllByUser(c echo.Context) error {
	userID, err := paramID(c, "userID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	n, err := h.Favorites.DeleteAllByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not remove favorites"})
	}

	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		_ = queuepub.PublishFavoriteRemoved(pctx, queue.FavoriteRemovedEvent{
			UserID: userID,
			Bulk:   true,
		})
	}()

	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}

// Recommendations proposes movies sharing a genre or director with the
// user's favorites.
func (h *FavoriteHandler) Recommendations(c echo.Context) error {
	userID, err := paramID(c, "userID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	limit, err := limitParam(c, 5, 20)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be an integer in [1,20]"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, err := h.Favorites.Recommend(ctx, userID, limit)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not build recommendations"})
	}
	return c.JSON(http.StatusOK, movieViews(movies))
}

// GlobalStats aggregates catalog-wide favorite activity: total marks, the
// most active user, the most favorited movie and the most favorited genre.
func (h *FavoriteHandler) GlobalStats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	total, err := h.Favorites.CountAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute statistics"})
	}

	resp := echo.Map{
		"total_favorites": total,
		"top_user":        nil,
		"top_movie":       nil,
		"top_genre":       nil,
	}
	if total == 0 {
		return c.JSON(http.StatusOK, resp)
	}

	if ru, err := h.Favorites.TopUser(ctx); err == nil && ru != nil {
		resp["top_user"] = echo.Map{
			"id":             ru.User.ID,
			"name":           ru.User.Name,
			"favorite_count": ru.Count,
		}
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute statistics"})
	}

	if rm, err := h.Favorites.TopMovie(ctx); err == nil && rm != nil {
		resp["top_movie"] = echo.Map{
			"id":             rm.Movie.ID,
			"title":          rm.Movie.Title,
			"favorite_count": rm.Count,
		}
	} else if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute statistics"})
	}

	genres, err := h.Favorites.FavoritedGenres(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute statistics"})
	}
	if top, ok := statsTop(genres); ok {
		resp["top_genre"] = echo.Map{"genre": top.Value, "count": top.Count}
	}

	return c.JSON(http.StatusOK, resp)
}
