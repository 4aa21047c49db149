package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/filmoteca/filmoteca/internal/config"
	"github.com/filmoteca/filmoteca/internal/queue"
	"github.com/filmoteca/filmoteca/internal/repository"
	queuepub "github.com/filmoteca/filmoteca/internal/service"
	"github.com/filmoteca/filmoteca/internal/stats"
	"github.com/filmoteca/filmoteca/internal/utils"
)

type UserHandler struct {
	Users     *repository.UserRepo
	Favorites *repository.FavoriteRepo
	Cfg       *config.Config
}

func NewUserHandler(users *repository.UserRepo, favorites *repository.FavoriteRepo, cfg *config.Config) *UserHandler {
	return &UserHandler{Users: users, Favorites: favorites, Cfg: cfg}
}

type createUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Create registers a user. The email must be unique case-insensitively;
// a collision answers 409.
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	name, err := utils.ValidateUserName(req.Name)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if !utils.ValidEmail(req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email address"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Create(ctx, name, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create user"})
	}
	return c.JSON(http.StatusCreated, u)
}

// Login identifies a user by name and email and hands back a session token.
func (h *UserHandler) Login(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if req.Name == "" || req.Email == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and email are required"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByNameAndEmail(ctx, req.Name, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "no user matches that name and email"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	tok, err := utils.NewSessionToken(h.Cfg.JWTSecret, u.ID, u.Name, h.Cfg.SessionTTLMin)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not issue session token"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user":       u,
		"token":      tok.Token,
		"expires_at": tok.Exp,
	})
}

// List returns one page of users.
func (h *UserHandler) List(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	users, total, err := h.Users.List(ctx, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list users"})
	}
	return respondPage(c, users, total, page, limit)
}

// Get fetches one user by id.
func (h *UserHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch user"})
	}
	return c.JSON(http.StatusOK, u)
}

type updateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// Update applies a partial update; omitted fields keep their value.
func (h *UserHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	var req updateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	if req.Name == nil && req.Email == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "nothing to update"})
	}
	if req.Name != nil {
		name, err := utils.ValidateUserName(*req.Name)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		req.Name = &name
	}
	if req.Email != nil && !utils.ValidEmail(*req.Email) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email address"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.Update(ctx, id, req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		case errors.Is(err, repository.ErrEmailExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update user"})
		}
	}
	return c.JSON(http.StatusOK, u)
}

// Delete removes a user and, through the store's cascade, their favorites.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete user"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ListFavorites returns the movies a user has favorited, in marking order.
func (h *UserHandler) ListFavorites(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, err := h.Favorites.MoviesOf(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list favorites"})
	}
	return c.JSON(http.StatusOK, movieViews(movies))
}

// MarkFavorite marks a movie as a favorite of the user.
func (h *UserHandler) MarkFavorite(c echo.Context) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	movieID, err := paramID(c, "movieID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	f, err := h.Favorites.Create(ctx, userID, movieID)
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

	// Best effort: the favorite is already persisted, a broker outage only
	// costs the notification. Detached context so the response does not wait.
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		ev := queue.FavoriteMarkedEvent{
			FavoriteID: f.ID,
			UserID:     f.UserID,
			MovieID:    f.MovieID,
			MarkedAt:   f.MarkedAt.Format(time.RFC3339),
		}
		if u, err := h.Users.GetByID(pctx, f.UserID); err == nil {
			ev.UserName = u.Name
		}
		if d, err := h.Favorites.GetDetail(pctx, f.ID); err == nil {
			ev.MovieTitle = d.Movie.Title
			ev.Genre = d.Movie.Genre
		}
		_ = queuepub.PublishFavoriteMarked(pctx, ev)
	}()

	return c.JSON(http.StatusCreated, f)
}

// UnmarkFavorite removes the (user, movie) favorite pair.
func (h *UserHandler) UnmarkFavorite(c echo.Context) error {
	userID, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}
	movieID, err := paramID(c, "movieID")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Favorites.DeleteByUserAndMovie(ctx, userID, movieID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "favorite not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not remove favorite"})
	}

	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		_ = queuepub.PublishFavoriteRemoved(pctx, queue.FavoriteRemovedEvent{
			UserID:  userID,
			MovieID: movieID,
		})
	}()

	return c.NoContent(http.StatusNoContent)
}

// Stats computes the user's favorite statistics.
func (h *UserHandler) Stats(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid user id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch user"})
	}
	movies, err := h.Favorites.MoviesOf(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not compute statistics"})
	}
	return c.JSON(http.StatusOK, stats.ForUser(u, movies))
}
