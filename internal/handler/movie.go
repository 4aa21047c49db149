package handler

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/filmoteca/filmoteca/internal/model"
	"github.com/filmoteca/filmoteca/internal/repository"
	"github.com/filmoteca/filmoteca/internal/utils"
)

// Poster upload limits.
const (
	maxPosterBytes = 5 << 20 // 5 MiB
	posterMaxAge   = 3600    // seconds, Cache-Control on fetch
)

// posterTypes is the allow-list of upload content types.
var posterTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
}

// ratingRoutes restricts the by-classification route to the MPAA set; an
// unknown segment answers 404 rather than an empty list.
var ratingRoutes = map[string]bool{
	"G": true, "PG": true, "PG-13": true, "R": true, "NC-17": true,
}

type MovieHandler struct {
	Movies *repository.MovieRepo
}

func NewMovieHandler(movies *repository.MovieRepo) *MovieHandler {
	return &MovieHandler{Movies: movies}
}

type createMovieRequest struct {
	Title          string  `json:"title"`
	Director       string  `json:"director"`
	Genre          string  `json:"genre"`
	Duration       int     `json:"duration"`
	Year           int     `json:"year"`
	Classification string  `json:"classification"`
	Synopsis       *string `json:"synopsis"`
}

func (req *createMovieRequest) validate() (model.Movie, error) {
	title, err := utils.ValidateTitle(req.Title)
	if err != nil {
		return model.Movie{}, err
	}
	director, err := utils.ValidateDirector(req.Director)
	if err != nil {
		return model.Movie{}, err
	}
	if strings.TrimSpace(req.Genre) == "" {
		return model.Movie{}, errors.New("genre must not be empty")
	}
	if err := utils.ValidateDuration(req.Duration); err != nil {
		return model.Movie{}, err
	}
	if err := utils.ValidateYear(req.Year); err != nil {
		return model.Movie{}, err
	}
	classification, err := utils.ValidateClassification(req.Classification)
	if err != nil {
		return model.Movie{}, err
	}
	if req.Synopsis != nil {
		if err := utils.ValidateSynopsis(*req.Synopsis); err != nil {
			return model.Movie{}, err
		}
	}
	return model.Movie{
		Title:          title,
		Director:       director,
		Genre:          strings.TrimSpace(req.Genre),
		Duration:       req.Duration,
		Year:           req.Year,
		Classification: classification,
		Synopsis:       req.Synopsis,
	}, nil
}

// Create adds a movie to the catalog. (title, year) must be unique.
func (h *MovieHandler) Create(c echo.Context) error {
	var req createMovieRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	m, err := req.validate()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	created, err := h.Movies.Create(ctx, m)
	if err != nil {
		if errors.Is(err, repository.ErrMovieExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "a movie with that title and year already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create movie"})
	}
	return c.JSON(http.StatusCreated, newMovieView(created))
}

// List returns one page of the catalog.
func (h *MovieHandler) List(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, total, err := h.Movies.List(ctx, page, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list movies"})
	}
	return respondPage(c, movieViews(movies), total, page, limit)
}

// Get fetches one movie by id.
func (h *MovieHandler) Get(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Movies.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch movie"})
	}
	return c.JSON(http.StatusOK, newMovieView(m))
}

type updateMovieRequest struct {
	Title          *string `json:"title"`
	Director       *string `json:"director"`
	Genre          *string `json:"genre"`
	Duration       *int    `json:"duration"`
	Year           *int    `json:"year"`
	Classification *string `json:"classification"`
	Synopsis       *string `json:"synopsis"`
}

// Update applies a partial update; every supplied field is validated with
// the same rules as create.
func (h *MovieHandler) Update(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	var req updateMovieRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}

	upd := repository.MovieUpdate{Duration: req.Duration, Year: req.Year, Synopsis: req.Synopsis}
	if req.Title != nil {
		title, err := utils.ValidateTitle(*req.Title)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		upd.Title = &title
	}
	if req.Director != nil {
		director, err := utils.ValidateDirector(*req.Director)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		upd.Director = &director
	}
	if req.Genre != nil {
		g := strings.TrimSpace(*req.Genre)
		if g == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "genre must not be empty"})
		}
		upd.Genre = &g
	}
	if req.Duration != nil {
		if err := utils.ValidateDuration(*req.Duration); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}
	if req.Year != nil {
		if err := utils.ValidateYear(*req.Year); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}
	if req.Classification != nil {
		classification, err := utils.ValidateClassification(*req.Classification)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		upd.Classification = &classification
	}
	if req.Synopsis != nil {
		if err := utils.ValidateSynopsis(*req.Synopsis); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	m, err := h.Movies.Update(ctx, id, upd)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		case errors.Is(err, repository.ErrMovieExists):
			return c.JSON(http.StatusConflict, echo.Map{"error": "a movie with that title and year already exists"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not update movie"})
		}
	}
	return c.JSON(http.StatusOK, newMovieView(m))
}

// Delete removes a movie and, via cascade, every favorite pointing at it.
func (h *MovieHandler) Delete(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Movies.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not delete movie"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Search filters the catalog on any combination of title, director, genre,
// year (exact or range), duration range and classification. An exact year
// cannot be combined with a year range.
func (h *MovieHandler) Search(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	q := repository.MovieSearchQuery{
		Title:    strings.TrimSpace(c.QueryParam("title")),
		Director: strings.TrimSpace(c.QueryParam("director")),
		Genre:    strings.TrimSpace(c.QueryParam("genre")),
		Page:     page,
		Limit:    limit,
	}
	intParam := func(name string) (int, error) {
		s := c.QueryParam(name)
		if s == "" {
			return 0, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return 0, errors.New(name + " must be a non-negative integer")
		}
		return n, nil
	}
	if q.Year, err = intParam("year"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.YearMin, err = intParam("year_min"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.YearMax, err = intParam("year_max"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.DurationMin, err = intParam("duration_min"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.DurationMax, err = intParam("duration_max"); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	if q.Year > 0 && (q.YearMin > 0 || q.YearMax > 0) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "year cannot be combined with year_min/year_max"})
	}
	if q.YearMin > 0 && q.YearMax > 0 && q.YearMin > q.YearMax {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "year_min must not exceed year_max"})
	}
	if q.DurationMin > 0 && q.DurationMax > 0 && q.DurationMin > q.DurationMax {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "duration_min must not exceed duration_max"})
	}
	if s := c.QueryParam("classification"); s != "" {
		classification, err := utils.ValidateClassification(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		q.Classification = classification
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, total, err := h.Movies.Search(ctx, q)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "search failed"})
	}
	return respondPage(c, movieViews(movies), total, page, limit)
}

// ByClassification lists movies with one of the MPAA ratings. The route
// segment is part of the URL space: a rating outside the set is 404.
func (h *MovieHandler) ByClassification(c echo.Context) error {
	rating := strings.ToUpper(c.Param("rating"))
	if !ratingRoutes[rating] {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "unknown classification"})
	}
	limit, err := limitParam(c, 20, 100)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be an integer in [1,100]"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, err := h.Movies.ByClassification(ctx, rating, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list movies"})
	}
	return c.JSON(http.StatusOK, movieViews(movies))
}

// Recent lists the latest catalog additions.
func (h *MovieHandler) Recent(c echo.Context) error {
	limit, err := limitParam(c, 10, 100)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be an integer in [1,100]"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, err := h.Movies.Recent(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not list movies"})
	}
	return c.JSON(http.StatusOK, movieViews(movies))
}

// Popular ranks movies by favorite count.
func (h *MovieHandler) Popular(c echo.Context) error {
	limit, err := limitParam(c, 10, 50)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "limit must be an integer in [1,50]"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	movies, err := h.Movies.Popular(ctx, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not rank movies"})
	}
	return c.JSON(http.StatusOK, movieViews(movies))
}

// UploadPoster stores a poster image for a movie from a multipart form
// field named "image". Only JPEG, PNG and WebP up to 5 MiB are accepted.
func (h *MovieHandler) UploadPoster(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "multipart field 'image' is required"})
	}
	ctype := fh.Header.Get(echo.HeaderContentType)
	if !posterTypes[strings.ToLower(ctype)] {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "image must be JPEG, PNG or WebP"})
	}
	if fh.Size > maxPosterBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "image exceeds the 5 MB limit"})
	}

	src, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not read image"})
	}
	defer src.Close()
	// Size header already checked; the +1 read catches a lying client.
	img, err := io.ReadAll(io.LimitReader(src, maxPosterBytes+1))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not read image"})
	}
	if len(img) > maxPosterBytes {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "image exceeds the 5 MB limit"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Movies.SetPoster(ctx, id, img); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not store image"})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "poster stored", "movie_id": id})
}

// GetPoster serves the stored poster bytes. The content type is sniffed
// from the bytes, not trusted from upload time.
func (h *MovieHandler) GetPoster(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid movie id"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	img, err := h.Movies.GetPoster(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "movie not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch image"})
	}
	if len(img) == 0 {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "movie has no poster"})
	}

	c.Response().Header().Set("Cache-Control", "public, max-age="+strconv.Itoa(posterMaxAge))
	return c.Blob(http.StatusOK, http.DetectContentType(img), img)
}
