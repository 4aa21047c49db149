package handler

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/filmoteca/filmoteca/internal/model"
	"github.com/filmoteca/filmoteca/internal/queue"
	"github.com/filmoteca/filmoteca/internal/repository"
	queuepub "github.com/filmoteca/filmoteca/internal/service"
	"github.com/filmoteca/filmoteca/internal/tmdb"
)

// MovieImportHandler pulls movie metadata from TMDB and optionally persists
// it into the catalog.
type MovieImportHandler struct {
	Movies *repository.MovieRepo
	TMDB   *tmdb.Client
}

func NewMovieImportHandler(movies *repository.MovieRepo, client *tmdb.Client) *MovieImportHandler {
	return &MovieImportHandler{Movies: movies, TMDB: client}
}

// importTimeout bounds a whole import batch: each record may need a details
// call plus a poster download on top of the listing fetch.
const importTimeout = 60 * time.Second

// Popular fetches a page of TMDB's popular listing. With importar=true the
// records are also persisted into the catalog.
func (h *MovieImportHandler) Popular(c echo.Context) error {
	page := 1
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "page must be an integer >= 1"})
		}
		page = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), importTimeout)
	defer cancel()

	records, err := h.TMDB.Popular(ctx, page)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "metadata provider unavailable"})
	}
	if !importFlag(c) {
		return c.JSON(http.StatusOK, echo.Map{"total": len(records), "results": records})
	}
	return h.respondImport(c, ctx, "popular", records)
}

// Search looks up TMDB by title. With importar=true the matches are also
// persisted into the catalog.
func (h *MovieImportHandler) Search(c echo.Context) error {
	query := strings.TrimSpace(c.QueryParam("query"))
	if query == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query is required"})
	}
	page := 1
	if s := c.QueryParam("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "page must be an integer >= 1"})
		}
		page = n
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), importTimeout)
	defer cancel()

	records, err := h.TMDB.Search(ctx, query, page)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "metadata provider unavailable"})
	}
	if !importFlag(c) {
		return c.JSON(http.StatusOK, echo.Map{"total": len(records), "results": records})
	}
	return h.respondImport(c, ctx, "search", records)
}

// ImportByID imports exactly one movie by its TMDB id.
func (h *MovieImportHandler) ImportByID(c echo.Context) error {
	tmdbID, err := strconv.Atoi(c.Param("tmdbID"))
	if err != nil || tmdbID < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid TMDB id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), importTimeout)
	defer cancel()

	record, err := h.TMDB.Details(ctx, tmdbID)
	if err != nil {
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "metadata provider unavailable"})
	}

	exists, err := h.Movies.ExistsByTitleYear(ctx, record.Title, record.Year)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "import failed"})
	}
	if exists {
		return c.JSON(http.StatusConflict, echo.Map{"error": "movie already in the catalog"})
	}

	imported := h.importBatch(ctx, []tmdb.Movie{record}, false)
	if len(imported) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "record could not be imported"})
	}
	h.publishImported(c, "by_id", 1, imported)
	return c.JSON(http.StatusCreated, newMovieView(imported[0]))
}

func importFlag(c echo.Context) bool {
	switch strings.ToLower(c.QueryParam("importar")) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func (h *MovieImportHandler) respondImport(c echo.Context, ctx context.Context, source string, records []tmdb.Movie) error {
	imported := h.importBatch(ctx, records, true)
	h.publishImported(c, source, len(records), imported)
	return c.JSON(http.StatusOK, echo.Map{
		"message":       "import finished",
		"total_fetched": len(records),
		"imported":      movieViews(imported),
	})
}

// importBatch persists the records one by one, partial-success: a record
// that is a duplicate, fails validation or fails to insert is logged and
// skipped. Listing records are upgraded through the details endpoint first
// so the stored row carries a real director and runtime; posters are
// downloaded best-effort after the row exists.
func (h *MovieImportHandler) importBatch(ctx context.Context, records []tmdb.Movie, upgrade bool) []model.Movie {
	imported := make([]model.Movie, 0, len(records))
	for _, rec := range records {
		exists, err := h.Movies.ExistsByTitleYear(ctx, rec.Title, rec.Year)
		if err != nil {
			log.Printf("import: duplicate check failed for %q (%d): %v", rec.Title, rec.Year, err)
			continue
		}
		if exists {
			continue
		}

		if upgrade && rec.TMDBID > 0 {
			if full, err := h.TMDB.Details(ctx, rec.TMDBID); err == nil {
				full.PosterPath = firstNonEmpty(full.PosterPath, rec.PosterPath)
				rec = full
			}
			// On details failure the listing record still imports.
		}

		m, err := importRecordToMovie(rec)
		if err != nil {
			log.Printf("import: skipping %q (%d): %v", rec.Title, rec.Year, err)
			continue
		}

		created, err := h.Movies.Create(ctx, m)
		if err != nil {
			if err != repository.ErrMovieExists {
				log.Printf("import: insert failed for %q (%d): %v", rec.Title, rec.Year, err)
			}
			continue
		}

		if rec.PosterPath != "" {
			if img, err := h.TMDB.DownloadPoster(ctx, rec.PosterPath); err == nil {
				if err := h.Movies.SetPoster(ctx, created.ID, img); err == nil {
					created.HasPoster = true
				}
			}
		}
		imported = append(imported, created)
	}
	return imported
}

func (h *MovieImportHandler) publishImported(c echo.Context, source string, fetched int, imported []model.Movie) {
	titles := make([]string, 0, len(imported))
	for _, m := range imported {
		titles = append(titles, m.Title)
	}
	ev := queue.MoviesImportedEvent{
		Source:   source,
		Fetched:  fetched,
		Imported: len(imported),
		Titles:   titles,
	}
	go func() {
		pctx, pcancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer pcancel()
		_ = queuepub.PublishMoviesImported(pctx, ev)
	}()
}

// importRecordToMovie maps a provider record into a catalog row, clamped to
// the catalog's field rules rather than rejected where a clamp is safe.
// Certifications outside the allow-list (TV ratings, foreign boards) and
// out-of-range years cannot be clamped and fail the record.
func importRecordToMovie(rec tmdb.Movie) (model.Movie, error) {
	req := createMovieRequest{
		Title:          rec.Title,
		Director:       rec.Director,
		Genre:          rec.Genre,
		Duration:       rec.Duration,
		Year:           rec.Year,
		Classification: rec.Classification,
	}
	if rec.Synopsis != "" {
		s := rec.Synopsis
		req.Synopsis = &s
	}
	if !model.ValidClassification(req.Classification) {
		// Fall back to NR rather than dropping an otherwise valid record.
		req.Classification = "NR"
	}
	if req.Duration > 600 {
		req.Duration = 600
	}
	return req.validate()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
