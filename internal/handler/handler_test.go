package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmoteca/filmoteca/internal/config"
	"github.com/filmoteca/filmoteca/internal/model"
	"github.com/filmoteca/filmoteca/internal/repository"
)

var (
	testDB    *sql.DB
	users     *repository.UserRepo
	movies    *repository.MovieRepo
	favorites *repository.FavoriteRepo
)

var testCfg = config.Config{
	Env:           "test",
	JWTSecret:     "test-secret",
	SessionTTLMin: 60,
}

// TestMain opens one shared in-memory SQLite database so the handlers run
// against real repository SQL instead of mocks.
func TestMain(m *testing.M) {
	db, err := sql.Open("sqlite3", "file:handlertest?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		fmt.Fprintln(os.Stderr, "open test db:", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(1)

	schema := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			registered_at DATETIME NOT NULL
		)`,
		`CREATE TABLE movies (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			director TEXT NOT NULL,
			genre TEXT NOT NULL,
			duration INTEGER NOT NULL,
			year INTEGER NOT NULL,
			classification TEXT NOT NULL,
			synopsis TEXT NULL,
			created_at DATETIME NOT NULL,
			poster BLOB NULL,
			UNIQUE (title, year)
		)`,
		`CREATE TABLE favorites (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL REFERENCES users (id) ON DELETE CASCADE,
			movie_id INTEGER NOT NULL REFERENCES movies (id) ON DELETE CASCADE,
			marked_at DATETIME NOT NULL,
			UNIQUE (user_id, movie_id)
		)`,
	}
	for _, s := range schema {
		if _, err := db.Exec(s); err != nil {
			fmt.Fprintln(os.Stderr, "create schema:", err)
			os.Exit(1)
		}
	}

	testDB = db
	users = repository.NewUserRepo(db)
	movies = repository.NewMovieRepo(db)
	favorites = repository.NewFavoriteRepo(db)

	code := m.Run()
	db.Close()
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"favorites", "movies", "users"} {
		_, err := testDB.Exec("DELETE FROM " + table)
		require.NoError(t, err)
	}
}

func seedUser(t *testing.T, name, email string) model.User {
	t.Helper()
	u, err := users.Create(context.Background(), name, email)
	require.NoError(t, err)
	return u
}

func seedMovie(t *testing.T, title string, year int) model.Movie {
	t.Helper()
	m, err := movies.Create(context.Background(), model.Movie{
		Title: title, Director: "Denis Villeneuve", Genre: "Ciencia Ficción",
		Duration: 120, Year: year, Classification: "PG-13",
	})
	require.NoError(t, err)
	return m
}

// do runs one request through a fresh echo context and returns the recorder.
func do(t *testing.T, h echo.HandlerFunc, req *http.Request, pathParams map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	names := make([]string, 0, len(pathParams))
	values := make([]string, 0, len(pathParams))
	for k, v := range pathParams {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	require.NoError(t, h(c))
	return rec
}

func jsonReq(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func userHandler() *UserHandler {
	return NewUserHandler(users, favorites, &testCfg)
}

func TestCreateUserValidation(t *testing.T) {
	resetTables(t)
	h := userHandler()

	rec := do(t, h.Create, jsonReq(http.MethodPost, "/api/users", `{"name":"A","email":"a@example.com"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "single-character name")

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/users", `{"name":"Ana Torres","email":"not-an-email"}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/users", `{"name":"Ana Torres","email":"ana@example.com"}`), nil)
	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Ana Torres", body["name"])

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/users", `{"name":"Otra","email":"ANA@example.com"}`), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "email unique case-insensitively")
}

func TestLoginIssuesToken(t *testing.T) {
	resetTables(t)
	seedUser(t, "Ana Torres", "ana@example.com")
	h := userHandler()

	rec := do(t, h.Login, jsonReq(http.MethodPost, "/api/users/login", `{"name":"Ana Torres","email":"ana@example.com"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["token"])
	assert.NotNil(t, body["user"])

	rec = do(t, h.Login, jsonReq(http.MethodPost, "/api/users/login", `{"name":"Ana Torres","email":"wrong@example.com"}`), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListUsersPaginationEnvelope(t *testing.T) {
	resetTables(t)
	for i := 0; i < 5; i++ {
		seedUser(t, fmt.Sprintf("User %02d", i), fmt.Sprintf("user%02d@example.com", i))
	}
	h := userHandler()

	rec := do(t, h.List, httptest.NewRequest(http.MethodGet, "/api/users?page=2&limit=2", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 5, body["total_records"])
	assert.EqualValues(t, 2, body["current_pg"])
	assert.EqualValues(t, 3, body["pages"])
	assert.Equal(t, true, body["has_next"])
	assert.Equal(t, true, body["has_prev"])
	assert.EqualValues(t, 3, body["next_page"])
	assert.EqualValues(t, 1, body["prev_page"])
	assert.Len(t, body["items"], 2)

	rec = do(t, h.List, httptest.NewRequest(http.MethodGet, "/api/users?page=4&limit=2", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "page past the end")

	rec = do(t, h.List, httptest.NewRequest(http.MethodGet, "/api/users?limit=101", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateMovieBoundaries(t *testing.T) {
	resetTables(t)
	h := NewMovieHandler(movies)

	movieBody := func(year, duration int, classification string) string {
		return fmt.Sprintf(`{"title":"Test Movie","director":"Someone","genre":"Drama",
			"duration":%d,"year":%d,"classification":%q}`, duration, year, classification)
	}

	rec := do(t, h.Create, jsonReq(http.MethodPost, "/api/movies", movieBody(1887, 120, "PG")), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "year below 1888")

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/movies", movieBody(1888, 120, "PG")), nil)
	assert.Equal(t, http.StatusCreated, rec.Code, "1888 is the lower bound")

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/movies", movieBody(2000, 601, "PG")), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "duration above 600")

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/movies", movieBody(1888, 600, "PG")), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "same title and year")

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/movies", movieBody(2001, 600, "TV-MA")), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "classification outside the allow-list")

	rec = do(t, h.Create, jsonReq(http.MethodPost, "/api/movies", movieBody(2001, 600, "pg-13")), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "PG-13", body["classification"], "canonical upper case")
	assert.Nil(t, body["image_url"], "no poster yet")
}

func TestMovieByClassificationRoute(t *testing.T) {
	resetTables(t)
	h := NewMovieHandler(movies)

	rec := do(t, h.ByClassification, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"rating": "NC-21"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown rating is not part of the URL space")

	rec = do(t, h.ByClassification, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"rating": "pg-13"})
	assert.Equal(t, http.StatusOK, rec.Code, "rating segment is case-insensitive")
}

func TestSearchRejectsContradictoryFilters(t *testing.T) {
	resetTables(t)
	h := NewMovieHandler(movies)

	rec := do(t, h.Search, httptest.NewRequest(http.MethodGet, "/api/movies/search?year=2020&year_min=2010", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Search, httptest.NewRequest(http.MethodGet, "/api/movies/search?year_min=2020&year_max=2010", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h.Search, httptest.NewRequest(http.MethodGet, "/api/movies/search?duration_min=200&duration_max=100", nil), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	seedMovie(t, "Dune", 2021)
	rec = do(t, h.Search, httptest.NewRequest(http.MethodGet, "/api/movies/search?director=villeneuve", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 1, body["total_records"])
}

func posterRequest(t *testing.T, contentType string, size int) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="poster.bin"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte{0xAB}, size))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func TestUploadPosterGuards(t *testing.T) {
	resetTables(t)
	h := NewMovieHandler(movies)
	m := seedMovie(t, "Dune", 2021)
	id := fmt.Sprint(m.ID)

	rec := do(t, h.UploadPoster, posterRequest(t, "text/plain", 10), map[string]string{"id": id})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "content type outside the allow-list")

	rec = do(t, h.UploadPoster, posterRequest(t, "image/jpeg", maxPosterBytes+1), map[string]string{"id": id})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "over the 5 MB cap")

	rec = do(t, h.UploadPoster, posterRequest(t, "image/png", 64), map[string]string{"id": id})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h.GetPoster, httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": id})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=3600", rec.Header().Get("Cache-Control"))
	assert.Len(t, rec.Body.Bytes(), 64)
}

func TestGetPosterMissing(t *testing.T) {
	resetTables(t)
	h := NewMovieHandler(movies)
	m := seedMovie(t, "Dune", 2021)

	rec := do(t, h.GetPoster, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": fmt.Sprint(m.ID)})
	assert.Equal(t, http.StatusNotFound, rec.Code, "movie without poster")

	rec = do(t, h.GetPoster, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": "9999"})
	assert.Equal(t, http.StatusNotFound, rec.Code, "movie absent")
}

func TestFavoriteLifecycle(t *testing.T) {
	resetTables(t)
	fh := NewFavoriteHandler(favorites)
	u := seedUser(t, "Ana Torres", "ana@example.com")
	m := seedMovie(t, "Dune", 2021)

	body := fmt.Sprintf(`{"user_id":%d,"movie_id":%d}`, u.ID, m.ID)
	rec := do(t, fh.Create, jsonReq(http.MethodPost, "/api/favorites", body), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)

	rec = do(t, fh.Create, jsonReq(http.MethodPost, "/api/favorites", body), nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "already marked")

	rec = do(t, fh.Create, jsonReq(http.MethodPost, "/api/favorites", `{"user_id":9999,"movie_id":1}`), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	favID := fmt.Sprint(int(created["id"].(float64)))
	rec = do(t, fh.Get, httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": favID})
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode(t, rec)
	assert.Equal(t, "Dune", detail["movie"].(map[string]any)["title"])
	assert.Equal(t, "Ana Torres", detail["user"].(map[string]any)["name"])

	rec = do(t, fh.Delete, httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": favID})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, fh.Delete, httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"id": favID})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFavoriteCheck(t *testing.T) {
	resetTables(t)
	fh := NewFavoriteHandler(favorites)
	u := seedUser(t, "Ana Torres", "ana@example.com")
	m := seedMovie(t, "Dune", 2021)
	params := map[string]string{"userID": fmt.Sprint(u.ID), "movieID": fmt.Sprint(m.ID)}

	rec := do(t, fh.Check, httptest.NewRequest(http.MethodGet, "/", nil), params)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["is_favorite"])
	assert.NotContains(t, body, "favorite_id")

	f, err := favorites.Create(context.Background(), u.ID, m.ID)
	require.NoError(t, err)

	rec = do(t, fh.Check, httptest.NewRequest(http.MethodGet, "/", nil), params)
	body = decode(t, rec)
	assert.Equal(t, true, body["is_favorite"])
	assert.EqualValues(t, f.ID, body["favorite_id"])
	assert.NotEmpty(t, body["marked_at"])
}

func TestRecommendationsLimit(t *testing.T) {
	resetTables(t)
	fh := NewFavoriteHandler(favorites)
	u := seedUser(t, "Ana Torres", "ana@example.com")
	params := map[string]string{"userID": fmt.Sprint(u.ID)}

	rec := do(t, fh.Recommendations, httptest.NewRequest(http.MethodGet, "/?limit=21", nil), params)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "limit above 20")

	rec = do(t, fh.Recommendations, httptest.NewRequest(http.MethodGet, "/", nil), params)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String(), "no favorites yet")

	rec = do(t, fh.Recommendations, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"userID": "9999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGlobalStats(t *testing.T) {
	resetTables(t)
	fh := NewFavoriteHandler(favorites)

	rec := do(t, fh.GlobalStats, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["total_favorites"])
	assert.Nil(t, body["top_user"])
	assert.Nil(t, body["top_movie"])
	assert.Nil(t, body["top_genre"])

	u1 := seedUser(t, "Ana Torres", "ana@example.com")
	u2 := seedUser(t, "Luis Vega", "luis@example.com")
	m1 := seedMovie(t, "Dune", 2021)
	m2 := seedMovie(t, "Arrival", 2016)
	for _, pair := range [][2]uint64{{u1.ID, m1.ID}, {u1.ID, m2.ID}, {u2.ID, m1.ID}} {
		_, err := favorites.Create(context.Background(), pair[0], pair[1])
		require.NoError(t, err)
	}

	rec = do(t, fh.GlobalStats, httptest.NewRequest(http.MethodGet, "/", nil), nil)
	body = decode(t, rec)
	assert.EqualValues(t, 3, body["total_favorites"])
	topUser := body["top_user"].(map[string]any)
	assert.Equal(t, "Ana Torres", topUser["name"])
	assert.EqualValues(t, 2, topUser["favorite_count"])
	topMovie := body["top_movie"].(map[string]any)
	assert.Equal(t, "Dune", topMovie["title"])
	topGenre := body["top_genre"].(map[string]any)
	assert.Equal(t, "Ciencia Ficción", topGenre["genre"])
	assert.EqualValues(t, 3, topGenre["count"])
}

func TestUserStatsEndpoint(t *testing.T) {
	resetTables(t)
	uh := userHandler()
	u := seedUser(t, "Ana Torres", "ana@example.com")
	params := map[string]string{"id": fmt.Sprint(u.ID)}

	rec := do(t, uh.Stats, httptest.NewRequest(http.MethodGet, "/", nil), params)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 0, body["total_favorites"])
	assert.Nil(t, body["favorite_decade"])

	m1 := seedMovie(t, "Dune", 2021)
	m2 := seedMovie(t, "Blade Runner 2049", 2017)
	for _, id := range []uint64{m1.ID, m2.ID} {
		_, err := favorites.Create(context.Background(), u.ID, id)
		require.NoError(t, err)
	}

	rec = do(t, uh.Stats, httptest.NewRequest(http.MethodGet, "/", nil), params)
	body = decode(t, rec)
	assert.EqualValues(t, 2, body["total_favorites"])
	assert.EqualValues(t, 240, body["total_minutes"])
	assert.EqualValues(t, 4, body["total_hours"])
	decade := body["favorite_decade"].(map[string]any)
	assert.Equal(t, "2020s", decade["decade"], "tie resolved to the first-marked decade")

	rec = do(t, uh.Stats, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": "9999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestUserMovieFavoriteLifecycle walks the happy path end to end: register,
// add a movie, mark it, list it back, then delete the user and verify no
// favorite row survives the cascade.
func TestUserMovieFavoriteLifecycle(t *testing.T) {
	resetTables(t)
	uh := userHandler()
	mh := NewMovieHandler(movies)
	fh := NewFavoriteHandler(favorites)

	rec := do(t, uh.Create, jsonReq(http.MethodPost, "/api/users", `{"name":"Ana","email":"ana@x.com"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	userID := fmt.Sprint(int(decode(t, rec)["id"].(float64)))

	rec = do(t, mh.Create, jsonReq(http.MethodPost, "/api/movies",
		`{"title":"X","director":"D","genre":"Drama","duration":100,"year":2020,"classification":"PG"}`), nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	movieID := fmt.Sprint(int(decode(t, rec)["id"].(float64)))

	rec = do(t, uh.MarkFavorite, httptest.NewRequest(http.MethodPost, "/", nil),
		map[string]string{"id": userID, "movieID": movieID})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, uh.ListFavorites, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": userID})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "X", list[0]["title"])

	rec = do(t, uh.Delete, httptest.NewRequest(http.MethodDelete, "/", nil),
		map[string]string{"id": userID})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, fh.ByUser, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"userID": userID})
	assert.Equal(t, http.StatusNotFound, rec.Code, "user gone")

	var n int
	require.NoError(t, testDB.QueryRow("SELECT COUNT(*) FROM favorites").Scan(&n))
	assert.Zero(t, n, "no dangling favorite rows")
}

func TestMarkAndUnmarkThroughUserRoute(t *testing.T) {
	resetTables(t)
	uh := userHandler()
	u := seedUser(t, "Ana Torres", "ana@example.com")
	m := seedMovie(t, "Dune", 2021)
	params := map[string]string{"id": fmt.Sprint(u.ID), "movieID": fmt.Sprint(m.ID)}

	rec := do(t, uh.MarkFavorite, httptest.NewRequest(http.MethodPost, "/", nil), params)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, uh.MarkFavorite, httptest.NewRequest(http.MethodPost, "/", nil), params)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, uh.ListFavorites, httptest.NewRequest(http.MethodGet, "/", nil),
		map[string]string{"id": fmt.Sprint(u.ID)})
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Dune", list[0]["title"])

	rec = do(t, uh.UnmarkFavorite, httptest.NewRequest(http.MethodDelete, "/", nil), params)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, uh.UnmarkFavorite, httptest.NewRequest(http.MethodDelete, "/", nil), params)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
