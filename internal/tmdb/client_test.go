package tmdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filmoteca/filmoteca/internal/config"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.TMDBConfig{
		BaseURL:      srv.URL,
		ImageBaseURL: srv.URL + "/img",
		BearerToken:  "test-token",
		Language:     "es-ES",
		Timeout:      2 * time.Second,
	})
}

func TestPopularMapsListing(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/popular", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "es-ES", r.URL.Query().Get("language"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"id":27205,"title":"Inception","overview":"Un ladrón de sueños.",
			 "release_date":"2010-07-15","genre_ids":[28,878,12,53],
			 "poster_path":"/incep.jpg","vote_average":8.4,"adult":false},
			{"id":99,"title":"Sin fecha","overview":"x","release_date":"",
			 "genre_ids":[18],"vote_average":5.0,"adult":false}
		]}`))
	})

	got, err := c.Popular(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 1, "record without release year skipped")

	m := got[0]
	assert.Equal(t, 27205, m.TMDBID)
	assert.Equal(t, "Inception", m.Title)
	assert.Equal(t, "Director desconocido", m.Director, "listings carry no credits")
	assert.Equal(t, "Acción, Ciencia Ficción, Aventura", m.Genre, "first three ids, mapped in order")
	assert.Equal(t, 2010, m.Year)
	assert.Equal(t, 120, m.Duration, "default runtime for listings")
	assert.Equal(t, "PG-13", m.Classification, "vote >= 7.5")
	assert.Equal(t, "/incep.jpg", m.PosterPath)
}

func TestSearchSendsQuery(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "dune", r.URL.Query().Get("query"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	got, err := c.Search(context.Background(), "dune", 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDetailsExtractsDirectorAndCertification(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/movie/438631", r.URL.Path)
		assert.Equal(t, "credits,release_dates", r.URL.Query().Get("append_to_response"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":438631,"title":"Dune","overview":"Arrakis.",
			"release_date":"2021-09-15","runtime":155,"poster_path":"/dune.jpg",
			"vote_average":7.8,"adult":false,
			"genres":[{"name":"Ciencia ficción"},{"name":"Aventura"}],
			"credits":{"crew":[
				{"job":"Producer","name":"Mary Parent"},
				{"job":"Director","name":"Denis Villeneuve"}
			]},
			"release_dates":{"results":[
				{"iso_3166_1":"DE","release_dates":[{"certification":"12"}]},
				{"iso_3166_1":"US","release_dates":[{"certification":""},{"certification":"PG-13"}]}
			]}
		}`))
	})

	m, err := c.Details(context.Background(), 438631)
	require.NoError(t, err)
	assert.Equal(t, "Denis Villeneuve", m.Director)
	assert.Equal(t, "PG-13", m.Classification, "US certification wins over the heuristic")
	assert.Equal(t, 155, m.Duration)
	assert.Equal(t, "Ciencia ficción, Aventura", m.Genre)
	assert.Equal(t, 2021, m.Year)
}

func TestDetailsFallsBackToHeuristic(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":1,"title":"Sin certificar","release_date":"1999-01-01",
			"runtime":0,"vote_average":6.3,"adult":false,
			"genres":[],"credits":{"crew":[]},"release_dates":{"results":[]}
		}`))
	})

	m, err := c.Details(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "PG", m.Classification, "6.0 <= vote < 7.5")
	assert.Equal(t, "Director desconocido", m.Director)
	assert.Equal(t, "Sin género", m.Genre)
	assert.Equal(t, "Sin sinopsis disponible", m.Synopsis)
	assert.Equal(t, 120, m.Duration, "zero runtime defaults")
}

func TestHeuristicClassification(t *testing.T) {
	assert.Equal(t, "R", heuristicClassification(true, 9.0))
	assert.Equal(t, "PG-13", heuristicClassification(false, 7.5))
	assert.Equal(t, "PG", heuristicClassification(false, 6.0))
	assert.Equal(t, "G", heuristicClassification(false, 5.9))
}

func TestDownloadPoster(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/img/dune.jpg", r.URL.Path)
		_, _ = w.Write([]byte{0xFF, 0xD8, 0xFF})
	})

	img, err := c.DownloadPoster(context.Background(), "/dune.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, img)

	_, err = c.DownloadPoster(context.Background(), "")
	assert.Error(t, err)
}

func TestAPIErrorSurfaces(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.Popular(context.Background(), 1)
	assert.Error(t, err)
}
