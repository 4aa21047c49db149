// Package tmdb is the client for The Movie Database metadata provider. It
// normalizes TMDB payloads into catalog-shaped records and exposes a poster
// byte-fetch. The caller owns deduplication and persistence; this package
// only talks HTTP and maps fields.
package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/filmoteca/filmoteca/internal/config"
)

// Movie is a normalized metadata record, shaped like a catalog entry plus
// the provider id and poster reference needed by the import flow.
type Movie struct {
	TMDBID         int    `json:"tmdb_id"`
	Title          string `json:"title"`
	Director       string `json:"director"`
	Genre          string `json:"genre"`
	Duration       int    `json:"duration"`
	Year           int    `json:"year"`
	Classification string `json:"classification"`
	Synopsis       string `json:"synopsis"`
	PosterPath     string `json:"poster_path,omitempty"`
}

// Client calls the TMDB REST API. All connection parameters come from
// explicit configuration at construction time.
type Client struct {
	baseURL      string
	imageBaseURL string
	token        string
	language     string
	http         *http.Client
}

// NewClient builds a Client from configuration. The HTTP client enforces
// the configured per-request timeout, the only wait bound a lookup has.
func NewClient(cfg config.TMDBConfig) *Client {
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		imageBaseURL: strings.TrimRight(cfg.ImageBaseURL, "/"),
		token:        cfg.BearerToken,
		language:     cfg.Language,
		http:         &http.Client{Timeout: cfg.Timeout},
	}
}

// genreNames maps TMDB genre ids to display names, matching the catalog's
// free-text genre vocabulary.
var genreNames = map[int]string{
	28: "Acción", 12: "Aventura", 16: "Animación", 35: "Comedia",
	80: "Crimen", 99: "Documental", 18: "Drama", 10751: "Familia",
	14: "Fantasía", 36: "Historia", 27: "Terror", 10402: "Música",
	9648: "Misterio", 10749: "Romance", 878: "Ciencia Ficción",
	10770: "Película de TV", 53: "Thriller", 10752: "Guerra", 37: "Western",
}

const (
	unknownDirector = "Director desconocido"
	noGenre         = "Sin género"
	noSynopsis      = "Sin sinopsis disponible"
)

type listingMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	GenreIDs    []int   `json:"genre_ids"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Adult       bool    `json:"adult"`
	Runtime     int     `json:"runtime"`
}

type listingPage struct {
	Results []listingMovie `json:"results"`
}

// Popular fetches one page of TMDB's popular listing. Records that cannot
// be mapped (no usable release year) are skipped, not fatal: the batch is
// partial-success by contract.
func (c *Client) Popular(ctx context.Context, page int) ([]Movie, error) {
	q := url.Values{"page": {strconv.Itoa(page)}, "language": {c.language}}
	return c.listing(ctx, "/movie/popular", q)
}

// Search looks up movies by title, one page at a time.
func (c *Client) Search(ctx context.Context, query string, page int) ([]Movie, error) {
	q := url.Values{"query": {query}, "page": {strconv.Itoa(page)}, "language": {c.language}}
	return c.listing(ctx, "/search/movie", q)
}

func (c *Client) listing(ctx context.Context, path string, q url.Values) ([]Movie, error) {
	var page listingPage
	if err := c.getJSON(ctx, path, q, &page); err != nil {
		return nil, err
	}
	out := make([]Movie, 0, len(page.Results))
	for _, lm := range page.Results {
		m, err := mapListing(lm)
		if err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

type detailMovie struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Overview    string  `json:"overview"`
	ReleaseDate string  `json:"release_date"`
	Runtime     int     `json:"runtime"`
	PosterPath  string  `json:"poster_path"`
	VoteAverage float64 `json:"vote_average"`
	Adult       bool    `json:"adult"`
	Genres      []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Crew []struct {
			Job  string `json:"job"`
			Name string `json:"name"`
		} `json:"crew"`
	} `json:"credits"`
	ReleaseDates struct {
		Results []struct {
			Country  string `json:"iso_3166_1"`
			Releases []struct {
				Certification string `json:"certification"`
			} `json:"release_dates"`
		} `json:"results"`
	} `json:"release_dates"`
}

// Details fetches the full record for one movie, including the director
// (from the credits crew) and the US certification when published.
func (c *Client) Details(ctx context.Context, tmdbID int) (Movie, error) {
	var d detailMovie
	q := url.Values{"append_to_response": {"credits,release_dates"}, "language": {c.language}}
	if err := c.getJSON(ctx, "/movie/"+strconv.Itoa(tmdbID), q, &d); err != nil {
		return Movie{}, err
	}
	return mapDetails(d)
}

// DownloadPoster fetches the poster bytes for a TMDB poster path such as
// "/abc123.jpg".
func (c *Client) DownloadPoster(ctx context.Context, posterPath string) ([]byte, error) {
	if posterPath == "" {
		return nil, fmt.Errorf("tmdb: empty poster path")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.imageBaseURL+posterPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tmdb: poster fetch returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tmdb: %s returned %s", path, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// mapListing normalizes a listing entry. Listings carry no director and no
// exact runtime; the import flow upgrades records through Details before
// persisting. A record without a parseable release year is rejected so the
// caller can skip it.
func mapListing(lm listingMovie) (Movie, error) {
	year, err := yearOf(lm.ReleaseDate)
	if err != nil {
		return Movie{}, err
	}

	names := make([]string, 0, 3)
	for _, id := range lm.GenreIDs {
		if len(names) == 3 {
			break
		}
		if n, ok := genreNames[id]; ok {
			names = append(names, n)
		} else {
			names = append(names, "Otro")
		}
	}
	genre := noGenre
	if len(names) > 0 {
		genre = strings.Join(names, ", ")
	}

	duration := lm.Runtime
	if duration <= 0 {
		duration = 120
	}

	return Movie{
		TMDBID:         lm.ID,
		Title:          titleOr(lm.Title),
		Director:       unknownDirector,
		Genre:          genre,
		Duration:       duration,
		Year:           year,
		Classification: heuristicClassification(lm.Adult, lm.VoteAverage),
		Synopsis:       synopsisOf(lm.Overview),
		PosterPath:     lm.PosterPath,
	}, nil
}

func mapDetails(d detailMovie) (Movie, error) {
	year, err := yearOf(d.ReleaseDate)
	if err != nil {
		return Movie{}, err
	}

	names := make([]string, 0, 3)
	for _, g := range d.Genres {
		if len(names) == 3 {
			break
		}
		if g.Name != "" {
			names = append(names, g.Name)
		}
	}
	genre := noGenre
	if len(names) > 0 {
		genre = strings.Join(names, ", ")
	}

	director := unknownDirector
	for _, p := range d.Credits.Crew {
		if p.Job == "Director" && p.Name != "" {
			director = p.Name
			break
		}
	}

	classification := heuristicClassification(d.Adult, d.VoteAverage)
	for _, r := range d.ReleaseDates.Results {
		if r.Country != "US" {
			continue
		}
		for _, rel := range r.Releases {
			if rel.Certification != "" {
				classification = rel.Certification
				break
			}
		}
		break
	}

	duration := d.Runtime
	if duration <= 0 {
		duration = 120
	}

	return Movie{
		TMDBID:         d.ID,
		Title:          titleOr(d.Title),
		Director:       director,
		Genre:          genre,
		Duration:       duration,
		Year:           year,
		Classification: classification,
		Synopsis:       synopsisOf(d.Overview),
		PosterPath:     d.PosterPath,
	}, nil
}

// heuristicClassification approximates an age rating for listing entries,
// which carry no certification: adult content maps to R, otherwise the vote
// average buckets into PG-13 / PG / G.
func heuristicClassification(adult bool, vote float64) string {
	switch {
	case adult:
		return "R"
	case vote >= 7.5:
		return "PG-13"
	case vote >= 6.0:
		return "PG"
	default:
		return "G"
	}
}

func yearOf(releaseDate string) (int, error) {
	if len(releaseDate) < 4 {
		return 0, fmt.Errorf("tmdb: no release year in %q", releaseDate)
	}
	year, err := strconv.Atoi(releaseDate[:4])
	if err != nil {
		return 0, fmt.Errorf("tmdb: bad release date %q", releaseDate)
	}
	return year, nil
}

func titleOr(t string) string {
	if t == "" {
		return "Sin título"
	}
	return t
}

func synopsisOf(overview string) string {
	if overview == "" {
		return noSynopsis
	}
	if len(overview) > 1000 {
		runes := []rune(overview)
		if len(runes) > 1000 {
			return string(runes[:1000])
		}
	}
	return overview
}
