package config

import "time"

// TMDBConfig carries everything the metadata client needs. The bearer token
// is required configuration: there is deliberately no fallback literal in
// code, a missing TMDB_BEARER_TOKEN aborts startup.
type TMDBConfig struct {
	BaseURL      string        // API root, default https://api.themoviedb.org/3
	ImageBaseURL string        // poster root, default https://image.tmdb.org/t/p/w500
	BearerToken  string        // TMDB API read token
	Language     string        // language sent with list/search requests
	Timeout      time.Duration // per-request timeout for the HTTP client
}

// LoadTMDBConfig reads the TMDB settings from environment variables.
func LoadTMDBConfig() TMDBConfig {
	return TMDBConfig{
		BaseURL:      getenv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		ImageBaseURL: getenv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p/w500"),
		BearerToken:  must("TMDB_BEARER_TOKEN"),
		Language:     getenv("TMDB_LANGUAGE", "es-ES"),
		Timeout:      parseDur(getenv("TMDB_TIMEOUT", "10s")),
	}
}
