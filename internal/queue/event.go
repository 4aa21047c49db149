// Package queue defines message payloads exchanged over the message broker.
package queue

// FavoriteMarkedEvent is published when a user marks a movie as favorite.
// It carries enough context for downstream consumers (notifications,
// analytics) to act without querying the primary database.
type FavoriteMarkedEvent struct {
	FavoriteID uint64 `json:"favorite_id"`
	UserID     uint64 `json:"user_id"`
	UserName   string `json:"user_name"`
	MovieID    uint64 `json:"movie_id"`
	MovieTitle string `json:"movie_title"`
	Genre      string `json:"genre"`
	MarkedAt   string `json:"marked_at"`
}

// FavoriteRemovedEvent is published when a favorite is deleted, either
// directly or through the bulk per-user removal.
type FavoriteRemovedEvent struct {
	UserID  uint64 `json:"user_id"`
	MovieID uint64 `json:"movie_id"`
	Bulk    bool   `json:"bulk"`
}

// MoviesImportedEvent is published after a metadata import batch finished.
// Imported counts only records actually persisted; failed records are
// logged and skipped, never aborting the batch.
type MoviesImportedEvent struct {
	Source   string   `json:"source"` // "popular", "search" or "by_id"
	Fetched  int      `json:"fetched"`
	Imported int      `json:"imported"`
	Titles   []string `json:"titles"`
}
