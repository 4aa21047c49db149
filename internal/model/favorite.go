package model

import "time"

// Favorite links a user to a movie they marked. The (UserID, MovieID) pair
// is unique and both foreign keys cascade on parent deletion, so no orphan
// rows can survive a user or movie delete. A favorite is immutable once
// created; the only mutation is removal.
//
// Fields:
//  ID       – primary key identifier.
//  UserID   – owning user (favorites.user_id).
//  MovieID  – marked movie (favorites.movie_id).
//  MarkedAt – timestamp the favorite was created.
type Favorite struct {
	ID       uint64    `json:"id"`        // favorites.id
	UserID   uint64    `json:"user_id"`   // favorites.user_id
	MovieID  uint64    `json:"movie_id"`  // favorites.movie_id
	MarkedAt time.Time `json:"marked_at"` // favorites.marked_at
}

// FavoriteDetail is a favorite expanded with its user and movie rows,
// used by the get-by-id and per-user/per-movie listings.
type FavoriteDetail struct {
	Favorite
	User  User  `json:"user"`
	Movie Movie `json:"movie"`
}
