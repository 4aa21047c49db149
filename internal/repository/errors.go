// Package repository implements the persistence layer on database/sql.
// Sentinel errors defined here let handlers distinguish failure modes:
// not-found is reported with sql.ErrNoRows as the rest of the layer does,
// while the conflict sentinels mark uniqueness violations raised by the
// store itself. Handlers translate them to 404/409 responses.
package repository

import (
	"errors"
	"strings"
)

// ErrEmailExists is returned when a user insert or update collides with an
// existing email. Emails are stored lower-cased, so the collision check is
// case-insensitive.
var ErrEmailExists = errors.New("email already exists")

// ErrMovieExists is returned when a movie insert collides on (title, year).
var ErrMovieExists = errors.New("movie with this title and year already exists")

// ErrFavoriteExists is returned when a (user, movie) favorite pair already
// exists.
var ErrFavoriteExists = errors.New("favorite already exists")

// ErrUserNotFound and ErrMovieNotFound mark a missing parent on operations
// that reference both entities, where a bare sql.ErrNoRows could not tell
// the caller which id was wrong.
var (
	ErrUserNotFound  = errors.New("user not found")
	ErrMovieNotFound = errors.New("movie not found")
)

// isDuplicate reports whether err is a unique-key violation. MySQL surfaces
// these as error 1062; SQLite (used by the test suite) reports a "UNIQUE
// constraint failed" message. The unique key is the authoritative guard, so
// racing check-then-insert sequences still end up here.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique constraint")
}
