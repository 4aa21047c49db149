package model

import (
	"strings"
	"time"
)

// Classifications is the fixed allow-list for the movie age classification
// field. Values are compared upper-cased.
var Classifications = []string{"G", "PG", "PG-13", "R", "NC-17", "NR", "ATP", "+13", "+16", "+18"}

// Movie represents a catalog entry as stored in the `movies` table.
// The (Title, Year) pair is unique. Genre is free text and may hold
// several comma-joined genres ("Drama, Thriller"). The poster image is
// stored inline as bytes and never serialized to JSON; read models expose
// a computed URL instead.
//
// Fields:
//  ID             – primary key identifier of the movie.
//  Title          – movie title (unique together with Year).
//  Director       – director name.
//  Genre          – free-text genre(s), comma-joined.
//  Duration       – running time in minutes (1–600).
//  Year           – release year (>=1888, <=current year at creation).
//  Classification – age rating from the Classifications allow-list.
//  Synopsis       – optional plot summary (<=1000 chars).
//  CreatedAt      – timestamp of catalog insertion.
//  Poster         – optional inline poster bytes (<=5MB).
type Movie struct {
	ID             uint64    `json:"id"`                 // movies.id
	Title          string    `json:"title"`              // movies.title
	Director       string    `json:"director"`           // movies.director
	Genre          string    `json:"genre"`              // movies.genre
	Duration       int       `json:"duration"`           // movies.duration
	Year           int       `json:"year"`               // movies.year
	Classification string    `json:"classification"`     // movies.classification
	Synopsis       *string   `json:"synopsis,omitempty"` // movies.synopsis (nullable)
	CreatedAt      time.Time `json:"created_at"`         // movies.created_at
	Poster         []byte    `json:"-"`                  // movies.poster (nullable blob)
	HasPoster      bool      `json:"-"`                  // derived: poster present without loading bytes
}

// ValidClassification reports whether s is in the allow-list. Matching is
// case-insensitive; callers store the canonical upper-case form.
func ValidClassification(s string) bool {
	for _, c := range Classifications {
		if strings.EqualFold(s, c) {
			return true
		}
	}
	return false
}
