package model

import "time"

// User represents a registered account as stored in the `users` table.
// Email is unique across all users and is always persisted lower-cased,
// so the uniqueness check is effectively case-insensitive.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name.
//  Email        – unique email address (stored lower-case).
//  RegisteredAt – timestamp of account creation.
type User struct {
	ID           uint64    `json:"id"`            // users.id
	Name         string    `json:"name"`          // users.name
	Email        string    `json:"email"`         // users.email
	RegisteredAt time.Time `json:"registered_at"` // users.registered_at
}
