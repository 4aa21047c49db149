package utils // package utils provides token issuing and field validation helpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionToken is the signed token handed back by login along with its
// expiry. Nothing in this API verifies it yet: login is an identification
// placeholder, not authentication, and the token exists for clients that
// want to carry a session handle.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for a user. Claims: subject
// (sub), display name (name), expiration (exp) and issued at (iat).
func NewSessionToken(secret string, userID uint64, name string, ttlMin int) (SessionToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":  userID,
		"name": name,
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}
