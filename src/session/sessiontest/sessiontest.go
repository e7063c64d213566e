// Package sessiontest mints session tokens shaped like the game server's
// for use in tests.
package sessiontest

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var signingKey = []byte("sessiontest")

// Token returns a signed token for userID that expires at exp.
func Token(userID, username string, exp time.Time) string {
	claims := jwt.MapClaims{
		"tid": uuid.NewString(),
		"uid": userID,
		"usn": username,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return s
}

// Pair returns an access token expiring after ttl and a refresh token
// expiring after refreshTTL. A zero refreshTTL yields no refresh token.
func Pair(userID, username string, ttl, refreshTTL time.Duration) (token, refresh string) {
	now := time.Now()
	token = Token(userID, username, now.Add(ttl))
	if refreshTTL > 0 {
		refresh = Token(userID, username, now.Add(refreshTTL))
	}
	return token, refresh
}
