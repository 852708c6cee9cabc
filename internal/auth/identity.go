package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the (user, bearer credential) pair held while logged in.
type Identity struct {
	UserID string `json:"userid"`
	Token  string `json:"token"`
}

// Valid reports whether the pair can be used. A JWT credential carrying an
// exp claim must not be expired; opaque credentials are accepted as is.
func (i *Identity) Valid() bool {
	if i == nil || i.UserID == "" || i.Token == "" {
		return false
	}
	exp, ok := tokenExpiry(i.Token)
	if !ok {
		return true
	}
	return time.Now().Before(exp)
}

// tokenExpiry reads exp without verifying the signature: the backend is the
// one that verifies, the client only avoids sending credentials it knows are dead.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
