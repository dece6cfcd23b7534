package jwt

import "github.com/golang-jwt/jwt/v5"

// PlayerClaims identify a platform user. Subject carries the user id.
type PlayerClaims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
}

// UserID returns the subject claim.
func (c *PlayerClaims) UserID() string { return c.Subject }
