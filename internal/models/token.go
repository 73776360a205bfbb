package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the signed envelope carried by bearer tokens. Subject holds
// the user id. Role and TokenVersion are snapshots taken at mint time; the
// authoritative role is always re-read from the credential store, and tokens
// whose TokenVersion is below the user's current counter are treated as
// revoked.
type TokenClaims struct {
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	jwt.RegisteredClaims
}

// Principal is the verified identity attached to a request by the auth
// middleware. Role comes from the credential store, never from the token.
type Principal struct {
	ID   string
	Role string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
