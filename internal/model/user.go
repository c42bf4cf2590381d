package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity record persisted by the identity store. ID is the
// internal storage key; PublicID is the only identifier ever embedded in
// token claims and never changes once assigned.
type User struct {
	ID                    int64
	PublicID              string
	Username              string
	Email                 string
	FirstName             string
	LastName              string
	Phone                 string
	PasswordHash          string
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// AccessClaims is the claim set carried by an access token. Roles is the
// sole source of truth for role-gated operations downstream; role changes
// take effect on the next token issuance.
type AccessClaims struct {
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly issued access token with the refresh token
// persisted alongside it.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
