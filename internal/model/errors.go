package model

import "errors"

var (
	// Identity errors. ErrInvalidCredentials is the single flattened
	// authentication failure; callers never learn whether the identifier
	// was unknown or the password wrong.
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token errors
	ErrTokenInvalid = errors.New("invalid token")
)
