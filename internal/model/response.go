package model

import "time"

// APIError is the wire shape of every error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error *APIError `json:"error"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type RegisteredResponse struct {
	IsRegistered bool `json:"isRegistered"`
}

// AuthenticationResponse is returned by login and refresh. Expirations are
// absolute timestamps and keep their timezone offset on the wire.
type AuthenticationResponse struct {
	Token                  string    `json:"token"`
	Expiration             time.Time `json:"expiration"`
	RefreshToken           string    `json:"refreshToken"`
	RefreshTokenExpiration time.Time `json:"refreshTokenExpiration"`
}

type PresignedURLResponse struct {
	UploadURL string    `json:"uploadUrl"`
	S3Key     string    `json:"s3Key"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type MusicFileResponse struct {
	ID           string     `json:"id"`
	UserPublicID string     `json:"userPublicId"`
	FileName     string     `json:"fileName"`
	Category     string     `json:"category"`
	MediaType    string     `json:"mediaType"`
	LastModified *time.Time `json:"lastModified,omitempty"`
}

type MusicFileListResponse struct {
	Files []MusicFileResponse `json:"files"`
}
