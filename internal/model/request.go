package model

import "time"

type RegisterRequest struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	UserType        string `json:"userType"`
}

type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
	RememberMe      bool   `json:"rememberMe"`
}

type RefreshRequest struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
}

type PresignedURLRequest struct {
	FileName string `json:"fileName"`
}

type CompleteUploadRequest struct {
	FileName     string     `json:"fileName"`
	Category     string     `json:"category"`
	MediaType    string     `json:"mediaType"`
	LastModified *time.Time `json:"lastModified"`
}
