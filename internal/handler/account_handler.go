package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"musicfiles/internal/middleware"
	"musicfiles/internal/model"
	"musicfiles/internal/service"
	"musicfiles/pkg/apierror"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body"))
		return
	}

	if err := h.accounts.Register(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.MessageResponse{Message: "User registered successfully"})
}

func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body"))
		return
	}

	pair, err := h.accounts.Login(r.Context(), payload.UsernameOrEmail, payload.Password, payload.RememberMe)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authenticationResponse(pair))
}

func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrTokenInvalid)
		return
	}

	if err := h.accounts.Logout(r.Context(), claims.Subject); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) GenerateNewAccessToken(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var payload model.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, apierror.BadRequest("invalid JSON body"))
		return
	}

	pair, err := h.accounts.RefreshAccessToken(r.Context(), payload.Token, payload.RefreshToken)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authenticationResponse(pair))
}

func (h *AccountHandler) IsEmailRegistered(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.URL.Query().Get("email"))
	if email == "" {
		writeError(w, apierror.BadRequest("email query parameter is required"))
		return
	}

	registered, err := h.accounts.IsEmailRegistered(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.RegisteredResponse{IsRegistered: registered})
}

func (h *AccountHandler) IsUsernameRegistered(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("userName"))
	if username == "" {
		writeError(w, apierror.BadRequest("userName query parameter is required"))
		return
	}

	registered, err := h.accounts.IsUsernameRegistered(r.Context(), username)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.RegisteredResponse{IsRegistered: registered})
}

func authenticationResponse(pair model.TokenPair) model.AuthenticationResponse {
	return model.AuthenticationResponse{
		Token:                  pair.AccessToken,
		Expiration:             pair.AccessExpiresAt,
		RefreshToken:           pair.RefreshToken,
		RefreshTokenExpiration: pair.RefreshExpiresAt,
	}
}
