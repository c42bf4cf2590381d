package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"musicfiles/internal/config"
	"musicfiles/internal/handler"
	"musicfiles/internal/middleware"
	"musicfiles/internal/model"
)

type Handlers struct {
	Account *handler.AccountHandler
	Music   *handler.MusicHandler
}

// New builds the HTTP surface. The fallback policy is expressed here:
// registration, login, refresh and the existence probes are the only
// anonymous operations; everything else sits behind RequireAuth.
func New(cfg *config.Config, authMiddleware *middleware.AuthMiddleware, h Handlers) http.Handler {
	r := chi.NewRouter()
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.AuthRateLimitRPM)

	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(rateLimitMiddleware.Handler)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/account", func(account chi.Router) {
		account.Post("/register", h.Account.Register)
		account.Post("/login", h.Account.Login)
		account.Post("/generateNewAccessToken", h.Account.GenerateNewAccessToken)
		account.Post("/isEmailRegistered", h.Account.IsEmailRegistered)
		account.Post("/isUsernameRegistered", h.Account.IsUsernameRegistered)
		account.With(authMiddleware.RequireAuth).Get("/logout", h.Account.Logout)
	})

	r.Route("/api/music", func(music chi.Router) {
		music.Use(authMiddleware.RequireAuth)
		music.With(authMiddleware.RequireRoles(model.RolePublisher, model.RoleAdmin)).
			Post("/requestMediaUpload", h.Music.RequestMediaUpload)
		music.With(authMiddleware.RequireRoles(model.RolePublisher, model.RoleAdmin)).
			Post("/completeMediaUpload", h.Music.CompleteMediaUpload)
		music.Get("/list", h.Music.List)
	})

	return r
}
