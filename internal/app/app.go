package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"musicfiles/internal/config"
	"musicfiles/internal/database"
	"musicfiles/internal/handler"
	"musicfiles/internal/middleware"
	"musicfiles/internal/objstore"
	"musicfiles/internal/repository"
	"musicfiles/internal/router"
	"musicfiles/internal/service"
)

type App struct {
	server *http.Server
	db     *database.DB
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	store, err := objstore.New(objstore.Options{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Bucket:    cfg.S3Bucket,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}
	if err := store.EnsureBucket(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure object store bucket: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	musicRepo := repository.NewMusicFileRepository(pool)
	slog.Info("database ready")

	tokenService, err := service.NewTokenService(cfg.JWTKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessTTL, cfg.RefreshTokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	credentialValidator := service.NewCredentialValidator()
	accountService := service.NewAccountService(userRepo, credentialValidator, tokenService, cfg.FailedLoginDelay)
	musicService := service.NewMusicDataService(musicRepo)
	uploadService := service.NewFileUploadService(store, cfg.UploadURLTTL)

	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	accountHandler := handler.NewAccountHandler(accountService)
	musicHandler := handler.NewMusicHandler(uploadService, musicService)

	appRouter := router.New(cfg, authMiddleware, router.Handlers{
		Account: accountHandler,
		Music:   musicHandler,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      appRouter,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  cfg.ServerIdleTimeout,
	}

	return &App{server: server, db: db}, nil
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		a.db.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	a.db.Close()

	slog.Info("server stopped")
	return nil
}
