package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"podverse/internal/config"
	"podverse/internal/handlers"
	"podverse/internal/logging"
	"podverse/internal/middleware"
	"podverse/internal/repository"
	"podverse/internal/service"
)

func main() {
	cfg, err := config.Load(".env", "config/local.env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logging.SetGlobalLogger(logger)

	repo, db, err := openRepository(context.Background(), cfg)
	if err != nil {
		logger.Fatal(err, "Failed to initialise storage")
	}
	if db != nil {
		defer db.Close()
	}

	playlistService := service.New(repo)
	playlistResource := service.NewResource(playlistService, cfg.Public.BaseURL)
	playlistHandler := handlers.New(playlistResource)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           newHTTPHandler(cfg, handlers.NewRouter(playlistHandler)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Zerolog().Info().Str("addr", server.Addr).Str("storage", cfg.Storage.Driver).Msg("Playlist service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(err, "Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down playlist service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error(err, "Server forced to shutdown")
		return
	}

	logger.Info("Playlist service exited")
}

// openRepository selects the playlist storage backend. The returned *sql.DB
// is nil for the in-memory backend.
func openRepository(ctx context.Context, cfg *config.Config) (repository.Repository, *sql.DB, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		repo := repository.NewInMemoryRepository()
		if cfg.Storage.SeedDemo {
			seedMemory(repo)
		}
		return repo, nil, nil
	}

	db, err := openDatabase(ctx, cfg.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.SeedDemo {
		if err := seedDatabase(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return repository.NewPostgresRepository(db), db, nil
}

// newHTTPHandler wraps the router with the cross-cutting middleware, outermost first.
func newHTTPHandler(cfg *config.Config, router http.Handler) http.Handler {
	var handler http.Handler = router
	handler = middleware.Authenticate([]byte(cfg.Security.JWTSecret))(handler)
	handler = middleware.CORS(cfg.CORS.AllowedOrigins)(handler)
	handler = middleware.RequestLogging()(handler)
	handler = middleware.Recovery()(handler)
	return handler
}
