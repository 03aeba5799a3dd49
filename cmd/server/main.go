// Supportline - support chat backend server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/supportline/supportline/internal/analysis"
	"github.com/supportline/supportline/internal/api"
	"github.com/supportline/supportline/internal/auth"
	"github.com/supportline/supportline/internal/config"
	"github.com/supportline/supportline/internal/escalation"
	"github.com/supportline/supportline/internal/live"
	"github.com/supportline/supportline/internal/middleware"
	"github.com/supportline/supportline/internal/notify"
	"github.com/supportline/supportline/internal/ocr"
	"github.com/supportline/supportline/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize services.
	hub := notify.NewHub()
	svc := escalation.NewService(repo, hub)

	// Frame analysis is optional: without an API key the screen-share
	// channel falls back to hints only.
	var analyzer *analysis.Analyzer
	if cfg.AnalysisEnabled() {
		analyzer, err = analysis.New(context.Background(), cfg.GeminiKey, cfg.GeminiModel)
		if err != nil {
			slog.Warn("Failed to initialize analyzer, frame analysis disabled", "error", err)
			analyzer = nil
		} else {
			slog.Info("Frame analysis enabled", "model", cfg.GeminiModel)
		}
	} else {
		slog.Info("Frame analysis disabled (GEMINI_API_KEY not set)")
	}

	// Initialize handlers.
	escalationHandler := api.NewEscalationHandler(svc, cfg.UploadDir)
	liveHandler := live.NewHandler(hub, analyzer, ocr.NewTesseract(), cfg.UploadDir, cfg.FrontendURL, cfg.IsDevelopment())

	var authHandler *auth.Handler
	if cfg.AuthEnabled() {
		authHandler = auth.NewHandler(repo, cfg.JWTSecret)
	} else {
		slog.Info("Auth endpoints disabled (JWT_SECRET not set)")
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS([]string{"*"}))

	escalationHandler.RegisterRoutes(r)
	if authHandler != nil {
		authHandler.RegisterRoutes(r)
	}

	// Push channel + screen-share frames.
	r.Get("/ws", liveHandler.ServeHTTP)

	// Create server.
	// Note: live connections stay open indefinitely, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start the pending-request sweeper.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	escalation.StartPendingSweeper(ctx, repo, svc, cfg.PendingTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
