package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pingpongpal/internal/api"
	"pingpongpal/internal/broadcast"
	"pingpongpal/internal/config"
	"pingpongpal/internal/game"
	"pingpongpal/internal/htmx"
	"pingpongpal/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := cfg.NewLogger(os.Stderr)

	// Initialize layers
	matchService := game.NewService(logger)
	hub := broadcast.NewHub(logger)
	hub.SetWriteTimeout(cfg.WSWriteTimeout)

	// Setup routes
	mux := http.NewServeMux()
	api.NewHandler(matchService, hub, logger).RegisterRoutes(mux)
	ws.NewHandler(matchService, hub, logger).RegisterRoutes(mux)
	htmx.NewHandler(matchService, hub, logger).RegisterRoutes(mux)

	// Serve static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.LoggingMiddleware(logger, api.CORSMiddleware(mux)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("server stopped", "live_matches", matchService.Len())
}
