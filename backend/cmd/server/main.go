package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"knowledge-base/backend/internal/api"
	"knowledge-base/backend/internal/bootstrap"
	"knowledge-base/backend/internal/constants"
	"knowledge-base/backend/pkg/config"
	"knowledge-base/backend/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}

	// Initialize logger
	if err := logger.Init(cfg.Env, cfg.LogLevel); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting HTTP API server...", zap.String("env", cfg.Env), zap.String("graph_backend", cfg.GraphBackend))

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}
	defer a.Close()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: a.router,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.String("port", cfg.Port))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// app holds everything the server needs to run and release
type app struct {
	*bootstrap.Env
	router *gin.Engine
}

// newApp opens the stores and builds the router for cfg
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	env, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	health := make(map[string]api.Pinger, len(env.Health))
	for name, check := range env.Health {
		health[name] = check
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Options{
		Config:   cfg,
		Services: env.Services,
		Health:   health,
	})
	return &app{Env: env, router: router}, nil
}
