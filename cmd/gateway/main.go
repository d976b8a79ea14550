// Command gateway runs the GoLive API gateway: the rate-limited HTTP surface
// and the WebSocket fan-out hub, with an optional Kafka event bridge.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/comet-platform/golive/internal/config"
	"github.com/comet-platform/golive/internal/events"
	"github.com/comet-platform/golive/internal/handlers"
	"github.com/comet-platform/golive/internal/ratelimit"
	"github.com/comet-platform/golive/internal/redis"
	"github.com/comet-platform/golive/internal/ws"
	"github.com/comet-platform/golive/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	// Optional; real deployments rely on the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("Gateway exited with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting GoLive gateway",
		zap.String("environment", cfg.Environment),
		zap.Int("port", cfg.Server.Port))

	redisClient, err := redis.NewClient(cfg.Redis, log)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisStore(redisClient.Redis()), log)
	table := ratelimit.DefaultTable()

	hub := ws.NewHub(cfg.WebSocket, log)
	defer hub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Events.Enabled {
		bridge := events.NewBridge(cfg.Events, hub, log)
		defer bridge.Close()
		go func() {
			if err := bridge.Run(ctx); err != nil {
				log.Error("Event bridge stopped", zap.Error(err))
			}
		}()
	}

	server := handlers.NewServer(cfg, log, limiter, table, hub, redisClient)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("Gateway stopped")
	return nil
}
