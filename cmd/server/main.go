package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/campaign-insights/internal/api"
	"github.com/ignite/campaign-insights/internal/archive"
	"github.com/ignite/campaign-insights/internal/cache"
	"github.com/ignite/campaign-insights/internal/config"
	"github.com/ignite/campaign-insights/internal/pkg/logger"
	"github.com/ignite/campaign-insights/internal/storage"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	logger.SetRedactPII(cfg.Logging.RedactPIIEnabled())

	store, err := storage.Open(cfg.Database)
	if err != nil {
		logger.Error("open database failed", "error", err.Error())
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := store.Migrate(ctx); err != nil {
		logger.Error("migrate failed", "error", err.Error())
		os.Exit(1)
	}

	c := cache.New(cfg.Redis)
	if c != nil {
		defer c.Close()
		logger.Info("result cache enabled", "addr", cfg.Redis.Addr)
	}

	arc, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		logger.Error("archive init failed", "error", err.Error())
		os.Exit(1)
	}
	if arc != nil {
		logger.Info("raw upload archive enabled", "bucket", cfg.Archive.Bucket)
	}

	handlers := api.NewHandlers(store, c, arc, *cfg)
	server := api.NewServer(cfg.Server, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		logger.Info("server starting", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err.Error())
	}
	logger.Info("server stopped")
}
