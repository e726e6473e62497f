package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgallion1/structlay/internal/api"
	"github.com/dgallion1/structlay/internal/cache"
	"github.com/dgallion1/structlay/internal/config"
	"github.com/dgallion1/structlay/internal/session"
	"github.com/dgallion1/structlay/internal/structclient"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Upstream structure endpoint.
	structs := structclient.NewClient(cfg.StructURL, cfg.StructAPIKey)

	// Page-structure cache shared by all sessions.
	structCache := cache.New(cache.Config{
		MaxEntries:      cfg.CacheMaxEntries,
		MaxAge:          cfg.CacheMaxAge,
		CleanupInterval: cfg.CacheCleanupInterval,
	}, log)
	structCache.Start(ctx)

	// Session registry with idle eviction.
	registry := session.NewRegistry(cfg.SessionTTL, cfg.SessionSweep, log)
	registry.Start(ctx)

	srv := api.NewServer(registry, structs, structCache, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		registry.Close()
		structCache.Stop()
		structs.Close()
	}()

	log.Info("starting structlay", "port", cfg.Port, "struct_url", cfg.StructURL)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
