package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gemhutch/registry/internal/adapters/auth"
	"github.com/gemhutch/registry/internal/adapters/metadata"
	"github.com/gemhutch/registry/internal/adapters/storage"
	"github.com/gemhutch/registry/internal/api/handlers"
	"github.com/gemhutch/registry/internal/config"
	"github.com/gemhutch/registry/internal/index"
	"github.com/gemhutch/registry/internal/util/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := logging.New(os.Stdout, "gemhutch-registry")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize blob storage.
	blobs, err := storage.NewDiskBlobStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize blob storage")
	}

	// Initialize metadata store.
	meta, err := metadata.NewSQLiteStore(cfg.Storage.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metadata store")
	}
	defer meta.Close()

	// Initialize authenticator and index publisher.
	authenticator := auth.NewTokenAuth(cfg.Auth.Tokens)
	publisher := index.NewPublisher(meta, blobs, logger)

	if cfg.Index.PublishOnStart {
		if err := publisher.PublishAll(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("initial index publish failed")
		}
	}

	// Initialize HTTP handlers.
	handler := handlers.New(blobs, meta, authenticator, publisher, logger, cfg.Index.CacheMaxAge)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler.Router(),
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Msg("shutting down server")
		srv.Close()
	}()

	logger.Info().Str("addr", addr).Msg("starting Gem Hutch registry server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
}
