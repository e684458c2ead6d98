package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tracefold/gateaudit/internal/config"
	"github.com/tracefold/gateaudit/internal/logging"
	"github.com/tracefold/gateaudit/internal/packages"
)

var version = "0.1.0"

func main() {
	_ = godotenv.Load()

	for _, arg := range os.Args[1:] {
		switch arg {
		case "--help", "-h":
			config.WriteHelp(os.Stdout, version)
			return
		case "--version":
			fmt.Println(version)
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.Setup(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging error: %v\n", err)
		os.Exit(1)
	}

	if cfg.DocStoreEndpoint == "" {
		logger.Error("GA_DOCSTORE_ENDPOINT is required")
		os.Exit(1)
	}

	embedder, err := packages.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	if err != nil {
		logger.Error("embedder setup failed", "error", err)
		os.Exit(1)
	}
	store := packages.NewHTTPStore(cfg.DocStoreEndpoint, cfg.DocStoreMaxPayloadBytes)

	importer := packages.NewImporter(
		logger, store, embedder,
		cfg.PackagesDir, cfg.BackupID,
		cfg.TakeBackup, cfg.RestoreBackup,
	)
	if err := importer.Run(ctx); err != nil {
		logger.Error("package import failed", "error", err)
		os.Exit(1)
	}
}
