package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/tracefold/gateaudit/internal/app"
	"github.com/tracefold/gateaudit/internal/config"
	"github.com/tracefold/gateaudit/internal/logging"
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

	runtime := app.New(cfg, logger, version)
	if err := runtime.Run(ctx); err != nil {
		logger.Error("runtime failed", "error", err)
		os.Exit(1)
	}
}
