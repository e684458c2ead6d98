package config

import (
	"context"
	"fmt"
	"io"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"GA_PORT,default=8989"`
	DBPath   string `env:"GA_DB_PATH,default=/data/gateaudit.db"`
	LogLevel string `env:"GA_LOG_LEVEL,default=info"`

	PackagesDir             string `env:"GA_PACKAGES_DIR,default=data"`
	DocStoreEndpoint        string `env:"GA_DOCSTORE_ENDPOINT"`
	DocStoreMaxPayloadBytes int    `env:"GA_DOCSTORE_MAX_PAYLOAD_BYTES,default=5242880"`
	BackupID                string `env:"GA_BACKUP_ID,default=backup"`
	TakeBackup              bool   `env:"GA_TAKE_BACKUP,default=true"`
	RestoreBackup           bool   `env:"GA_RESTORE_BACKUP,default=true"`

	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	EmbeddingModel string `env:"GA_EMBEDDING_MODEL,default=text-embedding-3-small"`
}

func Load(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("load env config: %w", err)
	}
	return &cfg, nil
}

func WriteHelp(w io.Writer, version string) {
	fmt.Fprintf(w, "gateaudit %s\n\n", version)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  GA_PORT=8989")
	fmt.Fprintln(w, "  GA_DB_PATH=/data/gateaudit.db")
	fmt.Fprintln(w, "  GA_LOG_LEVEL=info")
	fmt.Fprintln(w, "  GA_PACKAGES_DIR=data")
	fmt.Fprintln(w, "  GA_DOCSTORE_ENDPOINT=")
	fmt.Fprintln(w, "  GA_DOCSTORE_MAX_PAYLOAD_BYTES=5242880")
	fmt.Fprintln(w, "  GA_BACKUP_ID=backup")
	fmt.Fprintln(w, "  GA_TAKE_BACKUP=true")
	fmt.Fprintln(w, "  GA_RESTORE_BACKUP=true")
	fmt.Fprintln(w, "  OPENAI_API_KEY=")
	fmt.Fprintln(w, "  GA_EMBEDDING_MODEL=text-embedding-3-small")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  --help")
	fmt.Fprintln(w, "  --version")
}
