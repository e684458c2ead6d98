package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/tracefold/gateaudit/internal/config"
	"github.com/tracefold/gateaudit/internal/db"
	"github.com/tracefold/gateaudit/internal/server"
)

// Runtime wires the audit store to its HTTP reporting surface. The store
// handle is constructed once here and handed to the recorder and reader; no
// package-level state.
type Runtime struct {
	cfg        *config.Config
	logger     *slog.Logger
	version    string
	startedAt  time.Time
	dbm        *db.Manager
	recorder   *db.Recorder
	reader     *db.Reader
	httpServer *http.Server
}

func New(cfg *config.Config, logger *slog.Logger, version string) *Runtime {
	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		version:   version,
		startedAt: time.Now(),
	}
}

// Recorder is the write handle handed to the gateway's completion path. Only
// valid after Run has opened the store.
func (r *Runtime) Recorder() *db.Recorder {
	return r.recorder
}

func (r *Runtime) Run(ctx context.Context) error {
	dbm, err := db.Open(r.cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	r.dbm = dbm

	applied, err := r.dbm.Initialize(ctx)
	if err != nil {
		// Without a schema nothing can be recorded safely.
		return fmt.Errorf("schema bootstrap: %w", err)
	}
	if applied {
		r.logger.Info("schema bootstrapped", "path", r.cfg.DBPath)
	} else {
		r.logger.Info("store already initialized, skipping schema bootstrap", "path", r.cfg.DBPath)
	}

	journalMode, busyTimeout, foreignKeys, err := r.dbm.Pragmas(ctx)
	if err != nil {
		return fmt.Errorf("query sqlite pragmas: %w", err)
	}
	r.logger.Info("SQLite opened",
		"path", r.cfg.DBPath,
		"journal_mode", journalMode,
		"busy_timeout", busyTimeout,
		"foreign_keys", foreignKeys,
		"tables", 3,
	)

	r.recorder = db.NewRecorder(r.dbm, r.logger)
	r.reader = db.NewReader(r.dbm)

	healthHandler := server.NewHealthHandler(r.dbm, r.startedAt, r.version)
	reportHandlers := server.NewReportHandlers(r.reader, r.logger)
	r.httpServer = server.New(":"+r.cfg.Port, healthHandler.ServeHTTP, reportHandlers)

	serverErr := make(chan error, 1)
	go func() {
		r.logger.Info("Listening", "addr", ":"+r.cfg.Port)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
		return r.shutdown(context.Background())
	}
}

func (r *Runtime) shutdown(ctx context.Context) error {
	var joined error

	if r.httpServer != nil {
		httpCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := r.httpServer.Shutdown(httpCtx); err != nil {
			joined = errors.Join(joined, fmt.Errorf("http shutdown: %w", err))
		}
	}

	if r.dbm != nil {
		cpCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.dbm.Checkpoint(cpCtx); err != nil {
			r.logger.Warn("WAL checkpoint failed", "error", err)
			joined = errors.Join(joined, fmt.Errorf("wal checkpoint: %w", err))
		}
		if err := r.dbm.Close(); err != nil {
			joined = errors.Join(joined, fmt.Errorf("db close: %w", err))
		}
	}

	r.logger.Info("Shutdown complete", "uptime", time.Since(r.startedAt).String())
	return joined
}
