package packages

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// statusFiles are the package feeds, in import order. The file stem is the
// status assigned to every entry in it.
var statusFiles = []string{"archived.jsonl", "deprecated.jsonl", "malicious.jsonl"}

// Importer loads the package feeds into the external document store. The
// whole run is idempotent: unchanged packages are skipped and changed ones
// upsert under a content-derived id.
type Importer struct {
	logger        *slog.Logger
	store         Store
	embedder      Embedder
	dir           string
	backupID      string
	takeBackup    bool
	restoreBackup bool
}

func NewImporter(logger *slog.Logger, store Store, embedder Embedder, dir, backupID string, takeBackup, restoreBackup bool) *Importer {
	return &Importer{
		logger:        logger,
		store:         store,
		embedder:      embedder,
		dir:           dir,
		backupID:      backupID,
		takeBackup:    takeBackup,
		restoreBackup: restoreBackup,
	}
}

func (i *Importer) Run(ctx context.Context) error {
	if i.restoreBackup {
		if err := i.store.Restore(ctx, i.backupID); err != nil {
			i.logger.Warn("backup restore failed, continuing with an empty store",
				"backup_id", i.backupID, "error", err)
		}
	}

	if err := i.store.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure document schema: %w", err)
	}

	imported, skipped, err := i.importFeeds(ctx)
	if err != nil {
		return err
	}
	i.logger.Info("package import finished", "imported", imported, "skipped", skipped)

	if i.takeBackup {
		if err := i.store.Backup(ctx, i.backupID); err != nil {
			i.logger.Warn("backup failed", "backup_id", i.backupID, "error", err)
		}
	}
	return nil
}

func (i *Importer) importFeeds(ctx context.Context) (imported, skipped int, err error) {
	existing, err := i.store.Existing(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("list existing documents: %w", err)
	}

	for _, file := range statusFiles {
		status := strings.TrimSuffix(file, filepath.Ext(file))
		pending, fileSkipped, err := i.readFeed(filepath.Join(i.dir, file), status, existing)
		if err != nil {
			return imported, skipped, err
		}
		skipped += fileSkipped
		if len(pending) == 0 {
			continue
		}

		docs, err := i.embedPackages(ctx, pending)
		if err != nil {
			return imported, skipped, fmt.Errorf("embed %s feed: %w", status, err)
		}
		if err := i.store.Upsert(ctx, docs); err != nil {
			return imported, skipped, fmt.Errorf("upsert %s feed: %w", status, err)
		}
		imported += len(docs)
	}
	return imported, skipped, nil
}

func (i *Importer) readFeed(path, status string, existing map[string]Package) ([]Package, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open feed: %w", err)
	}
	defer f.Close()

	pending := make([]Package, 0)
	skipped := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var pkg Package
		if err := json.Unmarshal([]byte(line), &pkg); err != nil {
			i.logger.Warn("skipping malformed feed line", "file", path, "error", err)
			continue
		}
		pkg.Status = status

		if prev, ok := existing[pkg.Key()]; ok && prev.Status == pkg.Status && prev.Description == pkg.Description {
			skipped++
			continue
		}
		pending = append(pending, pkg)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("read feed %s: %w", path, err)
	}
	return pending, skipped, nil
}

func (i *Importer) embedPackages(ctx context.Context, pkgs []Package) ([]Document, error) {
	inputs := make([]string, len(pkgs))
	for n, pkg := range pkgs {
		inputs[n] = pkg.VectorString()
	}
	vectors, err := i.embedder.Embed(ctx, inputs)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(pkgs) {
		return nil, fmt.Errorf("got %d vectors for %d packages", len(vectors), len(pkgs))
	}

	docs := make([]Document, len(pkgs))
	for n, pkg := range pkgs {
		docs[n] = Document{
			ID:          pkg.ContentID(),
			Name:        pkg.Name,
			Type:        pkg.Type,
			Status:      pkg.Status,
			Description: pkg.Description,
			Vector:      vectors[n],
		}
	}
	return docs, nil
}
