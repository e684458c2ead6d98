package packages

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Package is one entry of the malicious/deprecated/archived package feeds.
type Package struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

// Key identifies a package within its ecosystem, independent of status.
func (p Package) Key() string {
	return p.Name + "/" + p.Type
}

// VectorString is the canonical text handed to the embedding model.
func (p Package) VectorString() string {
	return fmt.Sprintf("%s package %s is %s. %s", p.Type, p.Name, p.Status, p.Description)
}

// ContentID derives a deterministic document id from the full tuple, so
// re-importing an unchanged package upserts the same document.
func (p Package) ContentID() string {
	payload := strings.Join([]string{p.Name, p.Type, p.Status, p.Description}, "\x1f")
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(payload)).String()
}

// Document is a package plus its embedding vector, ready for the store.
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Vector      []float32 `json:"vector"`
}

// Embedder turns texts into fixed-length vectors, one per input.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Store is the narrow contract of the external document store the import
// pipeline feeds. Backups are addressed by an opaque identifier.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Existing(ctx context.Context) (map[string]Package, error)
	Upsert(ctx context.Context, docs []Document) error
	Backup(ctx context.Context, backupID string) error
	Restore(ctx context.Context, backupID string) error
}
