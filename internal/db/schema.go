package db

import (
	"context"
	"fmt"
	"strings"
)

// Versioned DDL for the audit store. The statements run in order inside one
// transaction; the store is append-only, so there are no migrations beyond a
// wholesale reset.
const schemaDDL = `
CREATE TABLE prompts (
  id TEXT PRIMARY KEY,
  timestamp TEXT NOT NULL,
  provider TEXT,
  request TEXT NOT NULL,
  type TEXT NOT NULL CHECK (type IN ('chat', 'fim'))
);

CREATE TABLE outputs (
  id TEXT PRIMARY KEY,
  prompt_id TEXT NOT NULL REFERENCES prompts (id),
  timestamp TEXT NOT NULL,
  output TEXT NOT NULL
);

CREATE TABLE alerts (
  id TEXT PRIMARY KEY,
  prompt_id TEXT NOT NULL REFERENCES prompts (id),
  code_snippet TEXT,
  trigger_string TEXT,
  trigger_type TEXT NOT NULL CHECK (trigger_type <> ''),
  trigger_category TEXT,
  timestamp TEXT NOT NULL
);

CREATE INDEX idx_outputs_prompt_id ON outputs (prompt_id);
CREATE INDEX idx_alerts_prompt_id ON alerts (prompt_id);
`

// Initialize bootstraps the schema on a store that did not exist when Open
// was called. Against a pre-existing store it applies nothing and reports
// applied=false. All statements commit atomically; a failure rolls the whole
// bootstrap back and must abort startup, the half-created store file is left
// in place for inspection.
func (m *Manager) Initialize(ctx context.Context) (applied bool, err error) {
	if m.existed {
		return false, nil
	}

	tx, err := m.writer.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, stmt := range splitStatements(schemaDDL) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return false, fmt.Errorf("apply schema statement %q: %w", firstLine(stmt), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit schema: %w", err)
	}
	m.existed = true
	return true, nil
}

func splitStatements(ddl string) []string {
	parts := strings.Split(ddl, ";")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if stmt := strings.TrimSpace(part); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func firstLine(stmt string) string {
	if i := strings.IndexByte(stmt, '\n'); i >= 0 {
		return stmt[:i]
	}
	return stmt
}
