package db

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Recorder is the write side of the audit store. Every public operation is
// best-effort: a failed write is logged with its payload and surfaced as a
// nil result, never as an error. Audit recording must not be able to fault
// the request/response path it shadows.
type Recorder struct {
	m      *Manager
	logger *slog.Logger
}

func NewRecorder(m *Manager, logger *slog.Logger) *Recorder {
	return &Recorder{m: m, logger: logger}
}

// RecordRequest persists the normalized request body as a new Prompt. A body
// that cannot be serialized is logged and dropped; callers must tolerate a
// nil Prompt.
func (r *Recorder) RecordRequest(ctx context.Context, body any, isFIM bool, provider string) *Prompt {
	request, err := serializeBody(body)
	if err != nil {
		r.logger.Error("failed to serialize request", "provider", provider, "error", err)
		return nil
	}

	promptType := PromptTypeChat
	if isFIM {
		promptType = PromptTypeFIM
	}
	prompt := &Prompt{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Request:   request,
		Type:      promptType,
	}
	if !r.insertReturning(ctx, prompt) {
		return nil
	}
	return prompt
}

// RecordOutputNonStream persists a whole response linked to prompt. Nil
// prompt or an unserializable response records nothing.
func (r *Recorder) RecordOutputNonStream(ctx context.Context, prompt *Prompt, response any) *Output {
	if prompt == nil {
		r.logger.Warn("no prompt found to record output")
		return nil
	}
	text, err := serializeBody(response)
	if err != nil {
		r.logger.Error("failed to serialize output", "prompt_id", prompt.ID, "error", err)
		return nil
	}
	return r.recordOutput(ctx, prompt, text)
}

// RecordAlerts inserts each alert concurrently, one transaction per alert.
// A failed insert is logged and does not disturb its siblings; the batch as
// a whole never fails. Missing ids and timestamps are filled in here.
func (r *Recorder) RecordAlerts(ctx context.Context, alerts []Alert) {
	if len(alerts) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, alert := range alerts {
		if alert.ID == "" {
			alert.ID = uuid.NewString()
		}
		if alert.Timestamp.IsZero() {
			alert.Timestamp = time.Now().UTC()
		}
		wg.Add(1)
		go func(a Alert) {
			defer wg.Done()
			r.insertReturning(ctx, &a)
		}(alert)
	}
	wg.Wait()
}

func (r *Recorder) recordOutput(ctx context.Context, prompt *Prompt, text string) *Output {
	output := &Output{
		ID:        uuid.NewString(),
		PromptID:  prompt.ID,
		Timestamp: time.Now().UTC(),
		Output:    text,
	}
	if !r.insertReturning(ctx, output) {
		return nil
	}
	return output
}

// insertReturning runs one INSERT...RETURNING in a transaction scoped to that
// single statement and decodes the returned row back into rec. It reports
// success; all failure modes are logged here and collapse to false.
func (r *Recorder) insertReturning(ctx context.Context, rec record) bool {
	tx, err := r.m.writer.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("failed to begin insert tx", "table", rec.table(), "error", err)
		return false
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, insertSQL(rec), rec.insertValues()...)
	if err != nil {
		r.logger.Error("failed to insert record", "table", rec.table(), "payload", rec, "error", err)
		return false
	}

	if !rows.Next() {
		err := rows.Err()
		_ = rows.Close()
		if err != nil {
			r.logger.Error("failed to insert record", "table", rec.table(), "payload", rec, "error", err)
		} else {
			r.logger.Warn("insert returned no row", "table", rec.table(), "payload", rec)
		}
		return false
	}
	row, err := scanRowValues(rows)
	_ = rows.Close()
	if err != nil {
		r.logger.Error("failed to scan returned row", "table", rec.table(), "payload", rec, "error", err)
		return false
	}
	if err := rec.decodeRow(row); err != nil {
		r.logger.Error("failed to decode returned row", "table", rec.table(), "payload", rec, "error", err)
		return false
	}

	if err := tx.Commit(); err != nil {
		r.logger.Error("failed to commit insert", "table", rec.table(), "payload", rec, "error", err)
		return false
	}
	return true
}

// serializeBody turns a request or response into storable text. Pre-encoded
// bodies pass through unchanged so the stored form round-trips exactly;
// anything else falls back to generic JSON encoding.
func serializeBody(v any) (string, error) {
	switch b := v.(type) {
	case nil:
		return "", errors.New("nothing to serialize")
	case json.RawMessage:
		return string(b), nil
	case []byte:
		return string(b), nil
	case string:
		return b, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
