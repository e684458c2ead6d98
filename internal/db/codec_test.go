package db

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeRowToleratesExtraColumns(t *testing.T) {
	t.Parallel()

	row := rowValues{
		"id":        "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		"timestamp": time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).Format(timeLayout),
		"provider":  "openai",
		"request":   `{"q":"hi"}`,
		"type":      "chat",
		"rowid":     int64(7), // generated column, not part of the record
	}

	var p Prompt
	if err := p.decodeRow(row); err != nil {
		t.Fatalf("decodeRow() error = %v", err)
	}
	if p.Provider != "openai" || p.Request != `{"q":"hi"}` || p.Type != "chat" {
		t.Fatalf("unexpected decoded prompt: %+v", p)
	}
	if p.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp not UTC normalized: %v", p.Timestamp)
	}
}

func TestDecodeRowMissingColumn(t *testing.T) {
	t.Parallel()

	row := rowValues{
		"id":        "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		"timestamp": time.Now().UTC().Format(timeLayout),
		"provider":  "openai",
		"type":      "chat",
	}

	var p Prompt
	err := p.decodeRow(row)
	if err == nil {
		t.Fatalf("expected error for missing request column")
	}
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
	if decodeErr.Table != "prompts" || decodeErr.Column != "request" {
		t.Fatalf("DecodeError = %+v, want prompts/request", decodeErr)
	}
}

func TestDecodeRowWrongShape(t *testing.T) {
	t.Parallel()

	row := rowValues{
		"id":        "bbbbbbbb-bbbb-4bbb-8bbb-bbbbbbbbbbbb",
		"prompt_id": "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		"timestamp": int64(1700000000), // stored as integer, not text
		"output":    "{}",
	}

	var o Output
	err := o.decodeRow(row)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("error = %v, want *DecodeError", err)
	}
	if decodeErr.Column != "timestamp" {
		t.Fatalf("DecodeError column = %q, want timestamp", decodeErr.Column)
	}
}

func TestDecodeRowNullableColumns(t *testing.T) {
	t.Parallel()

	row := rowValues{
		"id":               "cccccccc-cccc-4ccc-8ccc-cccccccccccc",
		"prompt_id":        "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa",
		"code_snippet":     nil,
		"trigger_string":   "import os",
		"trigger_type":     "secret-leak",
		"trigger_category": "critical",
		"timestamp":        time.Now().UTC().Format(timeLayout),
	}

	var a Alert
	if err := a.decodeRow(row); err != nil {
		t.Fatalf("decodeRow() error = %v", err)
	}
	if a.CodeSnippet != nil {
		t.Fatalf("code_snippet = %v, want nil", *a.CodeSnippet)
	}
	if a.TriggerCategory == nil || *a.TriggerCategory != "critical" {
		t.Fatalf("trigger_category = %v, want critical", a.TriggerCategory)
	}
}

func TestInsertSQLShape(t *testing.T) {
	t.Parallel()

	got := insertSQL(&Output{})
	want := "INSERT INTO outputs (id, prompt_id, timestamp, output) VALUES (?, ?, ?, ?) RETURNING *"
	if got != want {
		t.Fatalf("insertSQL = %q, want %q", got, want)
	}
}
