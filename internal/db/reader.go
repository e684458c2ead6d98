package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Reader is the read side of the audit store: two flat join queries used by
// downstream reporting. Queries run on the reader pool; the connection lease
// is scoped to the query and released on every exit path.
type Reader struct {
	m *Manager
}

func NewReader(m *Manager) *Reader {
	return &Reader{m: m}
}

// PromptWithOutputRow is one prompt joined with its output, if any.
type PromptWithOutputRow struct {
	ID              string     `json:"id"`
	Timestamp       time.Time  `json:"timestamp"`
	Provider        string     `json:"provider"`
	Request         string     `json:"request"`
	Type            string     `json:"type"`
	OutputID        *string    `json:"output_id"`
	Output          *string    `json:"output"`
	OutputTimestamp *time.Time `json:"output_timestamp"`
}

// AlertWithPromptAndOutputRow is one alert joined with its prompt and the
// prompt's output, if any.
type AlertWithPromptAndOutputRow struct {
	ID              string     `json:"id"`
	PromptID        string     `json:"prompt_id"`
	CodeSnippet     *string    `json:"code_snippet"`
	TriggerString   string     `json:"trigger_string"`
	TriggerType     string     `json:"trigger_type"`
	TriggerCategory *string    `json:"trigger_category"`
	Timestamp       time.Time  `json:"timestamp"`
	PromptTimestamp time.Time  `json:"prompt_timestamp"`
	Provider        string     `json:"provider"`
	Request         string     `json:"request"`
	Type            string     `json:"type"`
	OutputID        *string    `json:"output_id"`
	Output          *string    `json:"output"`
	OutputTimestamp *time.Time `json:"output_timestamp"`
}

// GetPromptsWithOutput returns every prompt with its output columns, newest
// prompt first.
func (r *Reader) GetPromptsWithOutput(ctx context.Context) ([]PromptWithOutputRow, error) {
	rows, err := r.m.reader.QueryContext(ctx, `
SELECT p.id, p.timestamp, COALESCE(p.provider, ''), p.request, p.type,
       o.id, o.output, o.timestamp
FROM prompts p
LEFT JOIN outputs o ON o.prompt_id = p.id
ORDER BY p.timestamp DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query prompts with output: %w", err)
	}
	defer rows.Close()

	out := make([]PromptWithOutputRow, 0)
	for rows.Next() {
		var (
			row      PromptWithOutputRow
			ts       string
			outID    sql.NullString
			output   sql.NullString
			outputTS sql.NullString
		)
		if err := rows.Scan(&row.ID, &ts, &row.Provider, &row.Request, &row.Type, &outID, &output, &outputTS); err != nil {
			return nil, fmt.Errorf("scan prompt row: %w", err)
		}
		if row.Timestamp, err = parseStoredTime(ts); err != nil {
			return nil, err
		}
		row.OutputID = nullString(outID)
		row.Output = nullString(output)
		if row.OutputTimestamp, err = parseStoredNullTime(outputTS); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetAlertsWithPromptAndOutput returns every alert with its prompt and
// output columns, newest alert first.
func (r *Reader) GetAlertsWithPromptAndOutput(ctx context.Context) ([]AlertWithPromptAndOutputRow, error) {
	rows, err := r.m.reader.QueryContext(ctx, `
SELECT a.id, a.prompt_id, a.code_snippet, COALESCE(a.trigger_string, ''), a.trigger_type, a.trigger_category, a.timestamp,
       p.timestamp, COALESCE(p.provider, ''), p.request, p.type,
       o.id, o.output, o.timestamp
FROM alerts a
JOIN prompts p ON p.id = a.prompt_id
LEFT JOIN outputs o ON o.prompt_id = a.prompt_id
ORDER BY a.timestamp DESC
`)
	if err != nil {
		return nil, fmt.Errorf("query alerts with prompt and output: %w", err)
	}
	defer rows.Close()

	out := make([]AlertWithPromptAndOutputRow, 0)
	for rows.Next() {
		var (
			row      AlertWithPromptAndOutputRow
			snippet  sql.NullString
			category sql.NullString
			alertTS  string
			promptTS string
			outID    sql.NullString
			output   sql.NullString
			outputTS sql.NullString
		)
		if err := rows.Scan(
			&row.ID, &row.PromptID, &snippet, &row.TriggerString, &row.TriggerType, &category, &alertTS,
			&promptTS, &row.Provider, &row.Request, &row.Type,
			&outID, &output, &outputTS,
		); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		row.CodeSnippet = nullString(snippet)
		row.TriggerCategory = nullString(category)
		if row.Timestamp, err = parseStoredTime(alertTS); err != nil {
			return nil, err
		}
		if row.PromptTimestamp, err = parseStoredTime(promptTS); err != nil {
			return nil, err
		}
		row.OutputID = nullString(outID)
		row.Output = nullString(output)
		if row.OutputTimestamp, err = parseStoredNullTime(outputTS); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseStoredNullTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid {
		return nil, nil
	}
	t, err := parseStoredTime(v.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
