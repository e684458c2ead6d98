package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// record is the codec boundary between a domain record and its store row.
// Each entity kind implements it directly; dispatch is static, there is no
// reflection over struct fields.
type record interface {
	table() string
	insertColumns() []string
	insertValues() []any
	decodeRow(row rowValues) error
}

// DecodeError reports a returned row that could not be reconstructed into a
// domain record. Callers treat it like a failed write: the insert's effect
// is unconfirmed.
type DecodeError struct {
	Table  string
	Column string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s row: column %q: %v", e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("decode %s row: missing column %q", e.Table, e.Column)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// rowValues is a returned row keyed by column name. Keeping the whole row
// lets decoding tolerate extra generated columns while still failing on a
// missing required one.
type rowValues map[string]any

func scanRowValues(rows *sql.Rows) (rowValues, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}
	row := make(rowValues, len(cols))
	for i, col := range cols {
		row[col] = vals[i]
	}
	return row, nil
}

func (row rowValues) text(table, column string) (string, error) {
	v, ok := row[column]
	if !ok {
		return "", &DecodeError{Table: table, Column: column}
	}
	switch s := v.(type) {
	case string:
		return s, nil
	case []byte:
		return string(s), nil
	}
	return "", &DecodeError{Table: table, Column: column, Err: fmt.Errorf("unexpected value of type %T", v)}
}

func (row rowValues) nullText(table, column string) (*string, error) {
	v, ok := row[column]
	if !ok {
		return nil, &DecodeError{Table: table, Column: column}
	}
	if v == nil {
		return nil, nil
	}
	s, err := row.text(table, column)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (row rowValues) utcTime(table, column string) (time.Time, error) {
	s, err := row.text(table, column)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, &DecodeError{Table: table, Column: column, Err: err}
	}
	return t.UTC(), nil
}

func insertSQL(rec record) string {
	cols := rec.insertColumns()
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		rec.table(), strings.Join(cols, ", "), placeholders,
	)
}
