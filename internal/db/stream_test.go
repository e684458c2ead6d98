package db

import (
	"context"
	"iter"
	"reflect"
	"strings"
	"testing"
)

func chunkSeq(chunks ...any) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, c := range chunks {
			if !yield(c) {
				return
			}
		}
	}
}

func TestRecordOutputStreamPassesChunksThroughInOrder(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"prompt":"def "}`, true, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	var received []any
	for chunk := range recorder.RecordOutputStream(context.Background(), prompt, chunkSeq("a", "b", "c")) {
		received = append(received, chunk)
	}
	if !reflect.DeepEqual(received, []any{"a", "b", "c"}) {
		t.Fatalf("received chunks = %v, want [a b c]", received)
	}

	reader := NewReader(m)
	rows, err := reader.GetPromptsWithOutput(context.Background())
	if err != nil {
		t.Fatalf("GetPromptsWithOutput() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Output == nil {
		t.Fatalf("expected one prompt row with output, got %+v", rows)
	}
	if *rows[0].Output != `["a","b","c"]` {
		t.Fatalf("stored output = %q, want JSON array of chunks", *rows[0].Output)
	}
}

func TestRecordOutputStreamEmptySequenceWritesNothing(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"q":"hi"}`, false, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	count := 0
	for range recorder.RecordOutputStream(context.Background(), prompt, chunkSeq()) {
		count++
	}
	if count != 0 {
		t.Fatalf("received %d chunks from an empty stream", count)
	}

	_, outputs, _, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if outputs != 0 {
		t.Fatalf("output count = %d, want 0 for empty stream", outputs)
	}
}

func TestRecordOutputStreamNilPromptStillEmits(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	var received []any
	for chunk := range recorder.RecordOutputStream(context.Background(), nil, chunkSeq("x", "y")) {
		received = append(received, chunk)
	}
	if !reflect.DeepEqual(received, []any{"x", "y"}) {
		t.Fatalf("received chunks = %v, want [x y]", received)
	}

	_, outputs, _, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if outputs != 0 {
		t.Fatalf("output count = %d, want 0 when prompt is nil", outputs)
	}
}

func TestRecordOutputStreamAbandonmentFlushesPartialBuffer(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"q":"hi"}`, false, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	var received []any
	for chunk := range recorder.RecordOutputStream(context.Background(), prompt, chunkSeq("a", "b", "c", "d")) {
		received = append(received, chunk)
		if len(received) == 2 {
			break
		}
	}
	if !reflect.DeepEqual(received, []any{"a", "b"}) {
		t.Fatalf("received chunks = %v, want [a b]", received)
	}

	reader := NewReader(m)
	rows, err := reader.GetPromptsWithOutput(context.Background())
	if err != nil {
		t.Fatalf("GetPromptsWithOutput() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Output == nil {
		t.Fatalf("expected a flushed partial output row, got %+v", rows)
	}
	if *rows[0].Output != `["a","b"]` {
		t.Fatalf("partial output = %q, want [\"a\",\"b\"]", *rows[0].Output)
	}
}

func TestRecordOutputStreamNormalizesMixedChunks(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"q":"hi"}`, false, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	chunks := chunkSeq(
		map[string]any{"delta": "he"},
		"llo",
		make(chan int), // unserializable, kept as its printed form
	)
	count := 0
	for range recorder.RecordOutputStream(context.Background(), prompt, chunks) {
		count++
	}
	if count != 3 {
		t.Fatalf("received %d chunks, want 3", count)
	}

	reader := NewReader(m)
	rows, err := reader.GetPromptsWithOutput(context.Background())
	if err != nil {
		t.Fatalf("GetPromptsWithOutput() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Output == nil {
		t.Fatalf("expected one output row, got %+v", rows)
	}
	out := *rows[0].Output
	if out[0] != '[' {
		t.Fatalf("output is not a JSON array: %q", out)
	}
	for _, want := range []string{`{"delta":"he"}`, `"llo"`, `{"chunk":`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing fragment %q", out, want)
		}
	}
}
