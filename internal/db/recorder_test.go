package db

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestRecordRequestRoundTripsBody(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	body := `{"model":"gpt-4","messages":[{"role":"user","content":"hello"}]}`
	prompt := recorder.RecordRequest(context.Background(), body, false, "openai")
	if prompt == nil {
		t.Fatalf("RecordRequest returned nil for a valid body")
	}

	id, err := uuid.Parse(prompt.ID)
	if err != nil {
		t.Fatalf("prompt id %q is not a UUID: %v", prompt.ID, err)
	}
	if id.Version() != 4 {
		t.Fatalf("prompt id version = %d, want 4", id.Version())
	}
	if prompt.Request != body {
		t.Fatalf("request = %q, want exact round-trip of %q", prompt.Request, body)
	}
	if prompt.Type != PromptTypeChat {
		t.Fatalf("type = %q, want chat", prompt.Type)
	}
	if prompt.Timestamp.IsZero() {
		t.Fatalf("timestamp was not stamped")
	}
}

func TestRecordRequestStructuredBody(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	body := map[string]any{"prompt": "def fib(n):", "suffix": "return"}
	prompt := recorder.RecordRequest(context.Background(), body, true, "anthropic")
	if prompt == nil {
		t.Fatalf("RecordRequest returned nil for a structured body")
	}
	if prompt.Type != PromptTypeFIM {
		t.Fatalf("type = %q, want fim", prompt.Type)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(prompt.Request), &decoded); err != nil {
		t.Fatalf("stored request is not JSON: %v", err)
	}
	if decoded["prompt"] != "def fib(n):" {
		t.Fatalf("stored request lost content: %q", prompt.Request)
	}
}

func TestRecordRequestUnserializableBody(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	if prompt := recorder.RecordRequest(context.Background(), make(chan int), false, "openai"); prompt != nil {
		t.Fatalf("expected nil prompt for unserializable body, got %+v", prompt)
	}
	if prompt := recorder.RecordRequest(context.Background(), nil, false, "openai"); prompt != nil {
		t.Fatalf("expected nil prompt for nil body, got %+v", prompt)
	}

	prompts, _, _, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if prompts != 0 {
		t.Fatalf("prompt count = %d, want 0 after failed serializations", prompts)
	}
}

func TestRecordOutputNonStreamLinksPrompt(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"q":"hi"}`, false, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	output := recorder.RecordOutputNonStream(context.Background(), prompt, "response text")
	if output == nil {
		t.Fatalf("RecordOutputNonStream returned nil")
	}
	if output.PromptID != prompt.ID {
		t.Fatalf("output.PromptID = %q, want %q", output.PromptID, prompt.ID)
	}
	if output.Output != "response text" {
		t.Fatalf("output = %q, want response text", output.Output)
	}

	_, outputs, _, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if outputs != 1 {
		t.Fatalf("output count = %d, want 1", outputs)
	}
}

func TestRecordOutputNonStreamNilPrompt(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	if output := recorder.RecordOutputNonStream(context.Background(), nil, "response"); output != nil {
		t.Fatalf("expected nil output for nil prompt, got %+v", output)
	}

	_, outputs, _, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if outputs != 0 {
		t.Fatalf("output count = %d, want 0", outputs)
	}
}

func TestRecordAlertsIsolatesFailures(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"q":"hi"}`, false, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	snippet := "aws_secret = ..."
	alerts := []Alert{
		{PromptID: prompt.ID, CodeSnippet: &snippet, TriggerString: "aws_secret", TriggerType: "secret-leak"},
		{PromptID: prompt.ID, TriggerString: "requests==2.0", TriggerType: ""}, // malformed: no trigger type
		{PromptID: prompt.ID, TriggerString: "left-pad", TriggerType: "malicious-package"},
	}

	recorder.RecordAlerts(context.Background(), alerts)

	_, _, count, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("alert count = %d, want 2 (one malformed alert dropped)", count)
	}
}

func TestRecordAlertsEmptyBatch(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	recorder.RecordAlerts(context.Background(), nil)

	_, _, alerts, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if alerts != 0 {
		t.Fatalf("alert count = %d, want 0", alerts)
	}
}

func TestRecordAlertsManyConcurrent(t *testing.T) {
	t.Parallel()

	m := openInitialized(t)
	recorder := NewRecorder(m, testLogger())

	prompt := recorder.RecordRequest(context.Background(), `{"q":"hi"}`, false, "openai")
	if prompt == nil {
		t.Fatalf("seed prompt not recorded")
	}

	alerts := make([]Alert, 50)
	for i := range alerts {
		alerts[i] = Alert{
			PromptID:      prompt.ID,
			TriggerString: "pkg",
			TriggerType:   "malicious-package",
		}
	}
	recorder.RecordAlerts(context.Background(), alerts)

	_, _, count, err := m.RowCounts(context.Background())
	if err != nil {
		t.Fatalf("RowCounts() error = %v", err)
	}
	if count != 50 {
		t.Fatalf("alert count = %d, want 50", count)
	}
}
