package db

import "time"

// Prompt types accepted by the store schema.
const (
	PromptTypeChat = "chat"
	PromptTypeFIM  = "fim"
)

// timeLayout is RFC 3339 with fixed nanosecond width so stored timestamps
// sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Prompt is the durable record of one inbound completion request.
type Prompt struct {
	ID        string
	Timestamp time.Time
	Provider  string
	Request   string
	Type      string
}

// Output is the durable record of the response to a Prompt: one serialized
// response object, or a JSON array of accumulated stream chunks.
type Output struct {
	ID        string
	PromptID  string
	Timestamp time.Time
	Output    string
}

// Alert is the durable record of a policy trigger attributed to a Prompt.
type Alert struct {
	ID              string
	PromptID        string
	CodeSnippet     *string
	TriggerString   string
	TriggerType     string
	TriggerCategory *string
	Timestamp       time.Time
}

func (p *Prompt) table() string { return "prompts" }

func (p *Prompt) insertColumns() []string {
	return []string{"id", "timestamp", "provider", "request", "type"}
}

func (p *Prompt) insertValues() []any {
	return []any{p.ID, p.Timestamp.UTC().Format(timeLayout), p.Provider, p.Request, p.Type}
}

func (p *Prompt) decodeRow(row rowValues) error {
	var err error
	if p.ID, err = row.text("prompts", "id"); err != nil {
		return err
	}
	if p.Timestamp, err = row.utcTime("prompts", "timestamp"); err != nil {
		return err
	}
	if p.Provider, err = row.text("prompts", "provider"); err != nil {
		return err
	}
	if p.Request, err = row.text("prompts", "request"); err != nil {
		return err
	}
	if p.Type, err = row.text("prompts", "type"); err != nil {
		return err
	}
	return nil
}

func (o *Output) table() string { return "outputs" }

func (o *Output) insertColumns() []string {
	return []string{"id", "prompt_id", "timestamp", "output"}
}

func (o *Output) insertValues() []any {
	return []any{o.ID, o.PromptID, o.Timestamp.UTC().Format(timeLayout), o.Output}
}

func (o *Output) decodeRow(row rowValues) error {
	var err error
	if o.ID, err = row.text("outputs", "id"); err != nil {
		return err
	}
	if o.PromptID, err = row.text("outputs", "prompt_id"); err != nil {
		return err
	}
	if o.Timestamp, err = row.utcTime("outputs", "timestamp"); err != nil {
		return err
	}
	if o.Output, err = row.text("outputs", "output"); err != nil {
		return err
	}
	return nil
}

func (a *Alert) table() string { return "alerts" }

func (a *Alert) insertColumns() []string {
	return []string{"id", "prompt_id", "code_snippet", "trigger_string", "trigger_type", "trigger_category", "timestamp"}
}

func (a *Alert) insertValues() []any {
	return []any{
		a.ID,
		a.PromptID,
		a.CodeSnippet,
		a.TriggerString,
		a.TriggerType,
		a.TriggerCategory,
		a.Timestamp.UTC().Format(timeLayout),
	}
}

func (a *Alert) decodeRow(row rowValues) error {
	var err error
	if a.ID, err = row.text("alerts", "id"); err != nil {
		return err
	}
	if a.PromptID, err = row.text("alerts", "prompt_id"); err != nil {
		return err
	}
	if a.CodeSnippet, err = row.nullText("alerts", "code_snippet"); err != nil {
		return err
	}
	if a.TriggerString, err = row.text("alerts", "trigger_string"); err != nil {
		return err
	}
	if a.TriggerType, err = row.text("alerts", "trigger_type"); err != nil {
		return err
	}
	if a.TriggerCategory, err = row.nullText("alerts", "trigger_category"); err != nil {
		return err
	}
	if a.Timestamp, err = row.utcTime("alerts", "timestamp"); err != nil {
		return err
	}
	return nil
}
