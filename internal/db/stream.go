package db

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
)

// RecordOutputStream wraps a chunked response sequence. Each chunk is handed
// to the caller before its serialized copy is buffered, so recording adds no
// latency to the response path. When the upstream sequence drains, or the
// caller abandons the returned sequence early, whatever was buffered is
// flushed as a single Output row. A nil prompt disables recording but chunks
// still pass through unchanged.
func (r *Recorder) RecordOutputStream(ctx context.Context, prompt *Prompt, chunks iter.Seq[any]) iter.Seq[any] {
	return func(yield func(any) bool) {
		acc := &streamAccumulator{recorder: r, prompt: prompt}
		defer acc.flush(ctx)

		for chunk := range chunks {
			ok := yield(chunk)
			acc.append(chunk)
			if !ok {
				return
			}
		}
		acc.drain()
	}
}

type accumulatorState int

const (
	accStreaming accumulatorState = iota
	accDrained
	accFlushed
)

// streamAccumulator buffers normalized chunk copies while the stream is
// live and writes them out exactly once.
type streamAccumulator struct {
	recorder *Recorder
	prompt   *Prompt
	buffer   []json.RawMessage
	state    accumulatorState
}

func (a *streamAccumulator) append(chunk any) {
	if a.state != accStreaming {
		return
	}
	a.buffer = append(a.buffer, normalizeChunk(chunk))
}

func (a *streamAccumulator) drain() {
	if a.state == accStreaming {
		a.state = accDrained
	}
}

func (a *streamAccumulator) flush(ctx context.Context) {
	if a.state == accFlushed {
		return
	}
	a.drain()
	a.state = accFlushed

	if len(a.buffer) == 0 {
		return
	}
	if a.prompt == nil {
		a.recorder.logger.Warn("no prompt found to record output stream", "chunks", len(a.buffer))
		return
	}

	joined, err := json.Marshal(a.buffer)
	if err != nil {
		a.recorder.logger.Error("failed to serialize output chunks", "prompt_id", a.prompt.ID, "error", err)
		return
	}
	a.recorder.recordOutput(ctx, a.prompt, string(joined))
}

// normalizeChunk produces a serializable copy of one stream chunk. Values
// that do not encode as JSON are kept as their printed form.
func normalizeChunk(chunk any) json.RawMessage {
	if raw, ok := chunk.(json.RawMessage); ok {
		return append(json.RawMessage(nil), raw...)
	}
	raw, err := json.Marshal(chunk)
	if err == nil {
		return raw
	}
	wrapped, _ := json.Marshal(map[string]string{"chunk": fmt.Sprint(chunk)})
	return wrapped
}
