package logger

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"imulink/pkg/protocol"
)

// JSONLWriter records decoded sensor events as one JSON object per
// line, the session export format of the control panel.
type JSONLWriter struct {
	enc *json.Encoder
}

type jsonRecord struct {
	TS        string  `json:"ts"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Kind      string  `json:"kind"`
	Data      any     `json:"data"`
}

func NewJSONLWriter(w io.Writer) *JSONLWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{enc: enc}
}

// Consume drains in until it closes or ctx is cancelled, writing one
// line per event.
func (j *JSONLWriter) Consume(ctx context.Context, in <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-in:
			if !ok {
				return
			}
			_ = j.Write(evt)
		}
	}
}

// Write encodes a single event.
func (j *JSONLWriter) Write(evt protocol.Event) error {
	return j.enc.Encode(jsonRecord{
		TS:        evt.Timestamp.UTC().Format(time.RFC3339Nano),
		ElapsedMS: float64(evt.Elapsed) / float64(time.Millisecond),
		Kind:      protocol.KindName(evt.Record),
		Data:      evt.Record,
	})
}
