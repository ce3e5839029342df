package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"imulink/pkg/logger"
	"imulink/pkg/protocol"
)

func TestJSONLWriter(t *testing.T) {
	var buf bytes.Buffer
	writer := logger.NewJSONLWriter(&buf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := make(chan protocol.Event, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		writer.Consume(ctx, ch)
	}()

	ts := time.Date(2026, 8, 20, 9, 30, 0, 0, time.UTC)
	ch <- protocol.Event{
		Record:    protocol.Quaternion{W: 1, X: 0, Y: 0, Z: 0},
		Timestamp: ts,
		Elapsed:   1500 * time.Millisecond,
	}
	close(ch)
	wg.Wait()

	line := strings.TrimSpace(buf.String())
	if line == "" {
		t.Fatalf("expected output line")
	}

	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}

	if rec["kind"] != "quaternion" {
		t.Fatalf("unexpected kind: %v", rec["kind"])
	}
	if rec["elapsed_ms"] != float64(1500) {
		t.Fatalf("unexpected elapsed_ms: %v", rec["elapsed_ms"])
	}
	data, ok := rec["data"].(map[string]any)
	if !ok {
		t.Fatalf("missing data object: %v", rec["data"])
	}
	if data["w"] != float64(1) {
		t.Fatalf("unexpected w: %v", data["w"])
	}
	tsValue, ok := rec["ts"].(string)
	if !ok || tsValue == "" {
		t.Fatalf("missing ts field")
	}
	if _, err := time.Parse(time.RFC3339Nano, tsValue); err != nil {
		t.Fatalf("invalid ts format: %v", err)
	}
}

func TestJSONLWriterKinds(t *testing.T) {
	var buf bytes.Buffer
	writer := logger.NewJSONLWriter(&buf)

	events := []protocol.Event{
		{Record: protocol.Magnetometer{X: 21.5, Y: -3, Z: 40}, Timestamp: time.Now()},
		{Record: protocol.LinearAccel{X: 0, Y: 0, Z: 9.81}, Timestamp: time.Now()},
	}
	for _, evt := range events {
		if err := writer.Write(evt); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	if first["kind"] != "magnetometer" {
		t.Fatalf("unexpected kind: %v", first["kind"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("json unmarshal failed: %v", err)
	}
	if second["kind"] != "linear_accel" {
		t.Fatalf("unexpected kind: %v", second["kind"])
	}
	data := second["data"].(map[string]any)
	if data["z"].(float64) < 9.8 || data["z"].(float64) > 9.82 {
		t.Fatalf("unexpected z: %v", data["z"])
	}
}
