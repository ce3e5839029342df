package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"testing"

	"imulink/pkg/logger"
	"imulink/pkg/protocol"
)

func TestReplayStream(t *testing.T) {
	var stream []byte
	stream = append(stream, 0xDE, 0xAD) // line noise before the first frame
	stream = protocol.AppendQuaternion(stream, protocol.Quaternion{W: 1})
	stream = protocol.AppendMagnetometer(stream, protocol.Magnetometer{X: 0.2})
	stream = protocol.AppendLinearAccel(stream, protocol.LinearAccel{Z: -9.8})

	var out bytes.Buffer
	count, err := replayStream(stream, 7, logger.NewJSONLWriter(&out))
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 records, got %d", count)
	}

	var kinds []string
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var line struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("bad JSONL line: %v", err)
		}
		kinds = append(kinds, line.Kind)
	}
	want := []string{"quaternion", "magnetometer", "linear_accel"}
	if len(kinds) != len(want) {
		t.Fatalf("expected %d lines, got %d", len(want), len(kinds))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, kinds[i], want[i])
		}
	}
}
