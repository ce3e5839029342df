package main

import (
	"strings"
	"testing"

	"imulink/pkg/bridge/foxglove"
)

func TestWatchModelUpdateAndView(t *testing.T) {
	m := newWatchModel("127.0.0.1:8765", nil)

	next, _ := m.Update(watchSampleMsg{foxglove.SampleMessage{
		Kind: "quaternion",
		Data: map[string]any{"w": 1.0, "x": 0.0, "y": 0.0, "z": 0.0},
	}})
	m = next.(watchModel)
	next, _ = m.Update(watchSampleMsg{foxglove.SampleMessage{
		Kind: "magnetometer",
		Data: map[string]any{"x": 0.21, "y": 0.05, "z": -0.43},
	}})
	m = next.(watchModel)

	view := m.View()
	if !strings.Contains(view, "quaternion") || !strings.Contains(view, "w=+1.0000") {
		t.Fatalf("quaternion row missing:\n%s", view)
	}
	if !strings.Contains(view, "magnetometer") || !strings.Contains(view, "z=-0.4300") {
		t.Fatalf("magnetometer row missing:\n%s", view)
	}
	if m.total != 2 {
		t.Fatalf("total = %d", m.total)
	}
}

func TestWatchModelQuits(t *testing.T) {
	m := newWatchModel("addr", nil)
	_, cmd := m.Update(watchErrMsg{nil})
	if cmd == nil {
		t.Fatalf("expected quit command on stream end")
	}
}
