package main

import (
	"math/rand"
	"testing"

	"imulink/pkg/protocol"
)

func countRecords(data []byte) int {
	framer := protocol.NewFramer()
	n := 0
	for offset := 0; offset < len(data); offset += 13 {
		end := min(offset+13, len(data))
		n += len(framer.Ingest(data[offset:end]))
	}
	return n
}

func TestGenerateCleanStream(t *testing.T) {
	data := generate(50, 0, 0, rand.New(rand.NewSource(1)))
	// 50 quaternions plus an interleaved mag and accel every 5 records.
	want := 50 + 10 + 10
	if got := countRecords(data); got != want {
		t.Fatalf("decoded %d records, want %d", got, want)
	}
}

func TestGenerateGarbageStillDecodes(t *testing.T) {
	data := generate(50, 40, 0, rand.New(rand.NewSource(7)))
	if got := countRecords(data); got < 50 {
		t.Fatalf("noise destroyed too many records: %d", got)
	}
}

func TestGenerateCorruptDropsFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	clean := countRecords(generate(50, 0, 0, rand.New(rand.NewSource(3))))
	corrupted := countRecords(generate(50, 0, 5, rng))
	if corrupted >= clean {
		t.Fatalf("corruption had no effect: %d vs %d", corrupted, clean)
	}
}
