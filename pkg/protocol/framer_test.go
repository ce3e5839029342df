package protocol_test

import (
	"testing"

	"imulink/pkg/protocol"
)

func TestIngestSingleQuaternion(t *testing.T) {
	f := protocol.NewFramer()
	want := protocol.Quaternion{W: 0.7071, X: 0, Y: -0.7071, Z: 0.25}

	records := f.Ingest(protocol.AppendQuaternion(nil, want))
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got, ok := records[0].(protocol.Quaternion)
	if !ok {
		t.Fatalf("unexpected record type: %T", records[0])
	}
	if got != want {
		t.Fatalf("unexpected quaternion: got %+v want %+v", got, want)
	}
	if f.Pending() != 0 {
		t.Fatalf("expected empty buffer, %d bytes pending", f.Pending())
	}
}

func TestIngestSplitAcrossChunks(t *testing.T) {
	f := protocol.NewFramer()
	want := protocol.Quaternion{W: 1, X: 2, Y: 3, Z: 4}
	frame := protocol.AppendQuaternion(nil, want)

	records := f.Ingest(frame[:10])
	if len(records) != 0 {
		t.Fatalf("expected no records from partial frame, got %d", len(records))
	}
	if f.Pending() != 10 {
		t.Fatalf("expected 10 pending bytes, got %d", f.Pending())
	}

	records = f.Ingest(frame[10:])
	if len(records) != 1 {
		t.Fatalf("expected 1 record after completion, got %d", len(records))
	}
	if got := records[0].(protocol.Quaternion); got != want {
		t.Fatalf("unexpected quaternion: got %+v want %+v", got, want)
	}
	if f.Pending() != 0 {
		t.Fatalf("expected empty buffer, %d bytes pending", f.Pending())
	}
}

func TestIngestConcatenatedRecords(t *testing.T) {
	f := protocol.NewFramer()
	quat := protocol.Quaternion{W: 0.5, X: 0.5, Y: 0.5, Z: 0.5}
	mag := protocol.Magnetometer{X: 21.5, Y: -3.25, Z: 44.0}

	stream := protocol.AppendQuaternion(nil, quat)
	stream = protocol.AppendMagnetometer(stream, mag)

	records := f.Ingest(stream)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if got := records[0].(protocol.Quaternion); got != quat {
		t.Fatalf("unexpected first record: %+v", got)
	}
	if got := records[1].(protocol.Magnetometer); got != mag {
		t.Fatalf("unexpected second record: %+v", got)
	}
}

func TestIngestGarbagePrefixResync(t *testing.T) {
	f := protocol.NewFramer()
	want := protocol.Quaternion{W: 0.1, X: 0.2, Y: 0.3, Z: 0.4}

	stream := append([]byte{0xFF, 0xFF}, protocol.AppendQuaternion(nil, want)...)
	records := f.Ingest(stream)
	if len(records) != 1 {
		t.Fatalf("expected 1 record after garbage prefix, got %d", len(records))
	}
	if got := records[0].(protocol.Quaternion); got != want {
		t.Fatalf("unexpected quaternion: got %+v want %+v", got, want)
	}
	if f.Pending() != 0 {
		t.Fatalf("expected empty buffer, %d bytes pending", f.Pending())
	}
}

func TestIngestChecksumFailureSkipsSilently(t *testing.T) {
	f := protocol.NewFramer()
	frame := protocol.AppendQuaternion(nil, protocol.Quaternion{W: 1})
	frame[protocol.QuaternionLen-2] ^= 0xA5

	records := f.Ingest(frame)
	if len(records) != 0 {
		t.Fatalf("expected no records from corrupted frame, got %d", len(records))
	}
	// The frame contains no further 0x21 bytes, so byte-at-a-time
	// resynchronization must consume it down to the trailing byte that
	// cannot yet be inspected.
	if f.Pending() > 1 {
		t.Fatalf("corrupted frame not consumed, %d bytes pending", f.Pending())
	}

	// A clean frame right after must still decode.
	want := protocol.Quaternion{W: 0, X: 1, Y: 0, Z: 0}
	records = f.Ingest(protocol.AppendQuaternion(nil, want))
	if len(records) != 1 {
		t.Fatalf("expected recovery record, got %d", len(records))
	}
	if got := records[0].(protocol.Quaternion); got != want {
		t.Fatalf("unexpected recovery record: %+v", got)
	}
}

func TestIngestSingleByteChunksLosesNothing(t *testing.T) {
	var stream []byte
	var want []protocol.Record
	for i := 0; i < 16; i++ {
		q := protocol.Quaternion{W: float32(i), X: -float32(i), Y: 0.5, Z: -0.5}
		m := protocol.Magnetometer{X: float32(i) * 1.5, Y: 2, Z: 3}
		a := protocol.LinearAccel{X: 0, Y: float32(i), Z: 9.81}
		stream = protocol.AppendQuaternion(stream, q)
		stream = protocol.AppendMagnetometer(stream, m)
		stream = protocol.AppendLinearAccel(stream, a)
		want = append(want, q, m, a)
	}

	whole := protocol.NewFramer().Ingest(stream)

	bytewise := protocol.NewFramer()
	var got []protocol.Record
	for i := range stream {
		got = append(got, bytewise.Ingest(stream[i:i+1])...)
	}

	if len(got) != len(want) || len(whole) != len(want) {
		t.Fatalf("record counts differ: byte-wise %d, whole %d, want %d",
			len(got), len(whole), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte-wise record %d mismatch: got %+v want %+v", i, got[i], want[i])
		}
		if whole[i] != want[i] {
			t.Fatalf("whole-stream record %d mismatch: got %+v want %+v", i, whole[i], want[i])
		}
	}
}

func TestIngestUnknownTagResync(t *testing.T) {
	f := protocol.NewFramer()
	want := protocol.LinearAccel{X: 1.5, Y: -2.5, Z: 3.5}

	// 0x21 followed by an unrecognized tag must be skipped a byte at a
	// time, including when the bogus "record" overlaps a real one.
	stream := []byte{protocol.StartMarker, 0x5A}
	stream = protocol.AppendLinearAccel(stream, want)

	records := f.Ingest(stream)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if got := records[0].(protocol.LinearAccel); got != want {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestIngestMarkerInsideGarbageDoesNotStall(t *testing.T) {
	f := protocol.NewFramer()

	// A lone marker+tag pair with nothing behind it parks the framer
	// waiting for the rest of a quaternion.
	if records := f.Ingest([]byte{protocol.StartMarker, protocol.TagQuaternion}); len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
	if f.Pending() != 2 {
		t.Fatalf("expected 2 pending bytes, got %d", f.Pending())
	}

	// Filling out the length with bytes that fail the checksum must
	// release the parked prefix instead of wedging the stream.
	filler := make([]byte, protocol.QuaternionLen-2)
	if records := f.Ingest(filler); len(records) != 0 {
		t.Fatalf("expected no records from filler, got %d", len(records))
	}

	want := protocol.Magnetometer{X: 7, Y: 8, Z: 9}
	records := f.Ingest(protocol.AppendMagnetometer(nil, want))
	if len(records) != 1 {
		t.Fatalf("expected recovery record, got %d", len(records))
	}
	if got := records[0].(protocol.Magnetometer); got != want {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestIngestEmptyChunk(t *testing.T) {
	f := protocol.NewFramer()
	if records := f.Ingest(nil); records != nil {
		t.Fatalf("expected nil records for empty chunk, got %v", records)
	}
	if records := f.Ingest([]byte{}); records != nil {
		t.Fatalf("expected nil records for zero-length chunk, got %v", records)
	}
}

func TestResetClearsPartialState(t *testing.T) {
	f := protocol.NewFramer()
	frame := protocol.AppendQuaternion(nil, protocol.Quaternion{W: 1})

	if records := f.Ingest(frame[:7]); len(records) != 0 {
		t.Fatalf("expected no records from partial frame, got %d", len(records))
	}
	f.Reset()
	if f.Pending() != 0 {
		t.Fatalf("expected empty buffer after reset, %d pending", f.Pending())
	}

	want := protocol.Quaternion{W: 0.25, X: 0.25, Y: 0.25, Z: 0.25}
	records := f.Ingest(protocol.AppendQuaternion(nil, want))
	if len(records) != 1 {
		t.Fatalf("expected 1 record after reset, got %d", len(records))
	}
	if got := records[0].(protocol.Quaternion); got != want {
		t.Fatalf("pre-reset bytes contaminated decode: %+v", got)
	}
}

func TestIngestTerminatorNotValidated(t *testing.T) {
	f := protocol.NewFramer()
	want := protocol.Magnetometer{X: 1, Y: 2, Z: 3}
	frame := protocol.AppendMagnetometer(nil, want)
	frame[len(frame)-1] = 0x00 // firmware bug or line noise on the terminator

	records := f.Ingest(frame)
	if len(records) != 1 {
		t.Fatalf("expected terminator to be ignored, got %d records", len(records))
	}
	if got := records[0].(protocol.Magnetometer); got != want {
		t.Fatalf("unexpected record: %+v", got)
	}
}
