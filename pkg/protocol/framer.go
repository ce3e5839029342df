package protocol

import (
	"encoding/binary"
	"math"
)

// Framer reassembles fixed-size sensor records out of a byte stream that
// fragments and coalesces arbitrarily at notification boundaries. Bytes
// that do not decode are dropped one at a time, so the scanner
// resynchronizes on the next genuine start marker no matter how the
// stream is corrupted. A truncated record at the end of the buffer is
// kept until the next chunk completes it.
//
// A Framer owns its buffer exclusively and is not safe for concurrent
// use; give each connection its own instance.
type Framer struct {
	buf []byte
}

// NewFramer returns a framer with an empty reassembly buffer.
func NewFramer() *Framer {
	return &Framer{}
}

// Ingest appends chunk to the reassembly buffer and returns every record
// completed by it, in arrival order. Malformed bytes produce no records
// and no errors. The returned slice is nil when nothing completed.
func (f *Framer) Ingest(chunk []byte) []Record {
	f.buf = append(f.buf, chunk...)

	var records []Record
	offset := 0
	for offset <= len(f.buf)-headerLen {
		if f.buf[offset] != StartMarker {
			offset++
			continue
		}

		length := recordLen(f.buf[offset+1])
		if length == 0 {
			// Unknown tag: the marker was noise.
			offset++
			continue
		}
		if offset+length > len(f.buf) {
			// Truncated at the end of the data received so far.
			// Keep everything from offset and wait for more.
			break
		}

		rec, ok := decode(f.buf[offset : offset+length])
		if !ok {
			// Checksum failure is treated like any other garbage
			// byte so a corrupted frame cannot stall the stream.
			offset++
			continue
		}
		records = append(records, rec)
		offset += length
	}

	// Compact the consumed prefix instead of reslicing so the buffer's
	// backing array is reused across calls.
	n := copy(f.buf, f.buf[offset:])
	f.buf = f.buf[:n]

	return records
}

// Reset discards any partially assembled bytes. Call it when the owning
// connection drops so records are never stitched across sessions.
func (f *Framer) Reset() {
	f.buf = f.buf[:0]
}

// Pending returns the number of unconsumed bytes held for the next call.
func (f *Framer) Pending() int {
	return len(f.buf)
}

// decode validates and decodes one full-length candidate frame. The
// caller guarantees b starts with the marker, b[1] is a known tag and
// len(b) is that tag's full record length.
func decode(b []byte) (Record, bool) {
	if checksum(b[:len(b)-2]) != b[len(b)-2] {
		return nil, false
	}
	switch b[1] {
	case TagQuaternion:
		return Quaternion{
			W: float32LE(b[2:6]),
			X: float32LE(b[6:10]),
			Y: float32LE(b[10:14]),
			Z: float32LE(b[14:18]),
		}, true
	case TagMagnetometer:
		return Magnetometer{
			X: float32LE(b[2:6]),
			Y: float32LE(b[6:10]),
			Z: float32LE(b[10:14]),
		}, true
	case TagLinearAccel:
		return LinearAccel{
			X: float32LE(b[2:6]),
			Y: float32LE(b[6:10]),
			Z: float32LE(b[10:14]),
		}, true
	}
	return nil, false
}

func float32LE(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
