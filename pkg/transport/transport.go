// Package transport provides byte-chunk sources for the decode pipeline:
// a BLE central subscribing to the IMU stream characteristic, and a
// reconnecting TCP client used for replay servers and development rigs.
//
// Sources deliver Chunks in arrival order. Chunk boundaries carry no
// meaning; framing is entirely the consumer's job.
package transport

// Chunk is one transport delivery. EndOfStream marks a connection
// boundary: it is sent in-order after the last byte of a session, and
// the consumer should reset any reassembly state before the next chunk.
type Chunk struct {
	Data        []byte
	EndOfStream bool
}
