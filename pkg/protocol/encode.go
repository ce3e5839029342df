package protocol

import (
	"encoding/binary"
	"math"
)

// Encoders for the producer side of the wire format. The firmware is the
// real producer; these exist for the mock device, the stream generator
// and round-trip tests.

// AppendRecord appends r's wire frame to dst and returns the extended
// slice.
func AppendRecord(dst []byte, r Record) []byte {
	switch rec := r.(type) {
	case Quaternion:
		return AppendQuaternion(dst, rec)
	case Magnetometer:
		return AppendMagnetometer(dst, rec)
	case LinearAccel:
		return AppendLinearAccel(dst, rec)
	default:
		return dst
	}
}

// AppendQuaternion appends a 20-byte quaternion frame to dst.
func AppendQuaternion(dst []byte, q Quaternion) []byte {
	start := len(dst)
	dst = append(dst, StartMarker, TagQuaternion)
	dst = appendFloat32LE(dst, q.W)
	dst = appendFloat32LE(dst, q.X)
	dst = appendFloat32LE(dst, q.Y)
	dst = appendFloat32LE(dst, q.Z)
	return sealRecord(dst, start)
}

// AppendMagnetometer appends a 16-byte magnetometer frame to dst.
func AppendMagnetometer(dst []byte, m Magnetometer) []byte {
	start := len(dst)
	dst = append(dst, StartMarker, TagMagnetometer)
	dst = appendFloat32LE(dst, m.X)
	dst = appendFloat32LE(dst, m.Y)
	dst = appendFloat32LE(dst, m.Z)
	return sealRecord(dst, start)
}

// AppendLinearAccel appends a 16-byte linear acceleration frame to dst.
func AppendLinearAccel(dst []byte, a LinearAccel) []byte {
	start := len(dst)
	dst = append(dst, StartMarker, TagLinearAccel)
	dst = appendFloat32LE(dst, a.X)
	dst = appendFloat32LE(dst, a.Y)
	dst = appendFloat32LE(dst, a.Z)
	return sealRecord(dst, start)
}

func sealRecord(dst []byte, start int) []byte {
	dst = append(dst, checksum(dst[start:]))
	return append(dst, Terminator)
}

func appendFloat32LE(dst []byte, v float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
}
