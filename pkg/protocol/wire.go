package protocol

// Wire format produced by the LET-AR IMU firmware. Every record is a
// fixed-size frame:
//
//	0x21  tag  payload(float32 LE ...)  checksum  0x0A
//
// The checksum is the ones' complement of the 8-bit sum over every byte
// from the start marker through the last payload byte. The trailing 0x0A
// is present on the wire but not covered by the checksum and not
// validated on receive.
const (
	StartMarker byte = 0x21 // '!'
	Terminator  byte = 0x0A // '\n'

	TagQuaternion   byte = 0x51 // 'Q'
	TagMagnetometer byte = 0x4D // 'M'
	TagLinearAccel  byte = 0x41 // 'A'

	QuaternionLen   = 20 // marker + tag + 4 float32 + checksum + terminator
	MagnetometerLen = 16 // marker + tag + 3 float32 + checksum + terminator
	LinearAccelLen  = 16

	headerLen    = 2
	maxRecordLen = QuaternionLen
)

// recordLen returns the full frame length for a type tag, or 0 for an
// unknown tag.
func recordLen(tag byte) int {
	switch tag {
	case TagQuaternion:
		return QuaternionLen
	case TagMagnetometer, TagLinearAccel:
		return MagnetometerLen
	default:
		return 0
	}
}

// checksum computes the ones'-complement sum over b. It is an additive
// 8-bit check, not a CRC.
func checksum(b []byte) byte {
	var sum byte
	for _, c := range b {
		sum += c
	}
	return ^sum
}
