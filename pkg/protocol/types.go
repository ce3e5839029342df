package protocol

import (
	"fmt"
	"time"
)

// Record is one decoded, checksum-validated sensor sample. The concrete
// type is one of Quaternion, Magnetometer or LinearAccel.
type Record interface {
	// Tag returns the wire type tag identifying the record kind.
	Tag() byte
}

// Quaternion is the BNO085 rotation vector (unit quaternion).
type Quaternion struct {
	W float32 `json:"w"`
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (Quaternion) Tag() byte { return TagQuaternion }

func (q Quaternion) String() string {
	return fmt.Sprintf("Quat(w=%.4f x=%.4f y=%.4f z=%.4f)", q.W, q.X, q.Y, q.Z)
}

// Magnetometer is a calibrated field reading in microtesla.
type Magnetometer struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (Magnetometer) Tag() byte { return TagMagnetometer }

func (m Magnetometer) String() string {
	return fmt.Sprintf("Mag(%.2f, %.2f, %.2f) µT", m.X, m.Y, m.Z)
}

// LinearAccel is gravity-compensated acceleration in m/s².
type LinearAccel struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

func (LinearAccel) Tag() byte { return TagLinearAccel }

func (a LinearAccel) String() string {
	return fmt.Sprintf("Accel(%.2f, %.2f, %.2f) m/s²", a.X, a.Y, a.Z)
}

// Event is the normalized payload flowing through the pipeline: a decoded
// record plus arrival metadata assigned by the consumer side.
type Event struct {
	Record    Record
	Timestamp time.Time
	Elapsed   time.Duration
}

// KindName returns a short lowercase name for a record's kind, used by the
// JSONL sink and the live views.
func KindName(r Record) string {
	switch r.(type) {
	case Quaternion:
		return "quaternion"
	case Magnetometer:
		return "magnetometer"
	case LinearAccel:
		return "linear_accel"
	default:
		return fmt.Sprintf("0x%02x", r.Tag())
	}
}
