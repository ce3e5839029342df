package main

import (
	"context"
	"math"
	"time"

	"imulink/pkg/engine"
	"imulink/pkg/protocol"
)

const (
	mockRollAmplitudeRad  = 35.0 * math.Pi / 180.0
	mockPitchAmplitudeRad = 25.0 * math.Pi / 180.0
	mockYawAmplitudeRad   = 40.0 * math.Pi / 180.0

	mockRollFreqHz  = 0.23
	mockPitchFreqHz = 0.31
	mockYawFreqHz   = 0.17

	mockRollPhaseRad  = 0.0
	mockPitchPhaseRad = math.Pi / 3.0
	mockYawPhaseRad   = 2.0 * math.Pi / 3.0

	mockFieldGaussX = 0.21
	mockFieldGaussY = 0.05
	mockFieldGaussZ = -0.43
)

// runMockPublisher synthesizes the wire stream a headset would send and
// pushes it through the real framer, so the mock exercises the same
// decode path as live bytes.
func runMockPublisher(ctx context.Context, hub *engine.Hub, hz int) {
	if hz <= 0 {
		hz = 50
	}
	interval := time.Second / time.Duration(hz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	framer := protocol.NewFramer()
	start := time.Now()
	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			chunk := mockChunk(now.Sub(start).Seconds(), seq)
			for _, rec := range framer.Ingest(chunk) {
				hub.Publish(protocol.Event{
					Record:    rec,
					Timestamp: now,
					Elapsed:   now.Sub(start),
				})
			}
			seq++
		}
	}
}

// mockChunk emits a quaternion every tick, with magnetometer and linear
// acceleration records interleaved at a fifth of the rate, roughly the
// cadence the firmware schedules its sensor reports at.
func mockChunk(t float64, seq int64) []byte {
	buf := protocol.AppendQuaternion(nil, mockQuaternion(t))
	if seq%5 == 2 {
		buf = protocol.AppendMagnetometer(buf, mockMagnetometer(t))
	}
	if seq%5 == 4 {
		buf = protocol.AppendLinearAccel(buf, mockLinearAccel(t))
	}
	return buf
}

func mockEulerAngles(t float64) (roll float64, pitch float64, yaw float64) {
	roll = mockRollAmplitudeRad * math.Sin(2.0*math.Pi*mockRollFreqHz*t+mockRollPhaseRad)
	pitch = mockPitchAmplitudeRad * math.Sin(2.0*math.Pi*mockPitchFreqHz*t+mockPitchPhaseRad)
	yaw = mockYawAmplitudeRad * math.Sin(2.0*math.Pi*mockYawFreqHz*t+mockYawPhaseRad)
	return
}

func mockQuaternion(t float64) protocol.Quaternion {
	roll, pitch, yaw := mockEulerAngles(t)
	cr := math.Cos(roll * 0.5)
	sr := math.Sin(roll * 0.5)
	cp := math.Cos(pitch * 0.5)
	sp := math.Sin(pitch * 0.5)
	cy := math.Cos(yaw * 0.5)
	sy := math.Sin(yaw * 0.5)

	// ZYX intrinsic rotation (yaw -> pitch -> roll).
	w := cr*cp*cy + sr*sp*sy
	x := sr*cp*cy - cr*sp*sy
	y := cr*sp*cy + sr*cp*sy
	z := cr*cp*sy - sr*sp*cy

	norm := math.Sqrt(w*w + x*x + y*y + z*z)
	if norm == 0 {
		return protocol.Quaternion{W: 1}
	}
	inv := 1.0 / norm
	return protocol.Quaternion{
		W: float32(w * inv),
		X: float32(x * inv),
		Y: float32(y * inv),
		Z: float32(z * inv),
	}
}

func mockMagnetometer(t float64) protocol.Magnetometer {
	// Static field rotated by the yaw sweep, ignoring roll and pitch.
	_, _, yaw := mockEulerAngles(t)
	c := math.Cos(yaw)
	s := math.Sin(yaw)
	return protocol.Magnetometer{
		X: float32(mockFieldGaussX*c - mockFieldGaussY*s),
		Y: float32(mockFieldGaussX*s + mockFieldGaussY*c),
		Z: mockFieldGaussZ,
	}
}

func mockLinearAccel(t float64) protocol.LinearAccel {
	roll, pitch, _ := mockEulerAngles(t)
	return protocol.LinearAccel{
		X: float32(0.8 * math.Sin(2.0*math.Pi*mockRollFreqHz*t+roll)),
		Y: float32(0.6 * math.Sin(2.0*math.Pi*mockPitchFreqHz*t+pitch)),
		Z: float32(0.2 * math.Cos(2.0*math.Pi*mockYawFreqHz*t)),
	}
}
