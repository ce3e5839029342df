package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"

	"imulink/pkg/protocol"
)

// stream-gen writes a synthetic capture file in the headset wire
// format, optionally salted with noise and corrupted frames, for
// exercising `imud replay` and the decoder's resynchronization.

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("stream-gen", flag.ContinueOnError)
	fs.SetOutput(stderr)

	outPath := fs.String("o", "stream.bin", "output file")
	records := fs.Int("records", 500, "number of quaternion records")
	garbage := fs.Int("garbage", 0, "noise bytes to scatter between frames")
	corrupt := fs.Int("corrupt", 0, "frames to corrupt with a single bit flip")
	seed := fs.Int64("seed", 1, "PRNG seed")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *records <= 0 {
		fmt.Fprintln(stderr, "stream-gen: --records must be positive")
		return 2
	}

	data := generate(*records, *garbage, *corrupt, rand.New(rand.NewSource(*seed)))
	if err := os.WriteFile(*outPath, data, 0o644); err != nil {
		fmt.Fprintln(stderr, "stream-gen: write output:", err)
		return 1
	}
	fmt.Fprintf(stdout, "stream-gen: wrote %d bytes (%d records) to %s\n", len(data), *records, *outPath)
	return 0
}

func generate(records, garbage, corrupt int, rng *rand.Rand) []byte {
	var out []byte
	frameStarts := make([]int, 0, records)

	for i := 0; i < records; i++ {
		// Scatter the noise budget between frames so each frame stays
		// intact and only the gaps exercise resynchronization.
		for garbage > 0 && rng.Intn(records/max(garbage, 1)+1) == 0 {
			out = append(out, byte(rng.Intn(256)))
			garbage--
		}

		t := float64(i) / 50.0
		frameStarts = append(frameStarts, len(out))
		out = protocol.AppendQuaternion(out, sweepQuaternion(t))
		if i%5 == 2 {
			out = protocol.AppendMagnetometer(out, protocol.Magnetometer{
				X: float32(0.2 * math.Cos(t)),
				Y: float32(0.2 * math.Sin(t)),
				Z: -0.43,
			})
		}
		if i%5 == 4 {
			out = protocol.AppendLinearAccel(out, protocol.LinearAccel{
				X: float32(0.8 * math.Sin(t)),
				Z: float32(0.2 * math.Cos(t)),
			})
		}
	}
	for ; garbage > 0; garbage-- {
		out = append(out, byte(rng.Intn(256)))
	}

	for i := 0; i < corrupt && len(frameStarts) > 0; i++ {
		// Flip one payload bit; the checksum catches it and the
		// decoder has to skip past the damage.
		start := frameStarts[rng.Intn(len(frameStarts))]
		out[start+2+rng.Intn(4)] ^= 1 << uint(rng.Intn(8))
	}

	return out
}

func sweepQuaternion(t float64) protocol.Quaternion {
	half := 0.5 * 0.6 * math.Sin(2*math.Pi*0.2*t)
	return protocol.Quaternion{
		W: float32(math.Cos(half)),
		Z: float32(math.Sin(half)),
	}
}
