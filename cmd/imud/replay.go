package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"imulink/pkg/logger"
	"imulink/pkg/protocol"
)

// runReplay decodes a captured byte stream from a file into JSONL,
// feeding the framer in transport-sized chunks so resynchronization
// behaves exactly as it would against a live link.
func runReplay(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("replay", flag.ContinueOnError)
	fs.SetOutput(stderr)

	logPath := fs.String("log", "", "JSONL output path (default: stdout)")
	chunkSize := fs.Int("chunk", 247, "bytes fed to the decoder per step")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "replay: expected exactly one input file")
		return 2
	}
	if *chunkSize <= 0 {
		fmt.Fprintln(stderr, "replay: --chunk must be positive")
		return 2
	}

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(stderr, "replay: read input:", err)
		return 1
	}

	var out io.Writer = stdout
	if *logPath != "" {
		file, err := os.Create(*logPath)
		if err != nil {
			fmt.Fprintln(stderr, "replay: open log file:", err)
			return 1
		}
		defer file.Close()
		out = file
	}

	count, err := replayStream(data, *chunkSize, logger.NewJSONLWriter(out))
	if err != nil {
		fmt.Fprintln(stderr, "replay: write output:", err)
		return 1
	}
	fmt.Fprintf(stderr, "replay: %d records from %d bytes\n", count, len(data))
	return 0
}

func replayStream(data []byte, chunkSize int, w *logger.JSONLWriter) (int, error) {
	framer := protocol.NewFramer()
	start := time.Now()
	count := 0
	for offset := 0; offset < len(data); offset += chunkSize {
		end := min(offset+chunkSize, len(data))
		now := time.Now()
		for _, rec := range framer.Ingest(data[offset:end]) {
			evt := protocol.Event{
				Record:    rec,
				Timestamp: now,
				Elapsed:   now.Sub(start),
			}
			if err := w.Write(evt); err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}
