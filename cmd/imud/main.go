package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/sirupsen/logrus"

	"imulink/pkg/bridge/foxglove"
	"imulink/pkg/config"
	"imulink/pkg/engine"
	"imulink/pkg/logger"
	"imulink/pkg/protocol"
	"imulink/pkg/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		return runServer([]string{}, stdout, stderr)
	}

	switch args[0] {
	case "server":
		return runServer(args[1:], stdout, stderr)
	case "replay":
		return runReplay(args[1:], stdout, stderr)
	case "watch":
		return runWatch(args[1:], stdout, stderr)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintln(stderr, "unknown command:", args[0])
		printUsage(stderr)
		return 2
	}
}

func runServer(args []string, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", config.DefaultConfigPath, "TOML config path")
	transportName := fs.String("transport", "", "stream source: ble or tcp (overrides config)")
	device := fs.String("device", "", "BLE device name (overrides config)")
	addr := fs.String("addr", "", "TCP address for the tcp transport (overrides config)")
	logPath := fs.String("log", "", "JSONL output path (default: config, - for stdout)")
	wsAddr := fs.String("ws", "", "Foxglove websocket bind address (overrides config)")
	bufSize := fs.Int("buf", 0, "chunk channel buffer size (overrides config)")
	mock := fs.Bool("mock", false, "publish a synthetic stream instead of connecting")
	mockHz := fs.Int("mock-hz", 50, "synthetic sample rate")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, exists, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.WithError(err).Error("load config")
		return 1
	}
	if !exists {
		log.WithField("path", *configPath).Info("config not found, using defaults")
	}
	if *transportName != "" {
		cfg.Transport = *transportName
	}
	if *device != "" {
		cfg.Device.Name = *device
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *logPath != "" {
		cfg.Log.Path = *logPath
	}
	if *wsAddr != "" {
		cfg.Foxglove.WSAddr = *wsAddr
	}
	if *bufSize > 0 {
		cfg.Server.Buf = *bufSize
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Error("invalid config")
		return 2
	}

	var out io.Writer = stdout
	if cfg.Log.Path != "" && cfg.Log.Path != "-" {
		file, err := os.Create(cfg.Log.Path)
		if err != nil {
			log.WithError(err).Error("open log file")
			return 1
		}
		defer file.Close()
		out = file
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hub := engine.NewHub()
	go hub.Run(ctx)

	logWriter := logger.NewJSONLWriter(out)
	go logWriter.Consume(ctx, hub.Subscribe())

	fgCfg := foxglove.DefaultConfig()
	fgCfg.WSAddr = cfg.Foxglove.WSAddr
	fgCfg.Topic = cfg.Foxglove.Topic
	fgCfg.SchemaName = cfg.Foxglove.SchemaName
	fgCfg.MarkerTopic = cfg.Foxglove.MarkerTopic
	fgCfg.TransformTopic = cfg.Foxglove.TransformTopic
	fgCfg.ParentFrameID = cfg.Foxglove.ParentFrame
	fgCfg.FrameID = cfg.Foxglove.FrameID
	bridge := foxglove.NewServer(fgCfg, hub)
	go func() {
		if err := bridge.Run(ctx); err != nil {
			log.WithError(err).Error("foxglove bridge stopped")
		}
	}()
	log.WithField("addr", cfg.Foxglove.WSAddr).Info("foxglove bridge listening")

	if *mock {
		log.WithField("hz", *mockHz).Info("mock stream enabled")
		go runMockPublisher(ctx, hub, *mockHz)
		<-ctx.Done()
		return 0
	}

	chunks := make(chan transport.Chunk, cfg.Server.Buf)
	switch cfg.Transport {
	case "ble":
		central, err := transport.NewCentral(chunks,
			cfg.Device.ServiceUUID, cfg.Device.StreamUUID,
			transport.WithDeviceName(cfg.Device.Name),
			transport.WithScanTimeout(cfg.ScanTimeout()),
			transport.WithIdleTimeout(cfg.IdleTimeout()),
			transport.WithRetryInterval(cfg.Retry()),
			transport.WithCentralErrorHandler(func(err error) {
				log.WithError(err).Warn("ble")
			}),
		)
		if err != nil {
			log.WithError(err).Error("ble setup")
			return 1
		}
		go func() {
			if err := central.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("ble central stopped")
				stop()
			}
		}()
		log.WithField("device", cfg.Device.Name).Info("scanning")
	case "tcp":
		transport.StartListener(ctx, cfg.Server.Addr, chunks,
			transport.WithReconnectInterval(cfg.Reconnect()),
			transport.WithBufferSize(cfg.Server.Buf),
			transport.WithErrorHandler(func(err error) {
				log.WithError(err).Warn("tcp")
			}),
		)
		log.WithField("addr", cfg.Server.Addr).Info("tcp source attached")
	}

	go pump(ctx, chunks, hub)

	<-ctx.Done()
	return 0
}

// pump feeds transport chunks through the framer and publishes decoded
// records. An end-of-stream chunk discards any partial frame so bytes
// from the next connection never splice onto the old tail.
func pump(ctx context.Context, chunks <-chan transport.Chunk, hub *engine.Hub) {
	framer := protocol.NewFramer()
	var streamStart time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if chunk.EndOfStream {
				framer.Reset()
				streamStart = time.Time{}
				continue
			}
			now := time.Now()
			if streamStart.IsZero() {
				streamStart = now
			}
			for _, rec := range framer.Ingest(chunk.Data) {
				hub.Publish(protocol.Event{
					Record:    rec,
					Timestamp: now,
					Elapsed:   now.Sub(streamStart),
				})
			}
		}
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  imud server [--config imulink.toml] [--transport ble|tcp] [--device name] [--addr host:port] [--log file.jsonl] [--ws host:port] [--mock] [--mock-hz 50]")
	fmt.Fprintln(w, "  imud replay <file> [--log file.jsonl] [--chunk 247]")
	fmt.Fprintln(w, "  imud watch [--ws host:port]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  server   attach to the IMU stream and run the host pipeline")
	fmt.Fprintln(w, "  replay   decode a captured byte stream into JSONL")
	fmt.Fprintln(w, "  watch    live view of a running imud's Foxglove feed")
}
