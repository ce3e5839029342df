package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const DefaultConfigPath = "imulink.toml"

type ImulinkConfig struct {
	Device     DeviceConfig   `toml:"device"`
	Transport  string         `toml:"transport"`
	Server     ServerConfig   `toml:"server"`
	Log        LogConfig      `toml:"log"`
	Foxglove   FoxgloveConfig `toml:"foxglove"`
	configPath string         `toml:"-"`
}

// DeviceConfig describes the BLE peripheral to attach to.
type DeviceConfig struct {
	Name        string `toml:"name"`
	ServiceUUID string `toml:"service_uuid"`
	StreamUUID  string `toml:"stream_uuid"`
	ScanTimeout string `toml:"scan_timeout"`
	IdleTimeout string `toml:"idle_timeout"`
	Retry       string `toml:"retry"`
}

// ServerConfig covers the TCP fallback transport, used when a
// relay forwards the stream over the network instead of BLE.
type ServerConfig struct {
	Addr      string `toml:"addr"`
	Reconnect string `toml:"reconnect"`
	Buf       int    `toml:"buf"`
}

type LogConfig struct {
	Path string `toml:"path"`
}

type FoxgloveConfig struct {
	WSAddr         string `toml:"ws_addr"`
	Topic          string `toml:"topic"`
	SchemaName     string `toml:"schema_name"`
	MarkerTopic    string `toml:"marker_topic"`
	TransformTopic string `toml:"transform_topic"`
	ParentFrame    string `toml:"parent_frame"`
	FrameID        string `toml:"frame_id"`
}

func Default() ImulinkConfig {
	return ImulinkConfig{
		Device: DeviceConfig{
			Name:        "LET-AR IMU",
			ServiceUUID: "6e400001-b5a3-f393-e0a9-e50e24dcca9e",
			StreamUUID:  "6e400003-b5a3-f393-e0a9-e50e24dcca9e",
			ScanTimeout: "30s",
			IdleTimeout: "5s",
			Retry:       "2s",
		},
		Transport: "ble",
		Server: ServerConfig{
			Addr:      "127.0.0.1:19021",
			Reconnect: "1s",
			Buf:       247,
		},
		Log: LogConfig{
			Path: "imulink.jsonl",
		},
		Foxglove: FoxgloveConfig{
			WSAddr:         "127.0.0.1:8765",
			Topic:          "imulink/sample",
			SchemaName:     "imulink.Sample",
			MarkerTopic:    "/visualization_marker",
			TransformTopic: "/tf",
			ParentFrame:    "world",
			FrameID:        "imu_link",
		},
	}
}

func Load(path string) (ImulinkConfig, error) {
	cfg, exists, err := LoadOrDefault(path)
	if err != nil {
		return ImulinkConfig{}, err
	}
	if !exists {
		return ImulinkConfig{}, os.ErrNotExist
	}
	return cfg, nil
}

// LoadOrDefault reads the config at path, falling back to defaults
// when the file does not exist. The second return reports whether the
// file was present.
func LoadOrDefault(path string) (ImulinkConfig, bool, error) {
	cfg := Default()
	cfg.configPath = path

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, false, nil
		}
		return ImulinkConfig{}, false, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return ImulinkConfig{}, true, fmt.Errorf("parse config: %w", err)
	}
	cfg.configPath = path
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return ImulinkConfig{}, true, err
	}
	return cfg, true, nil
}

func (cfg *ImulinkConfig) Save(path string) error {
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	cfg.configPath = path
	return nil
}

func (cfg *ImulinkConfig) ConfigPath() string {
	return cfg.configPath
}

func (cfg *ImulinkConfig) Validate() error {
	switch cfg.Transport {
	case "ble", "tcp":
	default:
		return fmt.Errorf("transport must be \"ble\" or \"tcp\", got %q", cfg.Transport)
	}
	if cfg.Device.Name == "" {
		return fmt.Errorf("device.name must not be empty")
	}
	for name, val := range map[string]string{
		"device.scan_timeout": cfg.Device.ScanTimeout,
		"device.idle_timeout": cfg.Device.IdleTimeout,
		"device.retry":        cfg.Device.Retry,
		"server.reconnect":    cfg.Server.Reconnect,
	} {
		if _, err := time.ParseDuration(val); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if cfg.Server.Buf <= 0 {
		return fmt.Errorf("server.buf must be positive, got %d", cfg.Server.Buf)
	}
	return nil
}

// Duration helpers return the parsed value, assuming Validate passed.

func (cfg *ImulinkConfig) ScanTimeout() time.Duration { return mustDuration(cfg.Device.ScanTimeout) }
func (cfg *ImulinkConfig) IdleTimeout() time.Duration { return mustDuration(cfg.Device.IdleTimeout) }
func (cfg *ImulinkConfig) Retry() time.Duration       { return mustDuration(cfg.Device.Retry) }
func (cfg *ImulinkConfig) Reconnect() time.Duration   { return mustDuration(cfg.Server.Reconnect) }

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}

func (cfg *ImulinkConfig) normalize() {
	def := Default()

	if cfg.Transport == "" {
		cfg.Transport = def.Transport
	}
	if cfg.Device.Name == "" {
		cfg.Device.Name = def.Device.Name
	}
	if cfg.Device.ServiceUUID == "" {
		cfg.Device.ServiceUUID = def.Device.ServiceUUID
	}
	if cfg.Device.StreamUUID == "" {
		cfg.Device.StreamUUID = def.Device.StreamUUID
	}
	if cfg.Device.ScanTimeout == "" {
		cfg.Device.ScanTimeout = def.Device.ScanTimeout
	}
	if cfg.Device.IdleTimeout == "" {
		cfg.Device.IdleTimeout = def.Device.IdleTimeout
	}
	if cfg.Device.Retry == "" {
		cfg.Device.Retry = def.Device.Retry
	}

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.Reconnect == "" {
		cfg.Server.Reconnect = def.Server.Reconnect
	}
	if cfg.Server.Buf <= 0 {
		cfg.Server.Buf = def.Server.Buf
	}

	if cfg.Log.Path == "" {
		cfg.Log.Path = def.Log.Path
	}

	if cfg.Foxglove.WSAddr == "" {
		cfg.Foxglove.WSAddr = def.Foxglove.WSAddr
	}
	if cfg.Foxglove.Topic == "" {
		cfg.Foxglove.Topic = def.Foxglove.Topic
	}
	if cfg.Foxglove.SchemaName == "" {
		cfg.Foxglove.SchemaName = def.Foxglove.SchemaName
	}
	if cfg.Foxglove.MarkerTopic == "" {
		cfg.Foxglove.MarkerTopic = def.Foxglove.MarkerTopic
	}
	if cfg.Foxglove.TransformTopic == "" {
		cfg.Foxglove.TransformTopic = def.Foxglove.TransformTopic
	}
	if cfg.Foxglove.ParentFrame == "" {
		cfg.Foxglove.ParentFrame = def.Foxglove.ParentFrame
	}
	if cfg.Foxglove.FrameID == "" {
		cfg.Foxglove.FrameID = def.Foxglove.FrameID
	}
}
