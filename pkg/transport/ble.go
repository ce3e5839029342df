package transport

import (
	"context"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"
)

// UART-style stream service exposed by the LET-AR IMU firmware. The
// stream characteristic notifies '!'-framed records; chunk sizes follow
// whatever ATT MTU was negotiated, up to 247 bytes.
const (
	DefaultDeviceName  = "LET-AR IMU"
	DefaultServiceUUID = "6e400001-b5a3-f393-e0a9-e50e24dcca9e"
	DefaultStreamUUID  = "6e400003-b5a3-f393-e0a9-e50e24dcca9e"
)

// Central owns one BLE link to the wearable: scan by advertised name,
// connect, subscribe to the stream characteristic, and forward every
// notification as a Chunk. If the link goes quiet past the idle timeout
// the session is torn down, EndOfStream is emitted and scanning starts
// over.
type Central struct {
	adapter      *bluetooth.Adapter
	deviceName   string
	serviceUUID  bluetooth.UUID
	streamUUID   bluetooth.UUID
	out          chan<- Chunk
	scanTimeout  time.Duration
	idleTimeout  time.Duration
	retry        time.Duration
	errorHandler func(error)
}

type CentralOption func(*Central)

func WithDeviceName(name string) CentralOption {
	return func(c *Central) {
		if name != "" {
			c.deviceName = name
		}
	}
}

func WithScanTimeout(d time.Duration) CentralOption {
	return func(c *Central) {
		if d > 0 {
			c.scanTimeout = d
		}
	}
}

func WithIdleTimeout(d time.Duration) CentralOption {
	return func(c *Central) {
		if d > 0 {
			c.idleTimeout = d
		}
	}
}

func WithRetryInterval(d time.Duration) CentralOption {
	return func(c *Central) {
		if d > 0 {
			c.retry = d
		}
	}
}

func WithCentralErrorHandler(fn func(error)) CentralOption {
	return func(c *Central) {
		if fn != nil {
			c.errorHandler = fn
		}
	}
}

// NewCentral builds a central for the given service/characteristic UUID
// pair. Empty UUID strings select the firmware defaults.
func NewCentral(out chan<- Chunk, serviceUUID, streamUUID string, opts ...CentralOption) (*Central, error) {
	if serviceUUID == "" {
		serviceUUID = DefaultServiceUUID
	}
	if streamUUID == "" {
		streamUUID = DefaultStreamUUID
	}
	svc, err := bluetooth.ParseUUID(serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("parse service uuid: %w", err)
	}
	stream, err := bluetooth.ParseUUID(streamUUID)
	if err != nil {
		return nil, fmt.Errorf("parse stream uuid: %w", err)
	}

	c := &Central{
		adapter:     bluetooth.DefaultAdapter,
		deviceName:  DefaultDeviceName,
		serviceUUID: svc,
		streamUUID:  stream,
		out:         out,
		scanTimeout: 30 * time.Second,
		idleTimeout: 5 * time.Second,
		retry:       1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Run enables the adapter and keeps a session alive until ctx is
// cancelled, reconnecting after every teardown.
func (c *Central) Run(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("enable adapter: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := c.session(ctx); err != nil && ctx.Err() == nil {
			c.handleError(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.sleep(ctx)
	}
}

// session runs one scan-connect-stream cycle. It always emits
// EndOfStream after the last byte of a connected session.
func (c *Central) session(ctx context.Context) error {
	result, err := c.scan(ctx)
	if err != nil {
		return err
	}

	device, err := c.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connect %s: %w", result.Address.String(), err)
	}
	defer func() {
		_ = device.Disconnect()
		c.sendEndOfStream(ctx)
	}()

	services, err := device.DiscoverServices([]bluetooth.UUID{c.serviceUUID})
	if err != nil {
		return fmt.Errorf("discover service: %w", err)
	}
	if len(services) == 0 {
		return fmt.Errorf("service %s not found on %s", c.serviceUUID.String(), c.deviceName)
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{c.streamUUID})
	if err != nil {
		return fmt.Errorf("discover stream characteristic: %w", err)
	}
	if len(chars) == 0 {
		return fmt.Errorf("stream characteristic %s not found", c.streamUUID.String())
	}

	// BlueZ delivers value-changed events one at a time per
	// characteristic, so this callback is never reentered; it hands the
	// bytes to the pipeline and returns.
	activity := make(chan struct{}, 1)
	err = chars[0].EnableNotifications(func(value []byte) {
		chunk := append([]byte(nil), value...)
		select {
		case c.out <- Chunk{Data: chunk}:
		case <-ctx.Done():
			return
		}
		select {
		case activity <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return fmt.Errorf("enable notifications: %w", err)
	}

	// Idle watchdog: the firmware notifies continuously while
	// streaming, so silence means the link is gone even if the stack
	// has not noticed yet.
	idle := time.NewTimer(c.idleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-activity:
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(c.idleTimeout)
		case <-idle.C:
			return fmt.Errorf("stream idle for %s, dropping link", c.idleTimeout)
		}
	}
}

func (c *Central) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	var found bluetooth.ScanResult
	matched := false

	scanCtx, cancel := context.WithTimeout(ctx, c.scanTimeout)
	defer cancel()
	go func() {
		<-scanCtx.Done()
		_ = c.adapter.StopScan()
	}()

	err := c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if result.LocalName() != c.deviceName {
			return
		}
		found = result
		matched = true
		_ = adapter.StopScan()
	})
	if err != nil {
		return bluetooth.ScanResult{}, fmt.Errorf("scan: %w", err)
	}
	if !matched {
		return bluetooth.ScanResult{}, fmt.Errorf("device %q not found within %s", c.deviceName, c.scanTimeout)
	}
	return found, nil
}

func (c *Central) sendEndOfStream(ctx context.Context) {
	select {
	case c.out <- Chunk{EndOfStream: true}:
	case <-ctx.Done():
	}
}

func (c *Central) sleep(ctx context.Context) {
	timer := time.NewTimer(c.retry)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func (c *Central) handleError(err error) {
	if c.errorHandler != nil {
		c.errorHandler(err)
	}
}
