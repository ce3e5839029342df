package foxglove

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"imulink/pkg/engine"
	"imulink/pkg/protocol"
)

const (
	markerTypeCube  = 1
	markerActionAdd = 0
)

// SampleMessage is the JSON payload on the sample channel, one per
// decoded record of any kind.
type SampleMessage struct {
	TS        string  `json:"ts"`
	ElapsedMS float64 `json:"elapsed_ms"`
	Kind      string  `json:"kind"`
	Data      any     `json:"data"`
}

type MarkerMessage struct {
	Header MarkerHeader `json:"header"`
	NS     string       `json:"ns"`
	ID     int32        `json:"id"`
	Type   int32        `json:"type"`
	Action int32        `json:"action"`
	Pose   MarkerPose   `json:"pose"`
	Scale  Vector3      `json:"scale"`
	Color  ColorRGBA    `json:"color"`
}

type MarkerHeader struct {
	FrameID string      `json:"frame_id"`
	Stamp   MarkerStamp `json:"stamp"`
}

type MarkerStamp struct {
	Sec  int64 `json:"sec"`
	Nsec int64 `json:"nsec"`
}

type MarkerPose struct {
	Position    Vector3     `json:"position"`
	Orientation Quaternion3 `json:"orientation"`
}

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Quaternion3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

type ColorRGBA struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

type FrameTransformMessage struct {
	Timestamp     FrameTime   `json:"timestamp"`
	ParentFrameID string      `json:"parent_frame_id"`
	ChildFrameID  string      `json:"child_frame_id"`
	Translation   Vector3     `json:"translation"`
	Rotation      Quaternion3 `json:"rotation"`
}

type FrameTransformsMessage struct {
	Transforms []FrameTransformMessage `json:"transforms"`
}

type FrameTime struct {
	Sec  uint32 `json:"sec"`
	Nsec uint32 `json:"nsec"`
}

// Server bridges the hub to Foxglove Studio over the Foxglove websocket
// protocol. Every decoded record goes out on the sample channel;
// quaternion records additionally drive a pose marker and a frame
// transform so the headset orientation renders live in the 3D panel.
type Server struct {
	cfg     Config
	hub     *engine.Hub
	clients map[*client]struct{}
	mu      sync.RWMutex
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	subs map[uint32]uint64
	mu   sync.RWMutex
	once sync.Once
}

func NewServer(cfg Config, hub *engine.Hub) *Server {
	defaults := DefaultConfig()
	if cfg.WSAddr == "" {
		cfg.WSAddr = defaults.WSAddr
	}
	if cfg.Name == "" {
		cfg.Name = defaults.Name
	}
	if cfg.Topic == "" {
		cfg.Topic = defaults.Topic
	}
	if cfg.ChannelID == 0 {
		cfg.ChannelID = defaults.ChannelID
	}
	if cfg.SchemaName == "" {
		cfg.SchemaName = defaults.SchemaName
	}
	if cfg.SchemaEncoding == "" {
		cfg.SchemaEncoding = defaults.SchemaEncoding
	}
	if cfg.Schema == "" {
		cfg.Schema = defaults.Schema
	}
	if cfg.Encoding == "" {
		cfg.Encoding = defaults.Encoding
	}
	if cfg.MarkerTopic == "" {
		cfg.MarkerTopic = defaults.MarkerTopic
	}
	if cfg.MarkerChannelID == 0 {
		cfg.MarkerChannelID = defaults.MarkerChannelID
	}
	if cfg.MarkerSchemaName == "" {
		cfg.MarkerSchemaName = defaults.MarkerSchemaName
	}
	if cfg.MarkerSchemaEncoding == "" {
		cfg.MarkerSchemaEncoding = defaults.MarkerSchemaEncoding
	}
	if cfg.MarkerSchema == "" {
		cfg.MarkerSchema = defaults.MarkerSchema
	}
	if cfg.MarkerEncoding == "" {
		cfg.MarkerEncoding = defaults.MarkerEncoding
	}
	if cfg.TransformTopic == "" {
		cfg.TransformTopic = defaults.TransformTopic
	}
	if cfg.TransformChannelID == 0 {
		cfg.TransformChannelID = defaults.TransformChannelID
	}
	if cfg.TransformSchemaName == "" {
		cfg.TransformSchemaName = defaults.TransformSchemaName
	}
	if cfg.TransformSchemaEncoding == "" {
		cfg.TransformSchemaEncoding = defaults.TransformSchemaEncoding
	}
	if cfg.TransformSchema == "" {
		cfg.TransformSchema = defaults.TransformSchema
	}
	if cfg.TransformEncoding == "" {
		cfg.TransformEncoding = defaults.TransformEncoding
	}
	if cfg.ParentFrameID == "" {
		cfg.ParentFrameID = defaults.ParentFrameID
	}
	if cfg.FrameID == "" {
		cfg.FrameID = defaults.FrameID
	}
	if cfg.MarkerChannelID == cfg.ChannelID {
		cfg.MarkerChannelID = cfg.ChannelID + 1
	}
	if cfg.TransformChannelID == cfg.ChannelID || cfg.TransformChannelID == cfg.MarkerChannelID {
		cfg.TransformChannelID = max(cfg.ChannelID, cfg.MarkerChannelID) + 1
	}
	if cfg.SendBuf <= 0 {
		cfg.SendBuf = defaults.SendBuf
	}

	return &Server{
		cfg:     cfg,
		hub:     hub,
		clients: make(map[*client]struct{}),
	}
}

// Handler exposes the websocket endpoint for embedding in an existing
// HTTP server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWS)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:    s.cfg.WSAddr,
		Handler: s.Handler(),
	}

	sub := s.hub.Subscribe()
	go s.broadcastLoop(ctx, sub)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = httpServer.Shutdown(shutdownCtx)
		cancel()
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		Subprotocols: []string{"foxglove.websocket.v1"},
		CheckOrigin: func(*http.Request) bool {
			return true
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := newClient(conn, s.cfg.SendBuf)
	s.addClient(c)

	if err := conn.WriteJSON(s.serverInfo()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}
	if err := conn.WriteJSON(s.advertise()); err != nil {
		c.close()
		s.removeClient(c)
		return
	}

	go c.writeLoop()
	c.readLoop(s.supportedChannels())

	c.close()
	s.removeClient(c)
}

func (s *Server) supportedChannels() map[uint64]struct{} {
	return map[uint64]struct{}{
		s.cfg.ChannelID:          {},
		s.cfg.MarkerChannelID:    {},
		s.cfg.TransformChannelID: {},
	}
}

func (s *Server) serverInfo() ServerInfoMsg {
	return ServerInfoMsg{
		Op:                 OpServerInfo,
		Name:               s.cfg.Name,
		Capabilities:       []string{},
		SupportedEncodings: []string{},
		SessionID:          fmt.Sprintf("%d", time.Now().UTC().UnixNano()),
	}
}

func (s *Server) advertise() AdvertiseMsg {
	return AdvertiseMsg{Op: OpAdvertise, Channels: []Channel{
		{
			ID:             s.cfg.ChannelID,
			Topic:          s.cfg.Topic,
			Encoding:       s.cfg.Encoding,
			SchemaName:     s.cfg.SchemaName,
			SchemaEncoding: s.cfg.SchemaEncoding,
			Schema:         s.cfg.Schema,
		},
		{
			ID:             s.cfg.MarkerChannelID,
			Topic:          s.cfg.MarkerTopic,
			Encoding:       s.cfg.MarkerEncoding,
			SchemaName:     s.cfg.MarkerSchemaName,
			SchemaEncoding: s.cfg.MarkerSchemaEncoding,
			Schema:         s.cfg.MarkerSchema,
		},
		{
			ID:             s.cfg.TransformChannelID,
			Topic:          s.cfg.TransformTopic,
			Encoding:       s.cfg.TransformEncoding,
			SchemaName:     s.cfg.TransformSchemaName,
			SchemaEncoding: s.cfg.TransformSchemaEncoding,
			Schema:         s.cfg.TransformSchema,
		},
	}}
}

func (s *Server) broadcastLoop(ctx context.Context, sub <-chan protocol.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			s.Broadcast(evt)
		}
	}
}

// Broadcast publishes one event to every subscribed client.
func (s *Server) Broadcast(evt protocol.Event) {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	s.publishJSONToChannel(s.cfg.ChannelID, ts, SampleMessage{
		TS:        ts.UTC().Format(time.RFC3339Nano),
		ElapsedMS: float64(evt.Elapsed) / float64(time.Millisecond),
		Kind:      protocol.KindName(evt.Record),
		Data:      evt.Record,
	})

	quat, ok := evt.Record.(protocol.Quaternion)
	if !ok {
		return
	}
	s.publishJSONToChannel(s.cfg.MarkerChannelID, ts, s.marker(quat, ts))
	s.publishJSONToChannel(s.cfg.TransformChannelID, ts, s.transform(quat, ts))
}

func (s *Server) marker(quat protocol.Quaternion, ts time.Time) MarkerMessage {
	return MarkerMessage{
		Header: MarkerHeader{
			FrameID: s.cfg.FrameID,
			Stamp: MarkerStamp{
				Sec:  ts.Unix(),
				Nsec: int64(ts.Nanosecond()),
			},
		},
		NS:     "imulink.imu",
		ID:     1,
		Type:   markerTypeCube,
		Action: markerActionAdd,
		Pose: MarkerPose{
			Position: Vector3{X: 0, Y: 0, Z: 0},
			Orientation: Quaternion3{
				X: float64(quat.X),
				Y: float64(quat.Y),
				Z: float64(quat.Z),
				W: float64(quat.W),
			},
		},
		Scale: Vector3{X: 0.3, Y: 0.3, Z: 0.3},
		Color: ColorRGBA{R: 1, G: 1, B: 1, A: 1},
	}
}

func (s *Server) transform(quat protocol.Quaternion, ts time.Time) FrameTransformsMessage {
	transform := FrameTransformMessage{
		Timestamp: FrameTime{
			Sec:  uint32(ts.Unix()),
			Nsec: uint32(ts.Nanosecond()),
		},
		ParentFrameID: s.cfg.ParentFrameID,
		ChildFrameID:  s.cfg.FrameID,
		Translation:   Vector3{X: 0, Y: 0, Z: 0},
		Rotation: Quaternion3{
			X: float64(quat.X),
			Y: float64(quat.Y),
			Z: float64(quat.Z),
			W: float64(quat.W),
		},
	}
	return FrameTransformsMessage{Transforms: []FrameTransformMessage{transform}}
}

func (s *Server) publishJSONToChannel(channelID uint64, ts time.Time, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		return
	}

	logTime := uint64(ts.UnixNano())
	clients := s.snapshotClients()
	for _, c := range clients {
		subIDs := c.subIDsForChannel(channelID)
		for _, subID := range subIDs {
			frame := EncodeMessageData(subID, logTime, payload)
			c.trySend(frame)
		}
	}
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *Server) snapshotClients() []*client {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()
	return clients
}

func newClient(conn *websocket.Conn, sendBuf int) *client {
	if sendBuf <= 0 {
		sendBuf = DefaultConfig().SendBuf
	}
	return &client{
		conn: conn,
		send: make(chan []byte, sendBuf),
		subs: make(map[uint32]uint64),
	}
}

func (c *client) readLoop(supportedChannels map[uint64]struct{}) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		var header struct {
			Op string `json:"op"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}

		switch header.Op {
		case OpSubscribe:
			var msg SubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, sub := range msg.Subscriptions {
				if _, ok := supportedChannels[sub.ChannelID]; ok {
					c.addSub(sub.ID, sub.ChannelID)
				}
			}
		case OpUnsubscribe:
			var msg UnsubscribeMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			for _, id := range msg.SubscriptionIDs {
				c.removeSub(id)
			}
		}
	}
}

func (c *client) writeLoop() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			c.close()
			return
		}
	}
}

func (c *client) trySend(msg []byte) {
	defer func() {
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) addSub(id uint32, channelID uint64) {
	c.mu.Lock()
	c.subs[id] = channelID
	c.mu.Unlock()
}

func (c *client) removeSub(id uint32) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

func (c *client) subIDsForChannel(channelID uint64) []uint32 {
	c.mu.RLock()
	ids := make([]uint32, 0, len(c.subs))
	for id, ch := range c.subs {
		if ch == channelID {
			ids = append(ids, id)
		}
	}
	c.mu.RUnlock()
	return ids
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}
