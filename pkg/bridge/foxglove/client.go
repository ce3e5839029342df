package foxglove

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Client is a minimal publish-side consumer of the bridge, used by the
// watch view to attach to a running daemon without disturbing the BLE
// link.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to a bridge at host:port and waits for the handshake
// messages.
func Dial(ctx context.Context, addr string) (*Client, error) {
	dialer := websocket.Dialer{
		Subprotocols:     []string{"foxglove.websocket.v1"},
		HandshakeTimeout: 5 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, "ws://"+addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}
	return &Client{conn: conn}, nil
}

// AwaitAdvertise reads until the server advertises its channels.
func (c *Client) AwaitAdvertise(timeout time.Duration) ([]Channel, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return nil, err
		}
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("await advertise: %w", err)
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
		if header.Op != OpAdvertise {
			continue
		}
		var msg AdvertiseMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("parse advertise: %w", err)
		}
		return msg.Channels, nil
	}
}

// Subscribe registers one subscription id for a channel.
func (c *Client) Subscribe(id uint32, channelID uint64) error {
	return c.conn.WriteJSON(SubscribeMsg{
		Op:            OpSubscribe,
		Subscriptions: []Subscription{{ID: id, ChannelID: channelID}},
	})
}

// NextSample blocks until the next sample-channel message arrives.
func (c *Client) NextSample(timeout time.Duration) (SampleMessage, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := c.conn.SetReadDeadline(deadline); err != nil {
			return SampleMessage{}, err
		}
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return SampleMessage{}, err
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		_, _, payload, ok := DecodeMessageData(data)
		if !ok {
			continue
		}
		var sample SampleMessage
		if err := json.Unmarshal(payload, &sample); err != nil {
			continue
		}
		if sample.Kind == "" {
			continue
		}
		return sample, nil
	}
}

func (c *Client) Close() error {
	return c.conn.Close()
}
