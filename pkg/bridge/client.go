package bridge

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/teslashibe/go-rover/pkg/protocol"
)

// Client is the simulator side of the bridge. It is used to replay
// recorded telemetry and to drive the bridge in tests.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex // Serializes writes
}

// Dial connects to a bridge at url, e.g. ws://localhost:4567/ws/sim/run1.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial bridge: %w", err)
	}
	return &Client{conn: conn}, nil
}

// SendTelemetry sends one tick with its JPEG camera frame.
func (c *Client) SendTelemetry(t protocol.TelemetryData, jpegData []byte) error {
	msg, err := protocol.NewTelemetryMessage(t, jpegData)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Ping sends a health check.
func (c *Client) Ping(id string) error {
	msg, err := protocol.NewPingMessage(id)
	if err != nil {
		return err
	}
	return c.send(msg)
}

// Receive blocks for the next message from the rover.
func (c *Client) Receive() (*protocol.Message, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return protocol.ParseMessage(data)
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
