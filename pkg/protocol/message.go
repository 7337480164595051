// Package protocol defines the WebSocket message types for rover-simulator
// communication.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Simulator → Rover messages
	TypeTelemetry MessageType = "telemetry" // Vehicle state and camera frame

	// Rover → Simulator messages
	TypeCommand MessageType = "command" // Throttle, brake and steering
	TypePickup  MessageType = "pickup"  // Request a sample pickup

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// =============================================================================
// Simulator → Rover Message Types
// =============================================================================

// TelemetryData is one simulator tick. Angles are in degrees.
type TelemetryData struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	Yaw           float64 `json:"yaw"`
	Pitch         float64 `json:"pitch"`
	Roll          float64 `json:"roll"`
	Speed         float64 `json:"speed"`
	Throttle      float64 `json:"throttle"`
	Brake         float64 `json:"brake"`
	SteeringAngle float64 `json:"steering_angle"`

	NearSample       bool `json:"near_sample"`
	PickingUp        bool `json:"picking_up"`
	SamplesLocated   int  `json:"samples_located"`
	SamplesCollected int  `json:"samples_collected"`

	Image string `json:"image"` // base64 encoded JPEG
}

// =============================================================================
// Rover → Simulator Message Types
// =============================================================================

// CommandData sets the actuators.
type CommandData struct {
	Throttle      float64 `json:"throttle"`
	Brake         float64 `json:"brake"`
	SteeringAngle float64 `json:"steering_angle"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
