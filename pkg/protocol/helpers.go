package protocol

import (
	"encoding/base64"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewTelemetryMessage creates a telemetry message, encoding the JPEG frame
func NewTelemetryMessage(t TelemetryData, jpegData []byte) (*Message, error) {
	if jpegData != nil {
		t.Image = base64.StdEncoding.EncodeToString(jpegData)
	}
	return NewMessage(TypeTelemetry, t)
}

// NewCommandMessage creates an actuator command message
func NewCommandMessage(throttle, brake, steer float64) (*Message, error) {
	return NewMessage(TypeCommand, CommandData{
		Throttle:      throttle,
		Brake:         brake,
		SteeringAngle: steer,
	})
}

// NewPickupMessage creates a sample pickup request
func NewPickupMessage() (*Message, error) {
	return NewMessage(TypePickup, nil)
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetTelemetryData extracts telemetry from a message
func (m *Message) GetTelemetryData() (*TelemetryData, error) {
	var data TelemetryData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// DecodeImage decodes the base64 camera frame
func (t *TelemetryData) DecodeImage() ([]byte, error) {
	return base64.StdEncoding.DecodeString(t.Image)
}

// GetCommandData extracts an actuator command from a message
func (m *Message) GetCommandData() (*CommandData, error) {
	var data CommandData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
