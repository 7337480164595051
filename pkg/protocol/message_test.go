package protocol

import (
	"bytes"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    interface{}
		wantErr bool
	}{
		{
			name:    "telemetry message",
			msgType: TypeTelemetry,
			data:    TelemetryData{X: 99.7, Y: 85.6, Yaw: 56.8, Speed: 0.4},
			wantErr: false,
		},
		{
			name:    "command message",
			msgType: TypeCommand,
			data:    CommandData{Throttle: 0.2, SteeringAngle: -15},
			wantErr: false,
		},
		{
			name:    "nil data",
			msgType: TypePickup,
			data:    nil,
			wantErr: false,
		},
		{
			name:    "unmarshalable data",
			msgType: TypeCommand,
			data:    make(chan int),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			if msg == nil {
				t.Error("NewMessage() returned nil message")
				return
			}
			if msg.Type != tt.msgType {
				t.Errorf("NewMessage() type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("NewMessage() timestamp should be set")
			}
		})
	}
}

func TestTelemetryRoundTrip(t *testing.T) {
	jpegData := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10} // Fake JPEG header
	original := TelemetryData{
		X:                99.7,
		Y:                85.6,
		Yaw:              56.8,
		Pitch:            0.4,
		Roll:             359.9,
		Speed:            1.2,
		Throttle:         0.2,
		SteeringAngle:    -4.5,
		NearSample:       true,
		SamplesLocated:   2,
		SamplesCollected: 1,
	}

	msg, err := NewTelemetryMessage(original, jpegData)
	if err != nil {
		t.Fatalf("NewTelemetryMessage() error = %v", err)
	}

	// Serialize to bytes
	raw, err := msg.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}

	// Parse back
	parsed, err := ParseMessage(raw)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeTelemetry {
		t.Errorf("Type = %v, want %v", parsed.Type, TypeTelemetry)
	}

	tel, err := parsed.GetTelemetryData()
	if err != nil {
		t.Fatalf("GetTelemetryData() error = %v", err)
	}
	if tel.X != original.X || tel.Y != original.Y || tel.Yaw != original.Yaw {
		t.Errorf("pose = (%v, %v, %v), want (%v, %v, %v)", tel.X, tel.Y, tel.Yaw, original.X, original.Y, original.Yaw)
	}
	if !tel.NearSample {
		t.Error("NearSample should be true")
	}
	if tel.SamplesLocated != 2 || tel.SamplesCollected != 1 {
		t.Errorf("samples = %d/%d, want 2/1", tel.SamplesLocated, tel.SamplesCollected)
	}

	decoded, err := tel.DecodeImage()
	if err != nil {
		t.Fatalf("DecodeImage() error = %v", err)
	}
	if !bytes.Equal(decoded, jpegData) {
		t.Errorf("DecodeImage() = %x, want %x", decoded, jpegData)
	}
}

func TestCommandMessage(t *testing.T) {
	msg, err := NewCommandMessage(0.2, 0, -15)
	if err != nil {
		t.Fatalf("NewCommandMessage() error = %v", err)
	}

	if msg.Type != TypeCommand {
		t.Errorf("Type = %v, want %v", msg.Type, TypeCommand)
	}

	cmd, err := msg.GetCommandData()
	if err != nil {
		t.Fatalf("GetCommandData() error = %v", err)
	}
	if cmd.Throttle != 0.2 {
		t.Errorf("Throttle = %v, want 0.2", cmd.Throttle)
	}
	if cmd.SteeringAngle != -15 {
		t.Errorf("SteeringAngle = %v, want -15", cmd.SteeringAngle)
	}
}

func TestPickupMessage(t *testing.T) {
	msg, err := NewPickupMessage()
	if err != nil {
		t.Fatalf("NewPickupMessage() error = %v", err)
	}
	if msg.Type != TypePickup {
		t.Errorf("Type = %v, want %v", msg.Type, TypePickup)
	}
	if msg.Data != nil {
		t.Errorf("Data = %s, want none", msg.Data)
	}
}

func TestParseMessageInvalid(t *testing.T) {
	if _, err := ParseMessage([]byte("{not json")); err == nil {
		t.Error("ParseMessage() should fail on invalid JSON")
	}
}

func TestPingPongMessage(t *testing.T) {
	pingMsg, err := NewPingMessage("test-123")
	if err != nil {
		t.Fatalf("NewPingMessage() error = %v", err)
	}

	if pingMsg.Type != TypePing {
		t.Errorf("Type = %v, want %v", pingMsg.Type, TypePing)
	}

	pingData, err := pingMsg.GetPingData()
	if err != nil {
		t.Fatalf("GetPingData() error = %v", err)
	}

	if pingData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pingData.ID)
	}

	// Create pong response
	now := time.Now().UnixMilli()
	pongMsg, err := NewPongMessage("test-123", pingMsg.Timestamp, now)
	if err != nil {
		t.Fatalf("NewPongMessage() error = %v", err)
	}

	if pongMsg.Type != TypePong {
		t.Errorf("Type = %v, want %v", pongMsg.Type, TypePong)
	}

	pongData, err := pongMsg.GetPongData()
	if err != nil {
		t.Fatalf("GetPongData() error = %v", err)
	}

	if pongData.ID != "test-123" {
		t.Errorf("ID = %v, want test-123", pongData.ID)
	}
	if pongData.LatencyMs < 0 {
		t.Errorf("LatencyMs = %v, should be >= 0", pongData.LatencyMs)
	}
}
