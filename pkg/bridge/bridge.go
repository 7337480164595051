// Package bridge provides the WebSocket endpoint the simulator connects to.
// Telemetry flows in, actuator commands and pickup requests flow out.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/rover"
)

// ErrNoSimulator is returned when sending with no simulator connected.
var ErrNoSimulator = errors.New("bridge: no simulator connected")

// SimConnection represents a connected simulator
type SimConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the simulator
func (s *SimConnection) Send(msg *protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	return s.Conn.WriteMessage(websocket.TextMessage, data)
}

// Telemetry is one received simulator tick.
type Telemetry struct {
	SimID    string
	Data     *protocol.TelemetryData
	Received time.Time
}

// Bridge manages WebSocket connections from simulators
type Bridge struct {
	mu     sync.RWMutex
	sims   map[string]*SimConnection
	logger *slog.Logger

	telemetry chan Telemetry

	// Stats
	messagesReceived  atomic.Uint64
	messagesSent      atomic.Uint64
	telemetryReceived atomic.Uint64
	telemetryDropped  atomic.Uint64
}

// New creates a bridge whose telemetry channel holds up to buffer ticks.
// When the buffer is full the oldest tick is dropped.
func New(buffer int, logger *slog.Logger) *Bridge {
	if buffer < 1 {
		buffer = 1
	}
	if logger == nil {
		logger = log.With("component", "bridge")
	}
	return &Bridge{
		sims:      make(map[string]*SimConnection),
		logger:    logger,
		telemetry: make(chan Telemetry, buffer),
	}
}

// Telemetry returns the channel of received telemetry.
func (b *Bridge) Telemetry() <-chan Telemetry {
	return b.telemetry
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (b *Bridge) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Simulator connection endpoint
	app.Get("/ws/sim", websocket.New(b.handleSim))
	app.Get("/ws/sim/:id", websocket.New(b.handleSim))
}

// handleSim handles a simulator WebSocket connection
func (b *Bridge) handleSim(c *websocket.Conn) {
	// Get simulator ID from path or generate one
	simID := c.Params("id")
	if simID == "" {
		simID = uuid.NewString()
	}

	sim := &SimConnection{
		ID:        simID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	b.mu.Lock()
	b.sims[simID] = sim
	simCount := len(b.sims)
	b.mu.Unlock()

	b.logger.Info("simulator connected", "sim", simID, "total", simCount)

	defer func() {
		b.mu.Lock()
		delete(b.sims, simID)
		simCount := len(b.sims)
		b.mu.Unlock()

		b.logger.Info("simulator disconnected", "sim", simID, "total", simCount)
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			b.logger.Debug("simulator read error", "sim", simID, "error", err)
			return
		}

		sim.mu.Lock()
		sim.LastSeen = time.Now()
		sim.mu.Unlock()

		b.messagesReceived.Add(1)
		b.handleMessage(simID, data)
	}
}

// handleMessage processes an incoming message from a simulator
func (b *Bridge) handleMessage(simID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		b.logger.Warn("parse error", "sim", simID, "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeTelemetry:
		tel, err := msg.GetTelemetryData()
		if err != nil {
			b.logger.Warn("bad telemetry", "sim", simID, "error", err)
			return
		}
		b.telemetryReceived.Add(1)
		b.deliver(Telemetry{SimID: simID, Data: tel, Received: time.Now()})

	case protocol.TypePing:
		// Respond with pong
		if err := b.SendPong(simID, msg.Timestamp); err != nil {
			b.logger.Debug("pong failed", "sim", simID, "error", err)
		}

	default:
		b.logger.Debug("ignoring message", "sim", simID, "type", msg.Type)
	}
}

// deliver enqueues t, discarding the oldest queued tick if the buffer is
// full. The reader never blocks on a slow consumer.
func (b *Bridge) deliver(t Telemetry) {
	for {
		select {
		case b.telemetry <- t:
			return
		default:
		}
		select {
		case <-b.telemetry:
			b.telemetryDropped.Add(1)
		default:
		}
	}
}

// SendCommand sends the actuator command to every connected simulator
func (b *Bridge) SendCommand(cmd rover.Command) error {
	msg, err := protocol.NewCommandMessage(cmd.Throttle, cmd.Brake, cmd.Steer)
	if err != nil {
		return err
	}
	return b.broadcast(msg)
}

// SendPickup asks every connected simulator to pick up the nearby sample
func (b *Bridge) SendPickup() error {
	msg, err := protocol.NewPickupMessage()
	if err != nil {
		return err
	}
	return b.broadcast(msg)
}

// SendPong sends a pong response to a simulator
func (b *Bridge) SendPong(simID string, pingTS int64) error {
	msg, err := protocol.NewPongMessage("", pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return b.sendToSim(simID, msg)
}

// sendToSim sends a message to a specific simulator
func (b *Bridge) sendToSim(simID string, msg *protocol.Message) error {
	b.mu.RLock()
	sim, ok := b.sims[simID]
	b.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "simulator not connected")
	}

	b.messagesSent.Add(1)
	return sim.Send(msg)
}

// broadcast sends msg to all connected simulators and returns the first
// send error, or ErrNoSimulator if none are connected.
func (b *Bridge) broadcast(msg *protocol.Message) error {
	sims := b.GetSims()
	if len(sims) == 0 {
		return ErrNoSimulator
	}

	var firstErr error
	for _, sim := range sims {
		b.messagesSent.Add(1)
		if err := sim.Send(msg); err != nil {
			b.logger.Warn("send failed", "sim", sim.ID, "type", msg.Type, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("send %s to %s: %w", msg.Type, sim.ID, err)
			}
		}
	}
	return firstErr
}

// GetSims returns all connected simulators
func (b *Bridge) GetSims() []*SimConnection {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sims := make([]*SimConnection, 0, len(b.sims))
	for _, s := range b.sims {
		sims = append(sims, s)
	}
	return sims
}

// SimCount returns the number of connected simulators
func (b *Bridge) SimCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sims)
}

// Stats contains bridge statistics
type Stats struct {
	SimCount          int    `json:"sim_count"`
	MessagesReceived  uint64 `json:"messages_received"`
	MessagesSent      uint64 `json:"messages_sent"`
	TelemetryReceived uint64 `json:"telemetry_received"`
	TelemetryDropped  uint64 `json:"telemetry_dropped"`
}

// GetStats returns bridge statistics
func (b *Bridge) GetStats() Stats {
	return Stats{
		SimCount:          b.SimCount(),
		MessagesReceived:  b.messagesReceived.Load(),
		MessagesSent:      b.messagesSent.Load(),
		TelemetryReceived: b.telemetryReceived.Load(),
		TelemetryDropped:  b.telemetryDropped.Load(),
	}
}

// SimInfo contains info about a connected simulator
type SimInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetSimInfos returns info about all connected simulators
func (b *Bridge) GetSimInfos() []SimInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	infos := make([]SimInfo, 0, len(b.sims))
	for _, s := range b.sims {
		s.mu.Lock()
		infos = append(infos, SimInfo{
			ID:        s.ID,
			Connected: s.Connected,
			LastSeen:  s.LastSeen,
		})
		s.mu.Unlock()
	}
	return infos
}

// RegisterAPIRoutes registers API routes for simulator management
func (b *Bridge) RegisterAPIRoutes(api fiber.Router) {
	sims := api.Group("/sims")

	// List connected simulators
	sims.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"sims":  b.GetSimInfos(),
			"count": b.SimCount(),
		})
	})

	// Get bridge stats
	sims.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(b.GetStats())
	})
}

// Serve listens on addr until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context, addr string) error {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "go-rover bridge",
	})
	b.RegisterRoutes(app)
	b.RegisterAPIRoutes(app.Group("/api"))

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("bridge listening", "addr", addr)
		errCh <- app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		return app.Shutdown()
	case err := <-errCh:
		return fmt.Errorf("bridge listen: %w", err)
	}
}
