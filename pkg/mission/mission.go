// Package mission runs the per-telemetry loop: perceive, decide, actuate,
// publish, and periodically persist the world map.
package mission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/bridge"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/rover"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
	"go.uber.org/multierr"
)

// Simulator is the link to the simulated rover. Implemented by
// bridge.Bridge.
type Simulator interface {
	Telemetry() <-chan bridge.Telemetry
	SendCommand(cmd rover.Command) error
	SendPickup() error
}

// Perceiver updates the snapshot from a camera frame. Implemented by
// perception.Pipeline.
type Perceiver interface {
	Step(snap *rover.Snapshot, frame vision.Frame)
}

// Decider chooses the next command. Implemented by navigation.Controller.
type Decider interface {
	Decide(snap *rover.Snapshot)
}

// Publisher receives every tick's status. Implemented by web.Server.
type Publisher interface {
	Publish(status rover.Status, masks *vision.Classification)
}

// Decoder turns the simulator's JPEG into an RGB frame.
type Decoder func(jpeg []byte) (vision.Frame, error)

// Mission owns the rover snapshot and drives one tick per telemetry
// message.
type Mission struct {
	id        string
	sim       Simulator
	perceiver Perceiver
	decider   Decider
	decode    Decoder
	// Expected decoded frame size; zero accepts any.
	width, height int

	worldMap  *worldmap.Map
	store     worldmap.SnapshotStore
	publisher Publisher
	interval  time.Duration

	logger *slog.Logger
	now    func() time.Time

	snap  rover.Snapshot
	start time.Time
	ticks int
}

// Option configures a Mission.
type Option func(*Mission)

// WithStore persists the map to s every interval and on shutdown, and
// restores the latest snapshot at start-up. A zero interval only persists
// on shutdown.
func WithStore(s worldmap.SnapshotStore, interval time.Duration) Option {
	return func(m *Mission) {
		m.store = s
		m.interval = interval
	}
}

// WithPublisher sends every tick's status to p.
func WithPublisher(p Publisher) Option {
	return func(m *Mission) {
		m.publisher = p
	}
}

// WithLogger sets the mission logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mission) {
		m.logger = l
	}
}

// WithFrameSize rejects decoded frames that are not width x height pixels.
func WithFrameSize(width, height int) Option {
	return func(m *Mission) {
		m.width = width
		m.height = height
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Mission) {
		m.now = now
	}
}

// New creates a mission. worldMap may be nil, in which case perception
// still steers the rover but nothing is accumulated.
func New(id string, sim Simulator, p Perceiver, d Decider, decode Decoder, worldMap *worldmap.Map, opts ...Option) *Mission {
	m := &Mission{
		id:        id,
		sim:       sim,
		perceiver: p,
		decider:   d,
		decode:    decode,
		worldMap:  worldMap,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = log.With("component", "mission", "mission", id)
	}
	m.snap.Map = worldMap
	return m
}

// ID returns the mission identifier.
func (m *Mission) ID() string {
	return m.id
}

// Snapshot returns a copy of the current rover snapshot. Only safe to call
// when Run is not executing.
func (m *Mission) Snapshot() rover.Snapshot {
	return m.snap
}

// Run processes telemetry until ctx is cancelled or the telemetry channel
// closes, then writes a final map snapshot.
func (m *Mission) Run(ctx context.Context) (err error) {
	if err := m.restore(); err != nil {
		return err
	}

	var tick <-chan time.Time
	if m.store != nil && m.worldMap != nil && m.interval > 0 {
		t := time.NewTicker(m.interval)
		defer t.Stop()
		tick = t.C
	}

	defer func() {
		err = multierr.Append(err, m.persist("shutdown"))
		m.logger.Info("mission stopped", "ticks", m.ticks)
	}()

	m.logger.Info("mission started")
	telemetry := m.sim.Telemetry()
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-telemetry:
			if !ok {
				return nil
			}
			m.Tick(t)
		case <-tick:
			if err := m.persist("periodic"); err != nil {
				m.logger.Warn("map snapshot failed", "error", err)
			}
		}
	}
}

// Tick runs one perceive, decide, actuate cycle for t.
func (m *Mission) Tick(t bridge.Telemetry) {
	if t.Data == nil {
		return
	}
	m.ticks++
	now := m.now()
	if m.start.IsZero() {
		m.start = now
	}

	d := t.Data
	snap := &m.snap
	snap.Pose = rover.Pose{X: d.X, Y: d.Y, Yaw: d.Yaw}
	snap.Velocity = d.Speed
	snap.Elapsed = now.Sub(m.start)
	snap.NearSample = d.NearSample
	snap.PickingUp = d.PickingUp
	snap.SamplesLocated = d.SamplesLocated
	snap.SamplesCollected = d.SamplesCollected

	if frame, err := m.frame(d); err != nil {
		m.logger.Warn("skipping perception", "error", err, "sim", t.SimID)
	} else {
		m.perceiver.Step(snap, frame)
	}

	m.decider.Decide(snap)

	if err := m.sim.SendCommand(snap.Command); err != nil {
		m.logger.Warn("send command failed", "error", err)
	}
	if snap.SendPickup && !snap.PickingUp {
		if err := m.sim.SendPickup(); err != nil {
			m.logger.Warn("send pickup failed", "error", err)
		} else {
			m.logger.Info("pickup requested", "x", snap.Pose.X, "y", snap.Pose.Y)
		}
	}
	snap.SendPickup = false

	if m.publisher != nil {
		m.publisher.Publish(snap.Status(), snap.Masks)
	}
}

func (m *Mission) frame(d *protocol.TelemetryData) (vision.Frame, error) {
	if d.Image == "" {
		return vision.Frame{}, fmt.Errorf("mission: telemetry has no image")
	}
	if m.decode == nil {
		return vision.Frame{}, fmt.Errorf("mission: no image decoder")
	}
	raw, err := d.DecodeImage()
	if err != nil {
		return vision.Frame{}, fmt.Errorf("decode image: %w", err)
	}
	frame, err := m.decode(raw)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if m.width > 0 && m.height > 0 && (frame.Cols != m.width || frame.Rows != m.height) {
		return vision.Frame{}, fmt.Errorf("mission: frame is %dx%d, want %dx%d", frame.Cols, frame.Rows, m.width, m.height)
	}
	return frame, nil
}

func (m *Mission) restore() error {
	if m.store == nil || m.worldMap == nil {
		return nil
	}
	ok, err := m.worldMap.RestoreLatest(m.store, m.id)
	if err != nil {
		return fmt.Errorf("restore map: %w", err)
	}
	if ok {
		m.logger.Info("map restored from snapshot")
	}
	return nil
}

func (m *Mission) persist(reason string) error {
	if m.store == nil || m.worldMap == nil {
		return nil
	}
	rec, err := m.worldMap.Persist(m.store, m.id, reason)
	if err != nil {
		return err
	}
	m.logger.Debug("map snapshot saved", "id", rec.ID, "reason", reason, "mapped", rec.Mapped)
	return nil
}
