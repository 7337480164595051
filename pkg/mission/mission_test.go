package mission

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rover/pkg/bridge"
	"github.com/teslashibe/go-rover/pkg/navigation"
	"github.com/teslashibe/go-rover/pkg/perception"
	"github.com/teslashibe/go-rover/pkg/protocol"
	"github.com/teslashibe/go-rover/pkg/rover"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
)

type fakeSim struct {
	ch       chan bridge.Telemetry
	commands []rover.Command
	pickups  int
	sendErr  error
}

func newFakeSim() *fakeSim {
	return &fakeSim{ch: make(chan bridge.Telemetry, 8)}
}

func (f *fakeSim) Telemetry() <-chan bridge.Telemetry { return f.ch }

func (f *fakeSim) SendCommand(cmd rover.Command) error {
	f.commands = append(f.commands, cmd)
	return f.sendErr
}

func (f *fakeSim) SendPickup() error {
	f.pickups++
	return f.sendErr
}

type recordingPublisher struct {
	statuses []rover.Status
	masks    []*vision.Classification
}

func (p *recordingPublisher) Publish(s rover.Status, m *vision.Classification) {
	p.statuses = append(p.statuses, s)
	p.masks = append(p.masks, m)
}

type memStore struct {
	mu   sync.Mutex
	recs []*worldmap.SnapshotRecord
	err  error
}

func (s *memStore) InsertMapSnapshot(rec *worldmap.SnapshotRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, rec)
	return nil
}

func (s *memStore) LatestMapSnapshot(missionID string) (*worldmap.SnapshotRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.recs) - 1; i >= 0; i-- {
		if s.recs[i].MissionID == missionID {
			return s.recs[i], nil
		}
	}
	return nil, nil
}

func (s *memStore) reasons() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.recs {
		out = append(out, r.Reason)
	}
	return out
}

// brightDecoder ignores the payload and returns a fully navigable frame.
func brightDecoder(rows, cols int) Decoder {
	return func([]byte) (vision.Frame, error) {
		f := vision.NewFrame(rows, cols)
		f.Fill(vision.RGB{200, 200, 200})
		return f, nil
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func telemetry(d protocol.TelemetryData) bridge.Telemetry {
	if d.Image == "" {
		d.Image = base64.StdEncoding.EncodeToString([]byte{0xFF, 0xD8})
	}
	return bridge.Telemetry{SimID: "sim", Data: &d, Received: time.Now()}
}

func newTestMission(t *testing.T, sim *fakeSim, decode Decoder, opts ...Option) (*Mission, *worldmap.Map) {
	t.Helper()
	wm, err := worldmap.New(20, worldmap.DefaultWeights())
	require.NoError(t, err)
	p, err := perception.NewPipeline(perception.Config{WorldSize: 20, Scale: 1}, vision.DefaultRanges(), nil)
	require.NoError(t, err)
	c, err := navigation.NewController(navigation.DefaultConfig())
	require.NoError(t, err)
	return New("m-1", sim, p, c, decode, wm, opts...), wm
}

func TestTickPerceivesAndCommands(t *testing.T) {
	sim := newFakeSim()
	pub := &recordingPublisher{}
	clock := &fakeClock{t: time.Unix(100, 0)}
	m, wm := newTestMission(t, sim, brightDecoder(2, 4), WithPublisher(pub), WithClock(clock.now))

	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10, Speed: 0.5, SamplesLocated: 1}))
	clock.t = clock.t.Add(1500 * time.Millisecond)
	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10, Speed: 0.5, SamplesLocated: 1}))

	snap := m.Snapshot()
	assert.Equal(t, 1500*time.Millisecond, snap.Elapsed)
	assert.Equal(t, 0.5, snap.Velocity)
	assert.Equal(t, 1, snap.SamplesLocated)
	require.NotNil(t, snap.Nav)
	assert.Equal(t, 8, snap.Nav.Len())

	// Evidence lands ahead of the rover.
	assert.Equal(t, uint8(255), wm.Cell(11, 10).Navigable)

	require.Len(t, sim.commands, 2)
	assert.Len(t, pub.statuses, 2)
	assert.Equal(t, 1.5, pub.statuses[1].ElapsedSeconds)
	assert.NotNil(t, pub.masks[1])
}

func TestTickSkipsPerceptionOnDecodeError(t *testing.T) {
	sim := newFakeSim()
	failing := func([]byte) (vision.Frame, error) { return vision.Frame{}, errors.New("corrupt jpeg") }
	m, wm := newTestMission(t, sim, failing)

	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10}))

	snap := m.Snapshot()
	assert.Nil(t, snap.Nav)
	assert.Equal(t, worldmap.Cell{}, wm.Cell(11, 10))

	// The controller still runs: with nothing perceived it rolls forward.
	require.Len(t, sim.commands, 1)
	assert.Equal(t, navigation.DefaultConfig().ThrottleSet, sim.commands[0].Throttle)
}

func TestTickRejectsWrongFrameSize(t *testing.T) {
	sim := newFakeSim()
	m, wm := newTestMission(t, sim, brightDecoder(2, 4), WithFrameSize(320, 160))

	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10}))

	assert.Nil(t, m.Snapshot().Nav)
	assert.Equal(t, worldmap.Cell{}, wm.Cell(11, 10))
	assert.Len(t, sim.commands, 1, "the rover is still commanded")
}

func TestTickAcceptsMatchingFrameSize(t *testing.T) {
	sim := newFakeSim()
	// 2 rows by 4 columns is a 4x2 frame.
	m, wm := newTestMission(t, sim, brightDecoder(2, 4), WithFrameSize(4, 2))

	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10}))

	require.NotNil(t, m.Snapshot().Nav)
	assert.Equal(t, uint8(255), wm.Cell(11, 10).Navigable)
}

func TestTickWithoutImage(t *testing.T) {
	sim := newFakeSim()
	m, _ := newTestMission(t, sim, brightDecoder(2, 4))

	tel := bridge.Telemetry{Data: &protocol.TelemetryData{}}
	m.Tick(tel)

	assert.Nil(t, m.Snapshot().Nav)
	assert.Len(t, sim.commands, 1)

	m.Tick(bridge.Telemetry{})
	assert.Len(t, sim.commands, 1, "ticks without data are ignored")
}

func TestTickSendsPickupOnce(t *testing.T) {
	sim := newFakeSim()
	m, _ := newTestMission(t, sim, brightDecoder(2, 4))

	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10, NearSample: true}))
	assert.Equal(t, 1, sim.pickups)
	assert.False(t, m.Snapshot().SendPickup)
	assert.Equal(t, 0.0, sim.commands[0].Throttle)

	// Simulator reports the pickup in progress.
	m.Tick(telemetry(protocol.TelemetryData{X: 10, Y: 10, NearSample: true, PickingUp: true}))
	assert.Equal(t, 1, sim.pickups)
}

func TestTickClearsPickupWhenSendFails(t *testing.T) {
	sim := newFakeSim()
	sim.sendErr = bridge.ErrNoSimulator
	m, _ := newTestMission(t, sim, brightDecoder(2, 4))

	m.Tick(telemetry(protocol.TelemetryData{NearSample: true}))
	assert.Equal(t, 1, sim.pickups)
	assert.False(t, m.Snapshot().SendPickup)
}

func TestRunPersistsOnShutdown(t *testing.T) {
	sim := newFakeSim()
	store := &memStore{}
	m, wm := newTestMission(t, sim, brightDecoder(2, 4), WithStore(store, 0))

	sim.ch <- telemetry(protocol.TelemetryData{X: 10, Y: 10})
	close(sim.ch)

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, []string{"shutdown"}, store.reasons())

	cells, err := worldmap.Decode(store.recs[0].Blob)
	require.NoError(t, err)
	assert.Equal(t, wm.Snapshot(), cells)
}

func TestRunPeriodicSnapshots(t *testing.T) {
	sim := newFakeSim()
	store := &memStore{}
	m, _ := newTestMission(t, sim, brightDecoder(2, 4), WithStore(store, 10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	time.Sleep(55 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	reasons := store.reasons()
	require.GreaterOrEqual(t, len(reasons), 2)
	assert.Equal(t, "periodic", reasons[0])
	assert.Equal(t, "shutdown", reasons[len(reasons)-1])
}

func TestRunRestoresMap(t *testing.T) {
	prev, err := worldmap.New(20, worldmap.DefaultWeights())
	require.NoError(t, err)
	prev.Apply(worldmap.Update{Sample: &[2]int{3, 4}})
	store := &memStore{}
	_, err = prev.Persist(store, "m-1", "shutdown")
	require.NoError(t, err)

	sim := newFakeSim()
	close(sim.ch)
	m, wm := newTestMission(t, sim, brightDecoder(2, 4), WithStore(store, 0))

	require.NoError(t, m.Run(context.Background()))
	assert.Equal(t, uint8(255), wm.Cell(3, 4).Sample)
}

func TestRunRestoreSizeMismatch(t *testing.T) {
	small, err := worldmap.New(5, worldmap.DefaultWeights())
	require.NoError(t, err)
	store := &memStore{}
	_, err = small.Persist(store, "m-1", "shutdown")
	require.NoError(t, err)

	sim := newFakeSim()
	m, _ := newTestMission(t, sim, brightDecoder(2, 4), WithStore(store, 0))

	err = m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "restore map")
}

func TestRunReturnsShutdownPersistError(t *testing.T) {
	sim := newFakeSim()
	close(sim.ch)
	store := &memStore{err: errors.New("disk full")}
	m, _ := newTestMission(t, sim, brightDecoder(2, 4), WithStore(store, 0))

	err := m.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestNewDefaults(t *testing.T) {
	m := New("abc", newFakeSim(), nil, nil, nil, nil)
	assert.Equal(t, "abc", m.ID())
	assert.Nil(t, m.Snapshot().Map)

	wm, err := worldmap.New(4, worldmap.DefaultWeights())
	require.NoError(t, err)
	m = New("abc", newFakeSim(), nil, nil, nil, wm)
	assert.Same(t, wm, m.Snapshot().Map)
}
