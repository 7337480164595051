package perception

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teslashibe/go-rover/pkg/geometry"
	"github.com/teslashibe/go-rover/pkg/rover"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
)

// blankRectifier models a warp that produced nothing usable.
type blankRectifier struct{}

func (blankRectifier) Rectify(f vision.Frame) (vision.Frame, vision.Mask) {
	return vision.NewFrame(f.Rows, f.Cols), vision.NewMask(f.Rows, f.Cols)
}

var (
	ground = vision.RGB{200, 200, 200}
	rock   = vision.RGB{90, 70, 50}
	sample = vision.RGB{200, 180, 10}
)

func newSnapshot(t *testing.T, size int) *rover.Snapshot {
	t.Helper()
	m, err := worldmap.New(size, worldmap.DefaultWeights())
	require.NoError(t, err)
	return &rover.Snapshot{Map: m, Pose: rover.Pose{X: 10, Y: 10}}
}

func newPipeline(t *testing.T, rect vision.Rectifier) *Pipeline {
	t.Helper()
	p, err := NewPipeline(Config{WorldSize: 20, Scale: 1}, vision.DefaultRanges(), rect)
	require.NoError(t, err)
	return p
}

func TestNewPipelineValidates(t *testing.T) {
	t.Parallel()

	_, err := NewPipeline(Config{WorldSize: 0, Scale: 10}, vision.DefaultRanges(), nil)
	assert.Error(t, err)
	_, err = NewPipeline(Config{WorldSize: 10, Scale: 0}, vision.DefaultRanges(), nil)
	assert.Error(t, err)
	require.NoError(t, DefaultConfig().Validate())
}

func TestStepDegenerateFrame(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 20)
	before := snap.Map.Snapshot()
	p := newPipeline(t, blankRectifier{})

	frame := vision.NewFrame(4, 6)
	frame.Fill(ground)
	p.Step(snap, frame)

	require.NotNil(t, snap.Nav, "perception ran, so Nav is set even when empty")
	assert.Equal(t, 0, snap.Nav.Len())
	assert.Nil(t, snap.SampleBearing)
	require.NotNil(t, snap.Masks)
	assert.False(t, snap.Masks.Navigable.Any())
	assert.False(t, snap.Masks.Wall.Any())
	assert.False(t, snap.Masks.Obstacle.Any())
	assert.False(t, snap.Masks.Sample.Any())
	assert.Equal(t, before, snap.Map.Snapshot())
}

func TestStepAccumulatesEvidence(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 20)
	p := newPipeline(t, nil)

	// 2x4 frame: bottom row is ground, top row is rock.
	frame := vision.NewFrame(2, 4)
	for col := 0; col < 4; col++ {
		frame.Set(0, col, rock)
		frame.Set(1, col, ground)
	}
	p.Step(snap, frame)

	require.NotNil(t, snap.Nav)
	assert.Equal(t, 4, snap.Nav.Len())
	assert.Nil(t, snap.SampleBearing)

	// Bottom row sits at x=1 in rover frame; y from 2 down to -1.
	// Pose (10,10) yaw 0, scale 1: cells (11, 12), (11, 11), (11, 10), (11, 9).
	for _, y := range []int{12, 11, 10, 9} {
		assert.Equal(t, uint8(255), snap.Map.Cell(11, y).Navigable, "nav at (11,%d)", y)
	}
	// Top row at x=2: wall then derived obstacle.
	for _, y := range []int{12, 11, 10, 9} {
		c := snap.Map.Cell(12, y)
		assert.Equal(t, uint8(255), c.Obstacle, "obstacle at (12,%d)", y)
		assert.Equal(t, uint8(0), c.Navigable)
	}
}

func TestStepSampleBearingSetAndCleared(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 20)
	p := newPipeline(t, nil)

	frame := vision.NewFrame(3, 4)
	frame.Fill(ground)
	frame.Set(0, 1, sample) // rover (3, 1)
	frame.Set(1, 3, sample) // rover (2, -1), nearest

	p.Step(snap, frame)

	require.NotNil(t, snap.SampleBearing)
	assert.Equal(t, 2, snap.SampleBearing.Len())
	// Only the nearest sample pixel is marked: (10+2, 10-1).
	assert.Equal(t, uint8(255), snap.Map.Cell(12, 9).Sample)
	assert.Equal(t, uint8(0), snap.Map.Cell(13, 11).Sample)

	frame.Fill(ground)
	p.Step(snap, frame)
	assert.Nil(t, snap.SampleBearing, "bearing must clear once the sample is out of view")
	assert.Equal(t, uint8(255), snap.Map.Cell(12, 9).Sample, "located samples stay on the map")
}

func TestStepRotatesWithYaw(t *testing.T) {
	t.Parallel()

	snap := newSnapshot(t, 20)
	snap.Pose.Yaw = 90
	p := newPipeline(t, nil)

	frame := vision.NewFrame(1, 2)
	frame.Set(0, 1, ground) // rover (1, 0)
	p.Step(snap, frame)

	// Facing +y, one pixel ahead lands at (10, 11).
	assert.Equal(t, uint8(255), snap.Map.Cell(10, 11).Navigable)

	want := geometry.ToPolar(geometry.PixelSet[geometry.Rover]{X: []float64{1}, Y: []float64{0}})
	assert.Equal(t, want, *snap.Nav)
}

func TestStepTransientWallKeepsNavigableConfidence(t *testing.T) {
	t.Parallel()

	m, err := worldmap.New(200, worldmap.DefaultWeights())
	require.NoError(t, err)
	snap := &rover.Snapshot{Map: m, Pose: rover.Pose{X: 100, Y: 100}}
	p, err := NewPipeline(DefaultConfig(), vision.DefaultRanges(), nil)
	require.NoError(t, err)

	// At 10 pixels per cell, dozens of pixels of a 20x20 frame land in
	// cell (101, 100).
	frame := vision.NewFrame(20, 20)

	frame.Fill(ground)
	p.Step(snap, frame)
	assert.Equal(t, worldmap.Cell{Navigable: 255}, m.Cell(101, 100))

	frame.Fill(rock)
	p.Step(snap, frame)
	assert.Equal(t, worldmap.Cell{Navigable: 245, Obstacle: 255}, m.Cell(101, 100))

	frame.Fill(ground)
	p.Step(snap, frame)
	assert.Equal(t, worldmap.Cell{Navigable: 255, Obstacle: 155}, m.Cell(101, 100))
}
