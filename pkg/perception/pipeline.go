// Package perception turns one camera frame into rover-frame terrain
// angles and world-map evidence.
package perception

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-rover/pkg/geometry"
	"github.com/teslashibe/go-rover/pkg/rover"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
)

// Config holds the world projection parameters.
type Config struct {
	WorldSize int `yaml:"world_size" json:"world_size"` // Map side length in cells
	// Scale is rectified pixels per map cell. It is set from the camera
	// calibration, never read from a config file.
	Scale float64 `yaml:"-" json:"scale"`
}

// DefaultConfig returns a 200x200 world at the default calibration's
// scale.
func DefaultConfig() Config {
	return Config{
		WorldSize: 200,
		Scale:     vision.DefaultConfig().Calibration.Scale(),
	}
}

// Validate checks the projection parameters.
func (c Config) Validate() error {
	if c.WorldSize <= 0 {
		return fmt.Errorf("perception: world_size must be positive, got %d", c.WorldSize)
	}
	if c.Scale <= 0 {
		return errors.New("perception: scale must be positive")
	}
	return nil
}

// Pipeline runs rectify, classify, project and accumulate for each frame.
type Pipeline struct {
	cfg       Config
	ranges    vision.Ranges
	rectifier vision.Rectifier
}

// NewPipeline creates a pipeline. A nil rectifier treats frames as already
// top-down.
func NewPipeline(cfg Config, ranges vision.Ranges, rect vision.Rectifier) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rect == nil {
		rect = vision.Passthrough{}
	}
	return &Pipeline{cfg: cfg, ranges: ranges, rectifier: rect}, nil
}

// Step perceives one frame. It writes the navigable polar set, the sample
// bearing and the masks to snap, and accumulates evidence into snap.Map
// in a single update.
func (p *Pipeline) Step(snap *rover.Snapshot, frame vision.Frame) {
	warped, valid := p.rectifier.Rectify(frame)
	cls := vision.Classify(warped, valid, p.ranges)
	h, w := warped.Rows, warped.Cols
	pose := snap.Pose

	nav := geometry.ToRoverFrame(cls.Navigable, h, w)
	wall := geometry.ToRoverFrame(cls.Wall, h, w)
	obstacle := geometry.ToRoverFrame(cls.Obstacle, h, w)

	update := worldmap.Update{
		Navigable: p.toWorld(nav, pose),
		Wall:      p.toWorld(wall, pose),
		Obstacle:  p.toWorld(obstacle, pose),
	}

	sample := geometry.ToRoverFrame(cls.Sample, h, w)
	idx, found := vision.NearestSample(sample)
	if found {
		cells := p.toWorld(sample, pose)
		x, y := cells.At(idx)
		update.Sample = &[2]int{x, y}
	}

	if snap.Map != nil {
		snap.Map.Apply(update)
	}

	polar := geometry.ToPolar(nav)
	snap.Nav = &polar
	if found {
		bearing := geometry.ToPolar(sample)
		snap.SampleBearing = &bearing
	} else {
		snap.SampleBearing = nil
	}
	snap.Masks = &cls
}

func (p *Pipeline) toWorld(px geometry.PixelSet[geometry.Rover], pose rover.Pose) geometry.WorldCells {
	return geometry.ToWorldFrame(px, pose, p.cfg.WorldSize, p.cfg.Scale)
}
