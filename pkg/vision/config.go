package vision

import (
	"errors"
	"fmt"

	"github.com/golang/geo/r2"
)

// Calibration describes the perspective warp from the camera image to a
// top-down grid. Source points were picked by hand from a calibration image
// of a 1m grid square; the destination square is DstSize pixels on a side,
// centred horizontally and BottomOffset pixels above the image bottom.
type Calibration struct {
	Source       [4]r2.Point `yaml:"source" json:"source"`
	DstSize      float64     `yaml:"dst_size" json:"dst_size"`
	BottomOffset float64     `yaml:"bottom_offset" json:"bottom_offset"`
}

// Destination returns the four warp destination points for a frame of the
// given size, in the same order as Source.
func (c Calibration) Destination(rows, cols int) [4]r2.Point {
	cx := float64(cols) / 2
	bottom := float64(rows) - c.BottomOffset
	top := float64(rows) - 2*c.DstSize - c.BottomOffset
	return [4]r2.Point{
		{X: cx - c.DstSize, Y: bottom},
		{X: cx + c.DstSize, Y: bottom},
		{X: cx + c.DstSize, Y: top},
		{X: cx - c.DstSize, Y: top},
	}
}

// Scale is the number of rectified pixels per world-map cell.
func (c Calibration) Scale() float64 {
	return 2 * c.DstSize
}

// Config holds camera geometry and classification thresholds.
type Config struct {
	Width       int         `yaml:"width" json:"width"`
	Height      int         `yaml:"height" json:"height"`
	Calibration Calibration `yaml:"calibration" json:"calibration"`
	Ranges      Ranges      `yaml:"ranges" json:"ranges"`
}

// DefaultConfig returns the simulator camera setup: 320x160 frames.
func DefaultConfig() Config {
	return Config{
		Width:  320,
		Height: 160,
		Calibration: Calibration{
			Source:       [4]r2.Point{{X: 14, Y: 140}, {X: 301, Y: 140}, {X: 200, Y: 96}, {X: 118, Y: 96}},
			DstSize:      5,
			BottomOffset: 6,
		},
		Ranges: DefaultRanges(),
	}
}

// Validate checks the camera geometry.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("vision: frame size must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Calibration.DstSize <= 0 {
		return errors.New("vision: calibration dst_size must be positive")
	}
	return nil
}
