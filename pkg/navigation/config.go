package navigation

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// ErrThresholdOrder is returned when the go threshold is below the stop
// threshold, which would make Stopped and Forward oscillate.
var ErrThresholdOrder = errors.New("navigation: go threshold must not be below stop threshold")

// Config holds all tunable parameters for the drive controller
type Config struct {
	// Actuators
	ThrottleSet float64 `yaml:"throttle_set" json:"throttle_set"` // Cruise throttle
	BrakeSet    float64 `yaml:"brake_set" json:"brake_set"`       // Brake applied when stopping
	MaxVel      float64 `yaml:"max_vel" json:"max_vel"`           // Coast above this speed (m/s)
	MaxSteer    float64 `yaml:"max_steer" json:"max_steer"`       // Steering limit (±degrees)

	// Navigable pixel counts
	StopThreshold int `yaml:"stop_forward" json:"stop_forward"` // Stop below this many navigable pixels
	GoThreshold   int `yaml:"go_forward" json:"go_forward"`     // Resume at or above this many

	// Timing
	Dwell time.Duration `yaml:"dwell" json:"dwell"` // Time in a mode before stuck/stop checks fire

	// Velocity thresholds (m/s)
	StuckVel   float64 `yaml:"stuck_vel" json:"stuck_vel"`     // |v| below this counts as stuck
	ReverseVel float64 `yaml:"reverse_vel" json:"reverse_vel"` // Counter-steer while |v| below this when backing out
	StopVel    float64 `yaml:"stop_vel" json:"stop_vel"`       // Keep braking while faster than this
}

// DefaultConfig returns the tuned simulator settings.
func DefaultConfig() Config {
	return Config{
		ThrottleSet: 0.2,
		BrakeSet:    10,
		MaxVel:      2,
		MaxSteer:    15,

		StopThreshold: 50,
		GoThreshold:   500,

		Dwell: 4 * time.Second,

		StuckVel:   0.01,
		ReverseVel: 0.05,
		StopVel:    0.2,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	var err error
	if c.GoThreshold < c.StopThreshold {
		err = multierr.Append(err, fmt.Errorf("%w (go %d, stop %d)", ErrThresholdOrder, c.GoThreshold, c.StopThreshold))
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"throttle_set", c.ThrottleSet},
		{"brake_set", c.BrakeSet},
		{"max_vel", c.MaxVel},
		{"max_steer", c.MaxSteer},
		{"stop_forward", float64(c.StopThreshold)},
		{"go_forward", float64(c.GoThreshold)},
		{"dwell", c.Dwell.Seconds()},
		{"stuck_vel", c.StuckVel},
		{"reverse_vel", c.ReverseVel},
		{"stop_vel", c.StopVel},
	} {
		if f.v < 0 {
			err = multierr.Append(err, fmt.Errorf("navigation: %s must not be negative, got %v", f.name, f.v))
		}
	}
	return err
}
