// Package navigation implements the rover's reactive drive controller: a
// four-mode state machine over navigable-terrain angles and vehicle speed.
package navigation

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/geometry"
	"github.com/teslashibe/go-rover/pkg/rover"
	"gonum.org/v1/gonum/stat"
)

// Controller decides throttle, brake and steering each tick.
type Controller struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// NewController validates cfg and returns a controller.
func NewController(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid navigation config: %w", err)
	}
	c := &Controller{cfg: cfg}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = log.With("component", "navigation")
	}
	return c, nil
}

// Config returns the controller's configuration.
func (c *Controller) Config() Config {
	return c.cfg
}

// Decide updates snap.Command, snap.State and snap.SendPickup for one tick.
// Command fields a mode does not set keep their previous values.
func (c *Controller) Decide(snap *rover.Snapshot) {
	cfg := c.cfg
	now := snap.Elapsed
	cmd := &snap.Command

	if snap.Nav == nil {
		// Nothing perceived yet: roll forward to get a first frame.
		cmd.Throttle = cfg.ThrottleSet
		cmd.Steer = 0
		cmd.Brake = 0
	} else {
		prev := snap.State
		snap.State = c.step(snap, now)
		if prev == nil || prev.Mode() != snap.State.Mode() {
			from := "none"
			if prev != nil {
				from = prev.Mode()
			}
			c.logger.Info("mode change", "from", from, "to", snap.State.Mode(), "t", now.Seconds())
		}
	}

	if snap.NearSample && !snap.PickingUp {
		cmd.Throttle = 0
		cmd.Brake = cfg.BrakeSet
		snap.SendPickup = true
		cmd.Brake = 0
	}

	c.logger.Debug("decide",
		"mode", modeOf(snap.State),
		"nav", navCount(snap.Nav),
		"vel", snap.Velocity,
		"throttle", cmd.Throttle,
		"brake", cmd.Brake,
		"steer", cmd.Steer,
	)
}

// step runs the mode logic and returns the next state.
func (c *Controller) step(snap *rover.Snapshot, now time.Duration) State {
	cfg := c.cfg
	cmd := &snap.Command
	nav := snap.Nav.Len()
	vel := snap.Velocity

	state, _ := snap.State.(State)
	if state == nil {
		state = Forward{}
	}

	switch s := state.(type) {
	case Forward:
		switch {
		case snap.SampleBearing != nil:
			return Collecting{Since: now}
		case now-s.Since > cfg.Dwell && math.Abs(vel) < cfg.StuckVel:
			return Stuck{Since: now}
		case nav >= cfg.StopThreshold:
			if vel < cfg.MaxVel {
				cmd.Throttle = cfg.ThrottleSet
			} else {
				cmd.Throttle = 0
			}
			cmd.Brake = 0
			cmd.Steer = c.SteerAngle(snap.Nav)
			return s
		default:
			cmd.Throttle = 0
			cmd.Brake = cfg.BrakeSet
			cmd.Steer = 0
			return Stopped{}
		}

	case Stopped:
		if vel > cfg.StopVel {
			cmd.Throttle = 0
			cmd.Brake = cfg.BrakeSet
			cmd.Steer = 0
			return s
		}
		if nav < cfg.GoThreshold {
			cmd.Throttle = 0
			cmd.Brake = 0
			cmd.Steer = -cfg.MaxSteer
		}
		if nav >= cfg.GoThreshold {
			cmd.Throttle = cfg.ThrottleSet
			cmd.Brake = 0
			cmd.Steer = c.SteerAngle(snap.Nav)
			return Forward{Since: now}
		}
		return s

	case Stuck:
		if math.Abs(vel) < cfg.ReverseVel {
			cmd.Steer = -c.SteerAngle(snap.Nav)
		}
		cmd.Throttle = -1.5 * cfg.ThrottleSet
		if now-s.Since > cfg.Dwell {
			cmd.Steer = 0
			return Stopped{}
		}
		return s

	case Collecting:
		cmd.Throttle = cfg.ThrottleSet / 2
		cmd.Brake = 0
		cmd.Steer = c.sampleSteer(snap.SampleBearing)

		var next State = s
		inMode := now - s.Since
		if math.Abs(vel) < cfg.StuckVel && inMode > cfg.Dwell {
			next = Stuck{Since: now}
		}
		if snap.SampleBearing == nil && inMode > cfg.Dwell {
			next = Stopped{}
		}
		return next
	}
	return state
}

// SteerAngle returns the distance-weighted mean navigable angle in degrees,
// clamped to the steering limit. Closer pixels weigh more (1/sqrt(dist)).
// No terrain, or terrain with no total distance, gives 0.
func (c *Controller) SteerAngle(nav *geometry.PolarSet) float64 {
	if nav == nil || nav.Len() == 0 {
		return 0
	}
	total := 0.0
	for _, d := range nav.Dist {
		total += d
	}
	if total <= 0 {
		return 0
	}

	angles := make([]float64, 0, nav.Len())
	weights := make([]float64, 0, nav.Len())
	for i, d := range nav.Dist {
		if d <= 0 {
			continue // weight undefined at the rover's own position
		}
		angles = append(angles, geometry.Degrees(nav.Angle[i]))
		weights = append(weights, 1/math.Sqrt(d))
	}
	return clamp(stat.Mean(angles, weights), -c.cfg.MaxSteer, c.cfg.MaxSteer)
}

// sampleSteer aims at the unweighted mean bearing of the visible sample.
func (c *Controller) sampleSteer(bearing *geometry.PolarSet) float64 {
	if bearing == nil || bearing.Len() == 0 {
		return 0
	}
	return clamp(stat.Mean(bearing.AnglesDegrees(), nil), -c.cfg.MaxSteer, c.cfg.MaxSteer)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func modeOf(s rover.State) string {
	if s == nil {
		return ""
	}
	return s.Mode()
}

func navCount(p *geometry.PolarSet) int {
	if p == nil {
		return -1
	}
	return p.Len()
}
