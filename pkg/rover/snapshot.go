// Package rover defines the per-tick rover state shared by the perception
// pipeline, the navigation controller and the mission loop.
package rover

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/geometry"
	"github.com/teslashibe/go-rover/pkg/vision"
	"github.com/teslashibe/go-rover/pkg/worldmap"
)

// Pose is the rover's world position and heading.
type Pose = geometry.Pose

// State is the controller's current mode. The navigation package owns the
// concrete variants.
type State interface {
	Mode() string
}

// Command is the actuator setpoint sent to the simulator.
type Command struct {
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Steer    float64 `json:"steering_angle"`
}

// Snapshot is everything one tick knows about the rover. The mission loop
// owns it; perception and navigation mutate it in turn.
type Snapshot struct {
	Pose     Pose
	Velocity float64
	// Elapsed is time since the mission's first telemetry message.
	Elapsed time.Duration

	State State

	// Nav is the navigable terrain in rover polar coordinates. Nil until
	// the first frame has been perceived.
	Nav *geometry.PolarSet
	// SampleBearing is the visible sample in rover polar coordinates. Nil
	// when no sample is in view.
	SampleBearing *geometry.PolarSet

	NearSample bool
	PickingUp  bool
	// SendPickup asks the mission loop to send a pickup request. The loop
	// clears it once sent.
	SendPickup bool

	// Command persists across ticks; fields the controller leaves alone
	// keep their previous value.
	Command Command

	SamplesLocated   int
	SamplesCollected int

	// Masks are the last frame's classification, kept for display.
	Masks *vision.Classification

	Map *worldmap.Map
}

// Status is the JSON view of a snapshot served to dashboards.
type Status struct {
	Pose             Pose    `json:"pose"`
	Velocity         float64 `json:"velocity"`
	ElapsedSeconds   float64 `json:"elapsed_s"`
	Mode             string  `json:"mode"`
	NavPixels        int     `json:"nav_pixels"`
	SampleVisible    bool    `json:"sample_visible"`
	NearSample       bool    `json:"near_sample"`
	PickingUp        bool    `json:"picking_up"`
	Command          Command `json:"command"`
	SamplesLocated   int     `json:"samples_located"`
	SamplesCollected int     `json:"samples_collected"`
}

// Status summarizes the snapshot.
func (s *Snapshot) Status() Status {
	st := Status{
		Pose:             s.Pose,
		Velocity:         s.Velocity,
		ElapsedSeconds:   s.Elapsed.Seconds(),
		SampleVisible:    s.SampleBearing != nil,
		NearSample:       s.NearSample,
		PickingUp:        s.PickingUp,
		Command:          s.Command,
		SamplesLocated:   s.SamplesLocated,
		SamplesCollected: s.SamplesCollected,
	}
	if s.State != nil {
		st.Mode = s.State.Mode()
	}
	if s.Nav != nil {
		st.NavPixels = s.Nav.Len()
	}
	return st
}
