package navigation

import (
	"time"

	"github.com/teslashibe/go-rover/pkg/rover"
)

// State is the controller mode. The variants below are the only
// implementations.
type State interface {
	rover.State
	isState()
}

// Forward drives toward the navigable terrain.
type Forward struct {
	Since time.Duration
}

// Stopped brakes, then turns in place until there is room to go.
type Stopped struct{}

// Stuck backs out with reversed steering.
type Stuck struct {
	Since time.Duration
}

// Collecting creeps toward a visible sample.
type Collecting struct {
	Since time.Duration
}

func (Forward) Mode() string    { return "forward" }
func (Stopped) Mode() string    { return "stop" }
func (Stuck) Mode() string      { return "stuck" }
func (Collecting) Mode() string { return "collect" }

func (Forward) isState()    {}
func (Stopped) isState()    {}
func (Stuck) isState()      {}
func (Collecting) isState() {}
