// Package worldmap accumulates per-frame terrain evidence into a persistent
// square grid indexed by world cell.
package worldmap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/teslashibe/go-rover/pkg/geometry"
	"go.uber.org/multierr"
)

// ErrInvalidSize is returned for a non-positive map size.
var ErrInvalidSize = errors.New("worldmap: size must be positive")

// Cell holds the three evidence accumulators for one world cell.
type Cell struct {
	Navigable uint8 `json:"nav"`
	Obstacle  uint8 `json:"obs"`
	Sample    uint8 `json:"sample"`
}

// Weights are the per-frame evidence magnitudes. Gains add to and decays
// subtract from an accumulator; every result saturates in [0, 255].
type Weights struct {
	NavigableGain     int `yaml:"navigable_gain" json:"navigable_gain"`
	NavigableObsDecay int `yaml:"navigable_obstacle_decay" json:"navigable_obstacle_decay"`
	WallGain          int `yaml:"wall_gain" json:"wall_gain"`
	WallNavDecay      int `yaml:"wall_navigable_decay" json:"wall_navigable_decay"`
	ObstacleGain      int `yaml:"obstacle_gain" json:"obstacle_gain"`
	SampleValue       int `yaml:"sample_value" json:"sample_value"`
}

// DefaultWeights returns the tuned increments.
func DefaultWeights() Weights {
	return Weights{
		NavigableGain:     255,
		NavigableObsDecay: 100,
		WallGain:          255,
		WallNavDecay:      10,
		ObstacleGain:      160,
		SampleValue:       255,
	}
}

// Validate checks that every weight is a usable magnitude.
func (w Weights) Validate() error {
	var err error
	for _, f := range []struct {
		name string
		v    int
	}{
		{"navigable_gain", w.NavigableGain},
		{"navigable_obstacle_decay", w.NavigableObsDecay},
		{"wall_gain", w.WallGain},
		{"wall_navigable_decay", w.WallNavDecay},
		{"obstacle_gain", w.ObstacleGain},
		{"sample_value", w.SampleValue},
	} {
		if f.v < 0 || f.v > 255 {
			err = multierr.Append(err, fmt.Errorf("worldmap: weight %s must be in [0, 255], got %d", f.name, f.v))
		}
	}
	return err
}

// Update is one frame's worth of world-frame evidence.
type Update struct {
	Navigable geometry.WorldCells
	Wall      geometry.WorldCells
	Obstacle  geometry.WorldCells
	// Sample is the single nearest sample cell, if one was seen.
	Sample *[2]int
}

// Map is the persistent world grid. It is safe for concurrent use; each
// Apply is atomic with respect to readers.
type Map struct {
	mu      sync.RWMutex
	size    int
	weights Weights
	cells   []Cell // row-major, index y*size+x

	// visited[i] == pass marks cell i as touched by the current layer.
	visited []uint32
	pass    uint32
}

// New allocates a zeroed size x size map.
func New(size int, w Weights) (*Map, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}
	return &Map{
		size:    size,
		weights: w,
		cells:   make([]Cell, size*size),
		visited: make([]uint32, size*size),
	}, nil
}

// Size returns the side length in cells.
func (m *Map) Size() int {
	return m.size
}

// Cell returns the accumulators at (x, y). Out-of-range coordinates
// return the zero cell.
func (m *Map) Cell(x, y int) Cell {
	if x < 0 || y < 0 || x >= m.size || y >= m.size {
		return Cell{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cells[y*m.size+x]
}

// Apply accumulates one frame. Layers are applied in a fixed order:
// navigable, wall, obstacle, sample. Later layers win where cells overlap.
// Within a layer each cell is updated at most once per frame, however many
// pixels project onto it.
func (m *Map) Apply(u Update) {
	w := m.weights

	m.mu.Lock()
	defer m.mu.Unlock()

	m.eachCell(u.Navigable, func(c *Cell) {
		c.Navigable = saturate(int(c.Navigable) + w.NavigableGain)
		c.Obstacle = saturate(int(c.Obstacle) - w.NavigableObsDecay)
	})
	m.eachCell(u.Wall, func(c *Cell) {
		c.Obstacle = saturate(int(c.Obstacle) + w.WallGain)
		c.Navigable = saturate(int(c.Navigable) - w.WallNavDecay)
	})
	m.eachCell(u.Obstacle, func(c *Cell) {
		c.Obstacle = saturate(int(c.Obstacle) + w.ObstacleGain)
	})
	if u.Sample != nil {
		if c := m.at(u.Sample[0], u.Sample[1]); c != nil {
			c.Sample = saturate(w.SampleValue)
		}
	}
}

// eachCell calls fn once for every distinct in-range cell of cells. Must be
// called with mu held.
func (m *Map) eachCell(cells geometry.WorldCells, fn func(*Cell)) {
	m.pass++
	if m.pass == 0 {
		clear(m.visited)
		m.pass = 1
	}
	for i := 0; i < cells.Len(); i++ {
		x, y := cells.At(i)
		if x < 0 || y < 0 || x >= m.size || y >= m.size {
			continue
		}
		idx := y*m.size + x
		if m.visited[idx] == m.pass {
			continue
		}
		m.visited[idx] = m.pass
		fn(&m.cells[idx])
	}
}

// Snapshot returns a deep copy of the grid, row-major.
func (m *Map) Snapshot() []Cell {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Cell, len(m.cells))
	copy(out, m.cells)
	return out
}

// Restore replaces the whole grid. It is intended for start-up only.
func (m *Map) Restore(cells []Cell) error {
	if len(cells) != m.size*m.size {
		return fmt.Errorf("worldmap: restore %d cells into %dx%d map", len(cells), m.size, m.size)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.cells, cells)
	return nil
}

// at must be called with mu held. Cells outside the grid return nil;
// callers clamp upstream, so this only catches a mismatched world size.
func (m *Map) at(x, y int) *Cell {
	if x < 0 || y < 0 || x >= m.size || y >= m.size {
		return nil
	}
	return &m.cells[y*m.size+x]
}

func saturate(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
