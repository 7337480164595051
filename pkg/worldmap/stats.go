package worldmap

import (
	"math"

	"github.com/teslashibe/go-rover/pkg/geometry"
	"gonum.org/v1/gonum/floats"
)

// Stats scores the map against a ground-truth navigability mask.
type Stats struct {
	// Cells with any navigable evidence.
	NavigableCells int `json:"navigable_cells"`
	// Cells with any obstacle evidence.
	ObstacleCells int `json:"obstacle_cells"`
	// Cells with a located sample.
	SampleCells int `json:"sample_cells"`
	// Percent of ground-truth navigable cells that the map marks navigable.
	// Zero without ground truth.
	Mapped float64 `json:"mapped_pct"`
	// Percent of map-navigable cells that are navigable in ground truth.
	Fidelity float64 `json:"fidelity_pct"`
}

// Stats computes coverage and accuracy. truth is indexed (row=y, col=x)
// and may be nil; a truth mask of a different size is ignored.
func (m *Map) Stats(truth geometry.Mask) Stats {
	cells := m.Snapshot()
	nav := make([]float64, len(cells))
	var s Stats
	for i, c := range cells {
		if c.Navigable > 0 {
			nav[i] = 1
			s.NavigableCells++
		}
		if c.Obstacle > 0 {
			s.ObstacleCells++
		}
		if c.Sample > 0 {
			s.SampleCells++
		}
	}
	if truth == nil {
		return s
	}
	rows, cols := truth.Bounds()
	if rows != m.size || cols != m.size {
		return s
	}

	gt := make([]float64, len(cells))
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if truth.Nonzero(y, x) {
				gt[y*m.size+x] = 1
			}
		}
	}

	good := floats.Dot(nav, gt)
	if total := floats.Sum(gt); total > 0 {
		s.Mapped = round1(100 * good / total)
	}
	if total := floats.Sum(nav); total > 0 {
		s.Fidelity = round1(100 * good / total)
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
