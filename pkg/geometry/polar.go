package geometry

import (
	"fmt"
	"math"
)

// PolarSet holds rover-frame points as distance/angle pairs.
// Angles are radians in (-π, π].
type PolarSet struct {
	Dist  []float64
	Angle []float64
}

// NewPolarSet builds a PolarSet, rejecting sequences of different length.
func NewPolarSet(dist, angle []float64) (PolarSet, error) {
	if len(dist) != len(angle) {
		return PolarSet{}, fmt.Errorf("%w: dist=%d angle=%d", ErrLengthMismatch, len(dist), len(angle))
	}
	return PolarSet{Dist: dist, Angle: angle}, nil
}

// Len returns the number of points.
func (p PolarSet) Len() int {
	return len(p.Dist)
}

// AnglesDegrees returns a copy of the angles converted to degrees.
func (p PolarSet) AnglesDegrees() []float64 {
	out := make([]float64, len(p.Angle))
	for i, a := range p.Angle {
		out[i] = Degrees(a)
	}
	return out
}

// ToPolar converts rover-frame points to distance and angle.
func ToPolar(p PixelSet[Rover]) PolarSet {
	out := PolarSet{
		Dist:  make([]float64, p.Len()),
		Angle: make([]float64, p.Len()),
	}
	for i := range p.X {
		x, y := p.X[i], p.Y[i]
		out.Dist[i] = math.Sqrt(x*x + y*y)
		out.Angle[i] = math.Atan2(y, x)
	}
	return out
}

// FromPolar is the inverse of ToPolar.
func FromPolar(p PolarSet) PixelSet[Rover] {
	out := PixelSet[Rover]{
		X: make([]float64, p.Len()),
		Y: make([]float64, p.Len()),
	}
	for i := range p.Dist {
		out.X[i] = p.Dist[i] * math.Cos(p.Angle[i])
		out.Y[i] = p.Dist[i] * math.Sin(p.Angle[i])
	}
	return out
}

// Degrees converts radians to degrees.
func Degrees(radians float64) float64 {
	return radians * 180.0 / math.Pi
}

// Radians converts degrees to radians.
func Radians(degrees float64) float64 {
	return degrees * math.Pi / 180.0
}
