// Package geometry maps camera pixels through rover-centric, polar and
// world-frame coordinates.
//
// Everything here is a pure function over slices. The coordinate frame of a
// PixelSet is carried in its type parameter so a rover-frame set can never be
// handed to code expecting world coordinates.
package geometry

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when coordinate sequences differ in length.
var ErrLengthMismatch = errors.New("geometry: coordinate sequences differ in length")

// Frame tags the coordinate system a PixelSet lives in.
type Frame interface {
	frameName() string
}

// Image is the camera image frame: X is the column, Y is the row.
type Image struct{}

// Rover is the vehicle-centred frame: origin at the bottom-centre of the
// image, +X forward, +Y left.
type Rover struct{}

// World is the fixed map frame (continuous, before truncation to cells).
type World struct{}

func (Image) frameName() string { return "image" }
func (Rover) frameName() string { return "rover" }
func (World) frameName() string { return "world" }

// PixelSet is a pair of equal-length coordinate sequences in frame F.
// The zero value is a valid empty set.
type PixelSet[F Frame] struct {
	X []float64
	Y []float64
}

// NewPixelSet builds a PixelSet, rejecting sequences of different length.
func NewPixelSet[F Frame](x, y []float64) (PixelSet[F], error) {
	if len(x) != len(y) {
		return PixelSet[F]{}, fmt.Errorf("%w: x=%d y=%d", ErrLengthMismatch, len(x), len(y))
	}
	return PixelSet[F]{X: x, Y: y}, nil
}

// Len returns the number of points.
func (p PixelSet[F]) Len() int {
	return len(p.X)
}

// Empty reports whether the set holds no points.
func (p PixelSet[F]) Empty() bool {
	return len(p.X) == 0
}

// Mask is a 2D binary field read in row-major order.
type Mask interface {
	Bounds() (rows, cols int)
	Nonzero(row, col int) bool
}

// Nonzero returns the image-frame coordinates of every set cell of mask,
// in row-major scan order.
func Nonzero(mask Mask) PixelSet[Image] {
	rows, cols := mask.Bounds()
	var p PixelSet[Image]
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if mask.Nonzero(r, c) {
				p.X = append(p.X, float64(c))
				p.Y = append(p.Y, float64(r))
			}
		}
	}
	return p
}

// ImageToRover moves image coordinates to the rover frame for an image of
// the given height and width.
func ImageToRover(p PixelSet[Image], height, width int) PixelSet[Rover] {
	out := PixelSet[Rover]{
		X: make([]float64, p.Len()),
		Y: make([]float64, p.Len()),
	}
	h := float64(height)
	halfW := float64(width) / 2
	for i := range p.X {
		row, col := p.Y[i], p.X[i]
		out.X[i] = -(row - h)
		out.Y[i] = -(col - halfW)
	}
	return out
}

// ToRoverFrame converts every set cell of mask to rover-frame coordinates.
// Output order follows the mask's scan order.
func ToRoverFrame(mask Mask, height, width int) PixelSet[Rover] {
	return ImageToRover(Nonzero(mask), height, width)
}
