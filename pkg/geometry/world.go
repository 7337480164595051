package geometry

import "math"

// Pose is the vehicle's world position and heading. Yaw is in degrees and
// wraps at 360.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Yaw float64 `json:"yaw"`
}

// WorldCells holds integer map-cell coordinates, each already clamped to
// the map bounds.
type WorldCells struct {
	X []int
	Y []int
}

// Len returns the number of cells.
func (w WorldCells) Len() int {
	return len(w.X)
}

// At returns the i-th cell.
func (w WorldCells) At(i int) (x, y int) {
	return w.X[i], w.Y[i]
}

// Rotate rotates every point counter-clockwise by yaw degrees.
func Rotate[F Frame](p PixelSet[F], yawDeg float64) PixelSet[F] {
	rad := Radians(yawDeg)
	sin, cos := math.Sin(rad), math.Cos(rad)
	out := PixelSet[F]{
		X: make([]float64, p.Len()),
		Y: make([]float64, p.Len()),
	}
	for i := range p.X {
		x, y := p.X[i], p.Y[i]
		out.X[i] = x*cos - y*sin
		out.Y[i] = x*sin + y*cos
	}
	return out
}

// TranslateAndScale shrinks rover-aligned points by scale and moves them to
// the pose's world position.
func TranslateAndScale(p PixelSet[Rover], pose Pose, scale float64) PixelSet[World] {
	out := PixelSet[World]{
		X: make([]float64, p.Len()),
		Y: make([]float64, p.Len()),
	}
	for i := range p.X {
		out.X[i] = p.X[i]/scale + pose.X
		out.Y[i] = p.Y[i]/scale + pose.Y
	}
	return out
}

// ToWorldFrame maps rover-frame points to map cells: rotate by the pose's
// yaw, scale and translate, truncate toward zero, then clamp each
// coordinate to [0, worldSize-1]. Points projected outside the map are
// pinned to the boundary cell, not dropped.
func ToWorldFrame(p PixelSet[Rover], pose Pose, worldSize int, scale float64) WorldCells {
	world := TranslateAndScale(Rotate(p, pose.Yaw), pose, scale)
	out := WorldCells{
		X: make([]int, world.Len()),
		Y: make([]int, world.Len()),
	}
	hi := worldSize - 1
	for i := range world.X {
		out.X[i] = clampCell(world.X[i], hi)
		out.Y[i] = clampCell(world.Y[i], hi)
	}
	return out
}

// clampCell truncates v toward zero and clamps it to [0, hi].
// NaN maps to 0.
func clampCell(v float64, hi int) int {
	t := math.Trunc(v)
	switch {
	case !(t > 0):
		return 0
	case t >= float64(hi):
		return hi
	}
	return int(t)
}
