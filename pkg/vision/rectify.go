package vision

// Rectifier warps a camera frame to a top-down view. The returned mask
// marks pixels the warp actually produced; everything else is vignetting.
type Rectifier interface {
	Rectify(f Frame) (warped Frame, valid Mask)
}

// Passthrough treats frames as already rectified and fully valid.
// Used for replayed top-down frames and in tests.
type Passthrough struct{}

// Rectify returns f unchanged with an all-set validity mask.
func (Passthrough) Rectify(f Frame) (Frame, Mask) {
	return f, FullMask(f.Rows, f.Cols)
}
