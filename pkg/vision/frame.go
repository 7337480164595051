// Package vision classifies rectified camera frames into navigable terrain,
// walls, obstacles and rock samples.
package vision

// RGB is one pixel, channels 0-255.
type RGB [3]uint8

// Frame is an RGB image stored row-major with interleaved channels.
type Frame struct {
	Rows int
	Cols int
	Pix  []uint8
}

// NewFrame allocates a black frame.
func NewFrame(rows, cols int) Frame {
	return Frame{Rows: rows, Cols: cols, Pix: make([]uint8, rows*cols*3)}
}

// At returns the pixel at (row, col).
func (f Frame) At(row, col int) RGB {
	i := (row*f.Cols + col) * 3
	return RGB{f.Pix[i], f.Pix[i+1], f.Pix[i+2]}
}

// Set writes the pixel at (row, col).
func (f Frame) Set(row, col int, px RGB) {
	i := (row*f.Cols + col) * 3
	f.Pix[i], f.Pix[i+1], f.Pix[i+2] = px[0], px[1], px[2]
}

// Fill paints every pixel px.
func (f Frame) Fill(px RGB) {
	for i := 0; i < len(f.Pix); i += 3 {
		f.Pix[i], f.Pix[i+1], f.Pix[i+2] = px[0], px[1], px[2]
	}
}

// Mask is a binary image, one byte per pixel (0 or 1).
type Mask struct {
	Rows int     `json:"rows"`
	Cols int     `json:"cols"`
	Bits []uint8 `json:"bits"`
}

// NewMask allocates an all-zero mask.
func NewMask(rows, cols int) Mask {
	return Mask{Rows: rows, Cols: cols, Bits: make([]uint8, rows*cols)}
}

// FullMask allocates a mask with every pixel set.
func FullMask(rows, cols int) Mask {
	m := NewMask(rows, cols)
	for i := range m.Bits {
		m.Bits[i] = 1
	}
	return m
}

// Bounds returns the mask dimensions.
func (m Mask) Bounds() (rows, cols int) {
	return m.Rows, m.Cols
}

// Nonzero reports whether (row, col) is set.
func (m Mask) Nonzero(row, col int) bool {
	return m.Bits[row*m.Cols+col] != 0
}

// Set marks (row, col).
func (m Mask) Set(row, col int) {
	m.Bits[row*m.Cols+col] = 1
}

// Count returns the number of set pixels.
func (m Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b != 0 {
			n++
		}
	}
	return n
}

// Any reports whether at least one pixel is set.
func (m Mask) Any() bool {
	for _, b := range m.Bits {
		if b != 0 {
			return true
		}
	}
	return false
}
