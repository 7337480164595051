package vision

import "github.com/teslashibe/go-rover/pkg/geometry"

// ColorRange selects pixels whose every channel lies strictly between
// Lower and Upper.
type ColorRange struct {
	Lower RGB `yaml:"lower" json:"lower"`
	Upper RGB `yaml:"upper" json:"upper"`
}

// Contains reports whether px is inside the range. Both bounds are
// exclusive, per channel.
func (c ColorRange) Contains(px RGB) bool {
	for ch := 0; ch < 3; ch++ {
		if px[ch] <= c.Lower[ch] || px[ch] >= c.Upper[ch] {
			return false
		}
	}
	return true
}

// Ranges names the three thresholded terrain classes.
type Ranges struct {
	Navigable ColorRange `yaml:"navigable" json:"navigable"`
	Wall      ColorRange `yaml:"wall" json:"wall"`
	Sample    ColorRange `yaml:"sample" json:"sample"`
}

// DefaultRanges returns thresholds tuned for the simulator's lighting.
// Bright ground is navigable, dark rock is wall, yellow is a sample.
func DefaultRanges() Ranges {
	return Ranges{
		Navigable: ColorRange{Lower: RGB{160, 160, 160}, Upper: RGB{255, 255, 255}},
		Wall:      ColorRange{Lower: RGB{0, 0, 0}, Upper: RGB{160, 160, 160}},
		Sample:    ColorRange{Lower: RGB{150, 100, 0}, Upper: RGB{255, 255, 50}},
	}
}

// Threshold returns the mask of pixels of f inside r.
func Threshold(f Frame, r ColorRange) Mask {
	m := NewMask(f.Rows, f.Cols)
	for i, j := 0, 0; i < len(m.Bits); i, j = i+1, j+3 {
		if r.Contains(RGB{f.Pix[j], f.Pix[j+1], f.Pix[j+2]}) {
			m.Bits[i] = 1
		}
	}
	return m
}

// Classification is one frame's terrain masks.
type Classification struct {
	Navigable Mask `json:"navigable"`
	Wall      Mask `json:"wall"`
	Obstacle  Mask `json:"obstacle"`
	Sample    Mask `json:"sample"`
}

// Classify thresholds a rectified frame. valid marks the pixels the warp
// actually produced; the obstacle mask is everything inside valid that is
// not navigable.
func Classify(f Frame, valid Mask, r Ranges) Classification {
	c := Classification{
		Navigable: Threshold(f, r.Navigable),
		Wall:      Threshold(f, r.Wall),
		Sample:    Threshold(f, r.Sample),
		Obstacle:  NewMask(f.Rows, f.Cols),
	}
	for i, nav := range c.Navigable.Bits {
		if nav == 0 && valid.Bits[i] != 0 {
			c.Obstacle.Bits[i] = 1
		}
	}
	return c
}

// NearestSample returns the index of the sample pixel closest to the rover.
// Ties keep the earliest pixel in scan order.
func NearestSample(sample geometry.PixelSet[geometry.Rover]) (int, bool) {
	if sample.Empty() {
		return 0, false
	}
	polar := geometry.ToPolar(sample)
	best := 0
	for i := 1; i < polar.Len(); i++ {
		if polar.Dist[i] < polar.Dist[best] {
			best = i
		}
	}
	return best, true
}
