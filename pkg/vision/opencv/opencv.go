// Package opencv adapts gocv to the vision package: JPEG decoding, the
// perspective warp, and ground-truth map loading.
package opencv

import (
	"fmt"
	"image"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/teslashibe/go-rover/pkg/vision"
	"gocv.io/x/gocv"
)

// Rectifier applies a fixed perspective transform computed from a
// calibration. The transform depends on frame size, so it is built lazily
// for the first frame and rebuilt if the size changes.
type Rectifier struct {
	cal vision.Calibration

	mu     sync.Mutex // Protects the cached transform
	rows   int
	cols   int
	matrix gocv.Mat
	ready  bool
}

var _ vision.Rectifier = (*Rectifier)(nil)

// NewRectifier creates a rectifier for the given calibration.
func NewRectifier(cal vision.Calibration) *Rectifier {
	return &Rectifier{cal: cal}
}

// Rectify warps f to a top-down view and returns the warp of an all-ones
// image as the validity mask.
func (r *Rectifier) Rectify(f vision.Frame) (vision.Frame, vision.Mask) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ready || r.rows != f.Rows || r.cols != f.Cols {
		r.rebuild(f.Rows, f.Cols)
	}

	src, err := gocv.NewMatFromBytes(f.Rows, f.Cols, gocv.MatTypeCV8UC3, f.Pix)
	if err != nil {
		// Degenerate input: nothing was warped, so nothing is valid.
		return vision.NewFrame(f.Rows, f.Cols), vision.NewMask(f.Rows, f.Cols)
	}
	defer src.Close()

	size := image.Pt(f.Cols, f.Rows)

	warped := gocv.NewMat()
	defer warped.Close()
	gocv.WarpPerspective(src, &warped, r.matrix, size)

	ones := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 0, 0, 0), f.Rows, f.Cols, gocv.MatTypeCV8U)
	defer ones.Close()
	validMat := gocv.NewMat()
	defer validMat.Close()
	gocv.WarpPerspective(ones, &validMat, r.matrix, size)

	out := vision.Frame{Rows: f.Rows, Cols: f.Cols, Pix: warped.ToBytes()}
	valid := vision.Mask{Rows: f.Rows, Cols: f.Cols, Bits: validMat.ToBytes()}
	return out, valid
}

// Close releases the cached transform.
func (r *Rectifier) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		r.matrix.Close()
		r.ready = false
	}
	return nil
}

func (r *Rectifier) rebuild(rows, cols int) {
	if r.ready {
		r.matrix.Close()
	}
	src := gocv.NewPoint2fVectorFromPoints(toPoint2f(r.cal.Source))
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints(toPoint2f(r.cal.Destination(rows, cols)))
	defer dst.Close()

	r.matrix = gocv.GetPerspectiveTransform2f(src, dst)
	r.rows, r.cols = rows, cols
	r.ready = true
}

func toPoint2f(pts [4]r2.Point) []gocv.Point2f {
	out := make([]gocv.Point2f, len(pts))
	for i, p := range pts {
		out[i] = gocv.Point2f{X: float32(p.X), Y: float32(p.Y)}
	}
	return out
}

// DecodeJPEG decodes a compressed camera image into an RGB frame.
func DecodeJPEG(data []byte) (vision.Frame, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return vision.Frame{}, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return vision.Frame{}, fmt.Errorf("empty image")
	}

	// OpenCV decodes to BGR
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(img, &rgb, gocv.ColorBGRToRGB)

	return vision.Frame{Rows: rgb.Rows(), Cols: rgb.Cols(), Pix: rgb.ToBytes()}, nil
}

// LoadGroundTruth reads a grayscale map image; any non-zero pixel is
// navigable ground. Row 0 of the returned mask is world y=0, so the image
// is flipped vertically to match the map's orientation.
func LoadGroundTruth(path string) (vision.Mask, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return vision.Mask{}, fmt.Errorf("ground truth not readable: %s", path)
	}
	defer img.Close()

	flipped := gocv.NewMat()
	defer flipped.Close()
	gocv.Flip(img, &flipped, 0)

	rows, cols := flipped.Rows(), flipped.Cols()
	pix := flipped.ToBytes()
	m := vision.NewMask(rows, cols)
	for i, v := range pix {
		if v != 0 {
			m.Bits[i] = 1
		}
	}
	return m, nil
}
