package blur

import (
	"image"

	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// DefaultThreshold is the Laplacian variance below which a frame counts as blurry
const DefaultThreshold = 100.0

// Filter scores frames for sharpness
type Filter struct {
	threshold float64
}

// New creates a Filter with the default threshold
func New() *Filter {
	return &Filter{threshold: DefaultThreshold}
}

// NewWithThreshold creates a Filter with a custom threshold
func NewWithThreshold(threshold float64) *Filter {
	return &Filter{threshold: threshold}
}

// Threshold returns the configured variance threshold
func (f *Filter) Threshold() float64 {
	return f.threshold
}

// IsBlurry reports whether the frame's Laplacian variance is strictly below the threshold
func (f *Filter) IsBlurry(img image.Image) bool {
	return Variance(img) < f.threshold
}

// Variance returns the variance of the 4-neighbour Laplacian of the
// frame's luminance. Borders are reflected without repeating the edge pixel.
func Variance(img image.Image) float64 {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	if w == 0 || h == 0 {
		return 0
	}

	// Grayscale stores luminance in every colour channel; read R.
	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		for x := 0; x < w; x++ {
			lum[y*w+x] = float64(row[x*4])
		}
	}

	at := func(x, y int) float64 {
		return lum[reflect101(y, h)*w+reflect101(x, w)]
	}

	response := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			response[y*w+x] = at(x-1, y) + at(x+1, y) + at(x, y-1) + at(x, y+1) - 4*at(x, y)
		}
	}

	return stat.PopVariance(response, nil)
}

// reflect101 maps an out-of-range index back into [0, n) as gfedcb|abcdefgh|gfedcba
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*(n-1) - i
		}
	}
	return i
}
