package imaging

import (
	"fmt"
	"image"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"

	"github.com/ironsheep/centroid-mcp/internal/centroid"
)

// fullScale is the intensity of a saturated pixel, in ADU.
const fullScale = 65535.0

// madToSigma converts a median absolute deviation to a Gaussian sigma.
const madToSigma = 1.4826

// maxSkySamples bounds the number of pixels used for the sky estimate.
const maxSkySamples = 1 << 20

// NoiseModel describes the detector noise used to build variance planes.
type NoiseModel struct {
	// Gain in electrons per ADU. Zero or negative disables the source
	// (Poisson) term.
	Gain float64 `json:"gain" yaml:"gain"`

	// ReadNoise in ADU. Used as the sky noise floor when the frame
	// has no measurable scatter.
	ReadNoise float64 `json:"read_noise" yaml:"read_noise"`
}

// Plane is a frame converted to linear intensity with per-pixel variance.
type Plane struct {
	Masked *centroid.MaskedImage

	// Sky is the median intensity of the frame.
	Sky float64 `json:"sky"`

	// SkyVariance is the variance of sky pixels, from the MAD of the frame.
	SkyVariance float64 `json:"sky_variance"`
}

// Intensity returns the linear intensity of a pixel in ADU (0..65535).
//
// Grayscale frames are taken to be linear already and are used as stored.
// Colour frames are decoded from sRGB to linear RGB and reduced to Rec. 709
// luminance. Fully transparent pixels are zero.
func Intensity(img image.Image, x, y int) float64 {
	switch im := img.(type) {
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y) * 257
	}
	c, ok := colorful.MakeColor(img.At(x, y))
	if !ok {
		return 0
	}
	r, g, b := c.LinearRgb()
	return fullScale * (0.2126*r + 0.7152*g + 0.0722*b)
}

// ToMaskedImage converts img to an intensity plane with a variance plane
// under noise. Pixels keep their image coordinates.
//
// The sky level and its variance are estimated robustly over the whole frame
// (median and scaled median absolute deviation). Each pixel's variance is the
// sky variance plus the Poisson variance of its counts above sky:
//
//	var = skyVar + max(I - sky, 0) / gain
func ToMaskedImage(img image.Image, noise NoiseModel) (*Plane, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	mi := centroid.NewMaskedImage(b.Min.X, b.Min.Y, b.Dx(), b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			mi.Set(x, y, Intensity(img, x, y), 0)
		}
	}

	sky, skyVar := estimateSky(mi.Image)
	if skyVar <= 0 {
		skyVar = noise.ReadNoise * noise.ReadNoise
	}
	if skyVar <= 0 {
		// a noiseless frame still needs a finite error model
		skyVar = 1
	}

	for i, v := range mi.Image {
		variance := skyVar
		if noise.Gain > 0 {
			variance += math.Max(v-sky, 0) / noise.Gain
		}
		mi.Variance[i] = variance
	}

	return &Plane{Masked: mi, Sky: sky, SkyVariance: skyVar}, nil
}

// estimateSky returns the median of values and the square of the scaled
// median absolute deviation about it.
func estimateSky(values []float64) (float64, float64) {
	step := 1
	if len(values) > maxSkySamples {
		step = (len(values) + maxSkySamples - 1) / maxSkySamples
	}
	samples := make([]float64, 0, len(values)/step+1)
	for i := 0; i < len(values); i += step {
		samples = append(samples, values[i])
	}

	sort.Float64s(samples)
	median := stat.Quantile(0.5, stat.Empirical, samples, nil)

	for i, v := range samples {
		samples[i] = math.Abs(v - median)
	}
	sort.Float64s(samples)
	sigma := madToSigma * stat.Quantile(0.5, stat.Empirical, samples, nil)

	return median, sigma * sigma
}
