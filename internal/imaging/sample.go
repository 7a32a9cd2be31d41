package imaging

import (
	"fmt"
	"image"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// PixelSample is the measured value of one pixel.
type PixelSample struct {
	Label string `json:"label,omitempty"`
	X     int    `json:"x"`
	Y     int    `json:"y"`

	// Intensity and Variance come from the plane, in ADU and ADU².
	Intensity float64 `json:"intensity"`
	Variance  float64 `json:"variance"`

	// SNR is (Intensity - sky) / sqrt(Variance).
	SNR float64 `json:"snr"`

	// Hex is the displayed colour "#rrggbb" of the source frame.
	Hex string `json:"hex"`
}

// LabeledPoint is a pixel coordinate with an optional descriptive label.
type LabeledPoint struct {
	X     int
	Y     int
	Label string
}

// SamplePixel reads intensity and variance at (x, y) from p, and the display
// colour from img.
//
// Parameters:
//   - p: The plane built from img by ToMaskedImage.
//   - img: The source frame.
//   - x, y: Pixel coordinates (0-based, origin top-left).
//
// Returns an error if the pixel lies outside the image.
func SamplePixel(p *Plane, img image.Image, x, y int) (*PixelSample, error) {
	if !p.Masked.Contains(x, y) || !image.Pt(x, y).In(img.Bounds()) {
		return nil, fmt.Errorf("coordinates (%d,%d) outside image bounds", x, y)
	}

	v, variance := p.Masked.At(x, y)
	s := &PixelSample{
		X:         x,
		Y:         y,
		Intensity: v,
		Variance:  variance,
		Hex:       "#000000",
	}
	if variance > 0 {
		s.SNR = (v - p.Sky) / math.Sqrt(variance)
	}
	if c, ok := colorful.MakeColor(img.At(x, y)); ok {
		s.Hex = c.Clamped().Hex()
	}
	return s, nil
}

// SamplePixels samples every point in order. On error no partial results
// are returned.
func SamplePixels(p *Plane, img image.Image, points []LabeledPoint) ([]PixelSample, error) {
	out := make([]PixelSample, 0, len(points))
	for _, pt := range points {
		s, err := SamplePixel(p, img, pt.X, pt.Y)
		if err != nil {
			return nil, fmt.Errorf("failed to sample point (%d,%d): %w", pt.X, pt.Y, err)
		}
		s.Label = pt.Label
		out = append(out, *s)
	}
	return out, nil
}
