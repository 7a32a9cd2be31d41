package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/anthonynsimon/bild/blur"
	"github.com/anthonynsimon/bild/effect"
)

// Peak is a pixel-level extremum of the smoothed luminance.
type Peak struct {
	X int `json:"x"`
	Y int `json:"y"`

	// Value is the smoothed luminance (0-255) at the peak. For negative
	// searches it is the depth below white, 255 - luminance.
	Value float64 `json:"value"`
}

// PeakResult is the outcome of a local search around a starting pixel.
type PeakResult struct {
	Peak

	// Shift is the distance in pixels from the starting pixel.
	Shift float64 `json:"shift"`
}

// PeaksResult contains the peaks found across a frame, strongest first.
type PeaksResult struct {
	Peaks []Peak `json:"peaks"`
	Count int    `json:"count"`

	// Truncated is set when more peaks passed the threshold than maxCount.
	Truncated bool `json:"truncated"`
}

// luma is a smoothed single-channel copy of a frame in image coordinates.
type luma struct {
	bounds image.Rectangle
	pix    []float64
}

// smoothedLuma converts img to grayscale and blurs it. blurRadius is the
// radius of the Gaussian blur, rounded up to whole pixels so the kernel has
// odd length and does not shift the frame; 0 disables blurring.
//
// With negative set the values are inverted so minima become maxima.
func smoothedLuma(img image.Image, blurRadius float64, negative bool) *luma {
	gray := effect.Grayscale(img)
	smoothed := gray
	if blurRadius > 0 {
		smoothed = blur.Gaussian(gray, math.Ceil(blurRadius))
	}

	b := img.Bounds()
	l := &luma{bounds: b, pix: make([]float64, b.Dx()*b.Dy())}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(smoothed.RGBAAt(x, y).R)
			if negative {
				v = 255 - v
			}
			l.pix[i] = v
			i++
		}
	}
	return l
}

func (l *luma) at(x, y int) float64 {
	return l.pix[(y-l.bounds.Min.Y)*l.bounds.Dx()+(x-l.bounds.Min.X)]
}

// FindPeak returns the brightest pixel (darkest when negative) of the
// smoothed frame within radius pixels of (x, y). The search window is a
// square clipped to the frame. Ties go to the pixel nearest the start.
//
// The result is the approximate centre handed to the centroid estimator.
func FindPeak(img image.Image, x, y, radius int, blurRadius float64, negative bool) (*PeakResult, error) {
	b := img.Bounds()
	if !image.Pt(x, y).In(b) {
		return nil, fmt.Errorf("start (%d,%d) outside image bounds %v", x, y, b)
	}
	if radius < 0 {
		return nil, fmt.Errorf("invalid search radius %d", radius)
	}

	l := smoothedLuma(img, blurRadius, negative)
	window := image.Rect(x-radius, y-radius, x+radius+1, y+radius+1).Intersect(b)

	best := PeakResult{Peak: Peak{X: x, Y: y, Value: l.at(x, y)}}
	for py := window.Min.Y; py < window.Max.Y; py++ {
		for px := window.Min.X; px < window.Max.X; px++ {
			v := l.at(px, py)
			shift := math.Hypot(float64(px-x), float64(py-y))
			if v > best.Value || (v == best.Value && shift < best.Shift) {
				best = PeakResult{Peak: Peak{X: px, Y: py, Value: v}, Shift: shift}
			}
		}
	}
	return &best, nil
}

// FindPeaks returns local maxima (minima when negative) of the smoothed frame
// whose value exceeds threshold, strongest first. A peak closer than
// minSeparation pixels to a stronger one is dropped. maxCount <= 0 means no
// limit.
//
// Pixels on the frame border are never reported since they lack a full
// neighbourhood.
func FindPeaks(img image.Image, threshold, minSeparation float64, maxCount int, blurRadius float64, negative bool) (*PeaksResult, error) {
	b := img.Bounds()
	if b.Dx() < 3 || b.Dy() < 3 {
		return nil, fmt.Errorf("image %dx%d too small to search for peaks", b.Dx(), b.Dy())
	}

	l := smoothedLuma(img, blurRadius, negative)

	var candidates []Peak
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			v := l.at(x, y)
			if v <= threshold || !isLocalMax(l, x, y, v) {
				continue
			}
			candidates = append(candidates, Peak{X: x, Y: y, Value: v})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Value > candidates[j].Value
	})

	res := &PeaksResult{Peaks: []Peak{}}
	minSep2 := minSeparation * minSeparation
	for _, c := range candidates {
		if tooClose(res.Peaks, c, minSep2) {
			continue
		}
		if maxCount > 0 && len(res.Peaks) == maxCount {
			res.Truncated = true
			break
		}
		res.Peaks = append(res.Peaks, c)
	}
	res.Count = len(res.Peaks)
	return res, nil
}

// isLocalMax reports whether (x, y) is a local maximum. On a plateau of
// equal values only the pixel with no equal neighbour before it in raster
// order qualifies.
func isLocalMax(l *luma, x, y int, v float64) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			n := l.at(x+dx, y+dy)
			before := dy < 0 || (dy == 0 && dx < 0)
			if n > v || (before && n == v) {
				return false
			}
		}
	}
	return true
}

func tooClose(accepted []Peak, c Peak, minSep2 float64) bool {
	for _, p := range accepted {
		dx, dy := float64(p.X-c.X), float64(p.Y-c.Y)
		if dx*dx+dy*dy < minSep2 {
			return true
		}
	}
	return false
}
