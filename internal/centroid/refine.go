package centroid

import (
	"fmt"
	"math"
)

// maxFirstGuess bounds the quadratic first-guess offset, in pixels.
const maxFirstGuess = 10.0

// Refinement is the sub-pixel estimate from one 3×3 neighbourhood. X and Y
// are offsets from the locator centre in the locator's own pixel units.
type Refinement struct {
	X, Y        float64
	XErr, YErr  float64
	SizeX2      float64 // squared width of the unsmoothed object along x
	SizeY2      float64
	Peak        float64 // peak height in the (smoothed) image
	QuarticBad  bool    // quartic step failed; X, Y are the quadratic estimate
	FirstGuessX float64
	FirstGuessY float64
}

// Refine measures the position of the extremum around the centre of loc.
//
// The first estimate comes from the quadratic through the central row and
// column. The offset is then improved with quartic interpolation along the
// three rows and three columns of the neighbourhood, applied twice so the
// x and y estimates correct each other. smoothingSigma is the Gaussian sigma
// of any smoothing already applied to the pixels (0 for raw pixels); it is
// removed from the size estimates and selects the matching noise model.
// When negative is set the extremum must be a minimum.
//
// Sky variance is the mean variance of the 8 neighbours and source variance
// is the variance of the central pixel, both read from loc.
func Refine(loc Locator, smoothingSigma float64, negative bool) (*Refinement, error) {
	im := loc.Image

	d2x := 2*im(0, 0) - im(-1, 0) - im(1, 0)
	d2y := 2*im(0, 0) - im(0, -1) - im(0, 1)
	sx := 0.5 * (im(1, 0) - im(-1, 0))
	sy := 0.5 * (im(0, 1) - im(0, -1))

	if d2x == 0 || d2y == 0 {
		return nil, newError(KindNoSecondDerivative, "", d2x, d2y)
	}
	if (!negative && (d2x < 0 || d2y < 0)) ||
		(negative && (d2x > 0 || d2y > 0)) {
		return nil, newError(KindNotAtMaximum, "d2I/dx2, d2I/dy2", d2x, d2y)
	}

	dx0 := sx / d2x
	dy0 := sy / d2y
	if math.Abs(dx0) > maxFirstGuess || math.Abs(dy0) > maxFirstGuess {
		return nil, newError(KindAlmostNoSecondDerivative, "sx, d2x, sy, d2y", sx, d2x, sy, d2y)
	}

	// height of peak in image
	vpk := im(0, 0) + 0.5*(sx*dx0+sy*dy0)

	// maxima along the stripes
	m0x, ok0x := interpolatePeak(im(-1, -1), im(0, -1), im(1, -1), negative)
	m1x, ok1x := interpolatePeak(im(-1, 0), im(0, 0), im(1, 0), negative)
	m2x, ok2x := interpolatePeak(im(-1, 1), im(0, 1), im(1, 1), negative)
	m0y, ok0y := interpolatePeak(im(-1, -1), im(-1, 0), im(-1, 1), negative)
	m1y, ok1y := interpolatePeak(im(0, -1), im(0, 0), im(0, 1), negative)
	m2y, ok2y := interpolatePeak(im(1, -1), im(1, 0), im(1, 1), negative)
	quarticBad := !(ok0x && ok1x && ok2x && ok0y && ok1y && ok2y)

	r := &Refinement{
		Peak:        vpk,
		QuarticBad:  quarticBad,
		FirstGuessX: dx0,
		FirstGuessY: dy0,
	}

	// widths^2 of the smoothed object
	var sigmaX2, sigmaY2 float64
	if quarticBad {
		r.X, r.Y = dx0, dy0
		sigmaX2 = vpk / d2x
		sigmaY2 = vpk / d2y
	} else {
		smx := 0.5 * (m2x - m0x)
		smy := 0.5 * (m2y - m0y)
		dm2x := m1x - 0.5*(m0x+m2x)
		dm2y := m1y - 0.5*(m0y+m2y)

		dx := m1x + dy0*(smx-dy0*dm2x)
		dy := m1y + dx0*(smy-dx0*dm2y)
		r.X = m1x + dy*(smx-dy*dm2x)
		r.Y = m1y + dx*(smy-dx*dm2y)

		sigmaX2 = vpk/d2x - (1+6*dx0*dx0)/4
		sigmaY2 = vpk/d2y - (1+6*dy0*dy0)/4
	}

	// widths^2 of the unsmoothed object; anything narrower than the
	// smoothing kernel is unresolved
	s2 := smoothingSigma * smoothingSigma
	tauX2 := math.Max(sigmaX2-s2, s2)
	tauY2 := math.Max(sigmaY2-s2, s2)

	skyVar := (loc.Variance(-1, -1) + loc.Variance(0, -1) + loc.Variance(1, -1) +
		loc.Variance(-1, 0) + loc.Variance(1, 0) +
		loc.Variance(-1, 1) + loc.Variance(0, 1) + loc.Variance(1, 1)) / 8
	sourceVar := loc.Variance(0, 0)
	amp := vpk * math.Sqrt((sigmaX2/tauX2)*(sigmaY2/tauY2))

	// the error model is written for a maximum: a minimum is measured as
	// the maximum of the negated pixels
	pol := 1.0
	if negative {
		pol = -1
	}
	peak := math.Abs(vpk)
	sigma := math.Abs(smoothingSigma)
	r.XErr = astrometricError(skyVar, sourceVar, math.Abs(amp), tauX2, peak, pol*sx, pol*d2x, sigma, quarticBad)
	r.YErr = astrometricError(skyVar, sourceVar, math.Abs(amp), tauY2, peak, pol*sy, pol*d2y, sigma, quarticBad)
	r.SizeX2 = tauX2
	r.SizeY2 = tauY2
	return r, nil
}

// RefineQuick runs Refine on the raw pixels around parent coordinates
// (x, y) with no smoothing. It needs no PSF, only the 3×3 neighbourhood.
func RefineQuick(mi *MaskedImage, x, y int, negative bool) (*Refinement, error) {
	if mi.Contains(x-1, y-1) && mi.Contains(x+1, y+1) {
		return Refine(mi.Locator(x, y), 0, negative)
	}
	return nil, newError(KindEdge, fmt.Sprintf("3x3 neighbourhood of (%d,%d) outside image %v", x, y, mi.Bounds()))
}
