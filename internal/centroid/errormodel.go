package centroid

import "math"

// unusableError is returned by astrometricError when the inputs carry no
// position information.
const unusableError = 1e3

// tiny is the smallest normal float32; smaller peaks or curvatures are
// treated as zero.
const tiny = 0x1p-126

// astrometricError returns the one-sigma error of a centroid coordinate.
//
//   - skyVar: variance of pixels at the sky level
//   - sourceVar: extra variance of the peak due to source counts
//   - amp: |peak| of the unsmoothed object (not used by the closed forms)
//   - tau2: squared width of the unsmoothed object along this axis
//   - smoothedPeak: |peak value| in the smoothed image
//   - slope, curvature: first and second differences at the central pixel,
//     signed as for a maximum
//   - sigma: width of the smoothing filter, <= 0 for none
//   - quarticBad: whether the quartic correction was abandoned
//
// The slope and curvature variances are propagated through the quartic
// offset formula to first order. A negative propagated variance yields NaN.
func astrometricError(skyVar, sourceVar, amp, tau2, smoothedPeak, slope, curvature, sigma float64, quarticBad bool) float64 {
	k := quarticAmplitude
	if quarticBad {
		k = 0
	}
	sigma2 := sigma * sigma

	if math.Abs(smoothedPeak) < tiny ||
		math.Abs(curvature) < tiny {
		return unusableError
	}

	var sVar, dVar float64
	if sigma <= 0 {
		// no smoothing, no covariance between pixels
		e := math.Exp(-1 / (2 * tau2))
		sVar = 0.5*skyVar + 0.5*sourceVar*e
		dVar = 6*skyVar + sourceVar*(4*e+2*e)
	} else {
		sVar = skyVar / (8 * math.Pi * sigma2) * (1 - math.Exp(-1/sigma2))
		dVar = skyVar / (2 * math.Pi * sigma2) * (3 - 4*math.Exp(-1/(4*sigma2)) + math.Exp(-1/sigma2))

		sVar += sourceVar / (12 * math.Pi * sigma2) * (math.Exp(-1/(3*sigma2)) - math.Exp(-1/sigma2))
		dVar += sourceVar / (3 * math.Pi * sigma2) * (2 - 3*math.Exp(-1/(3*sigma2)) + math.Exp(-1/sigma2))
	}

	s, d := slope, curvature
	ds := 1/d + k/(4*smoothedPeak)*(1-12*s*s/(d*d))
	dd := s/(d*d) - k/(4*smoothedPeak)*8*s*s/(d*d*d)
	xVar := sVar*ds*ds + dVar*dd*dd

	if xVar < 0 {
		return math.NaN()
	}
	return math.Sqrt(xVar)
}
