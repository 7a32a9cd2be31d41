package centroid

import "math"

// quarticAmplitude is the amplitude of the 4th-order correction relative to
// theory, tuned on Gaussian profiles.
const quarticAmplitude = 1.33

// interpolatePeak estimates the position of the extremum of three equally
// spaced samples at abscissae -1, 0, 1. It returns false when the samples do
// not bracket an extremum of the requested polarity or when the estimate
// falls outside (-1, 1).
func interpolatePeak(vm, v0, vp float64, negative bool) (float64, bool) {
	sp := v0 - vp
	sm := v0 - vm
	d2 := sp + sm
	s := 0.5 * (vp - vm)

	if (!negative && (d2 <= 0 || v0 <= 0)) ||
		(negative && (d2 >= 0 || v0 >= 0)) {
		return 0, false
	}

	cen := s / d2 * (1 + quarticAmplitude*sp*sm/(d2*v0))
	return cen, math.Abs(cen) < 1
}
