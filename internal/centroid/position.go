package centroid

import "math"

// Pixel centres sit at integer positions: pixel i spans [i-0.5, i+0.5).

// IndexToPosition converts a (possibly fractional) pixel index to a
// continuous position.
func IndexToPosition(index float64) float64 {
	return index
}

// PositionToIndex returns the pixel containing pos and the offset of pos
// from that pixel's centre, in [-0.5, 0.5).
func PositionToIndex(pos float64) (int, float64) {
	i := math.Floor(pos + 0.5)
	return int(i), pos - i
}
