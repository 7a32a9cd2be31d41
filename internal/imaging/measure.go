package imaging

import (
	"math"
)

// Position is a measured sub-pixel position with its one-sigma errors.
type Position struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	XErr float64 `json:"x_err"`
	YErr float64 `json:"y_err"`
}

// SeparationResult contains the offset between two positions.
type SeparationResult struct {
	DistancePixels float64 `json:"distance_pixels"`
	DistanceErr    float64 `json:"distance_err"`
	DeltaX         float64 `json:"delta_x"`
	DeltaY         float64 `json:"delta_y"`

	// AngleDegrees is measured from +x towards +y (down the frame).
	AngleDegrees    float64 `json:"angle_degrees"`
	AngleErrDegrees float64 `json:"angle_err_degrees"`
}

// MeasureSeparation returns the distance and position angle from a to b with
// first-order propagated errors. The two positions are taken as independent.
//
// For coincident positions the angle is undefined: it is reported as 0 with
// an error of 180 degrees, and the distance error is the combined positional
// error.
func MeasureSeparation(a, b Position) *SeparationResult {
	dx := b.X - a.X
	dy := b.Y - a.Y
	varX := a.XErr*a.XErr + b.XErr*b.XErr
	varY := a.YErr*a.YErr + b.YErr*b.YErr
	d := math.Hypot(dx, dy)

	res := &SeparationResult{
		DistancePixels: d,
		DeltaX:         dx,
		DeltaY:         dy,
	}
	if d == 0 {
		res.DistanceErr = math.Sqrt(varX + varY)
		res.AngleErrDegrees = 180
		return res
	}

	res.DistanceErr = math.Sqrt(dx*dx*varX+dy*dy*varY) / d
	res.AngleDegrees = math.Atan2(dy, dx) * 180 / math.Pi
	d2 := d * d
	res.AngleErrDegrees = math.Sqrt(dy*dy*varX+dx*dx*varY) / d2 * 180 / math.Pi
	return res
}
