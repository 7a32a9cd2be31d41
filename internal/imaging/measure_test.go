package imaging

import (
	"math"
	"testing"
)

func TestMeasureSeparation(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Position
		distance float64
		distErr  float64
		angle    float64
		angleErr float64
	}{
		{
			name:     "horizontal",
			a:        Position{X: 10, Y: 10, XErr: 0.03, YErr: 0.04},
			b:        Position{X: 20, Y: 10, XErr: 0.04, YErr: 0.03},
			distance: 10,
			distErr:  0.05,
			angle:    0,
			angleErr: 0.05 / 10 * 180 / math.Pi,
		},
		{
			name:     "downward",
			a:        Position{X: 0, Y: 0},
			b:        Position{X: 0, Y: 5, XErr: 0.1, YErr: 0.2},
			distance: 5,
			distErr:  0.2,
			angle:    90,
			angleErr: 0.1 / 5 * 180 / math.Pi,
		},
		{
			name:     "3-4-5",
			a:        Position{X: 1.5, Y: 2.5, XErr: 0.1, YErr: 0.1},
			b:        Position{X: 4.5, Y: 6.5},
			distance: 5,
			distErr:  0.1,
			angle:    math.Atan2(4, 3) * 180 / math.Pi,
			angleErr: 0.1 / 5 * 180 / math.Pi,
		},
		{
			name:     "coincident",
			a:        Position{X: 3, Y: 3, XErr: 0.3},
			b:        Position{X: 3, Y: 3, YErr: 0.4},
			distance: 0,
			distErr:  0.5,
			angle:    0,
			angleErr: 180,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := MeasureSeparation(tt.a, tt.b)
			check := func(what string, got, want float64) {
				if math.Abs(got-want) > 1e-9 {
					t.Errorf("%s: got %g, want %g", what, got, want)
				}
			}
			check("distance", r.DistancePixels, tt.distance)
			check("distance error", r.DistanceErr, tt.distErr)
			check("angle", r.AngleDegrees, tt.angle)
			check("angle error", r.AngleErrDegrees, tt.angleErr)
			check("delta x", r.DeltaX, tt.b.X-tt.a.X)
			check("delta y", r.DeltaY, tt.b.Y-tt.a.Y)
		})
	}
}
