package psf

import (
	"math"

	"github.com/ironsheep/centroid-mcp/internal/centroid"
)

// Varying is a Gaussian PSF whose widths grow linearly with distance from an
// optical centre, a simple model of field-dependent blur.
type Varying struct {
	Base Gaussian `json:"base"`

	// OriginX, OriginY is the position where the PSF equals Base.
	OriginX float64 `json:"origin_x"`
	OriginY float64 `json:"origin_y"`

	// RadialScale is the fractional growth of both sigmas per pixel of
	// distance from the origin.
	RadialScale float64 `json:"radial_scale"`
}

// At returns the Gaussian in effect at image position (x, y).
func (v Varying) At(x, y float64) Gaussian {
	f := 1 + v.RadialScale*math.Hypot(x-v.OriginX, y-v.OriginY)
	g := v.Base
	g.SigmaX *= f
	g.SigmaY *= f
	return g
}

// LocalShape implements centroid.PSF.
func (v Varying) LocalShape(x, y float64) float64 {
	return v.At(x, y).DeterminantRadius()
}

// LocalKernel implements centroid.PSF.
func (v Varying) LocalKernel(x, y float64) *centroid.Kernel {
	return v.At(x, y).LocalKernel(x, y)
}
