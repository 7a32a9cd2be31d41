package psf

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ironsheep/centroid-mcp/internal/centroid"
)

// DefaultNSigma is the kernel half-size in units of the larger sigma.
const DefaultNSigma = 3.0

// fwhmPerSigma converts a Gaussian sigma to its full width at half maximum.
var fwhmPerSigma = 2 * math.Sqrt(2*math.Ln2)

// Gaussian is an elliptical Gaussian PSF, the same everywhere in the image.
// Theta is the position angle of the SigmaX axis in radians,
// counter-clockwise from +x.
type Gaussian struct {
	SigmaX float64 `json:"sigma_x"`
	SigmaY float64 `json:"sigma_y"`
	Theta  float64 `json:"theta"`
	NSigma float64 `json:"nsigma,omitempty"`
}

// NewGaussian returns a circular Gaussian PSF.
func NewGaussian(sigma float64) Gaussian {
	return Gaussian{SigmaX: sigma, SigmaY: sigma, NSigma: DefaultNSigma}
}

// FromFWHM returns a circular Gaussian PSF with the given FWHM in pixels.
func FromFWHM(fwhm float64) Gaussian {
	return NewGaussian(fwhm / fwhmPerSigma)
}

// Validate checks that both widths are positive and finite.
func (g Gaussian) Validate() error {
	for _, s := range []float64{g.SigmaX, g.SigmaY} {
		if !(s > 0) || math.IsInf(s, 0) {
			return fmt.Errorf("invalid PSF sigma %g: must be positive", s)
		}
	}
	if g.NSigma < 0 {
		return fmt.Errorf("invalid PSF nsigma %g", g.NSigma)
	}
	return nil
}

// Moments returns the second-moment (quadrupole) matrix [Ixx Ixy; Ixy Iyy].
func (g Gaussian) Moments() *mat.SymDense {
	c, s := math.Cos(g.Theta), math.Sin(g.Theta)
	sx2, sy2 := g.SigmaX*g.SigmaX, g.SigmaY*g.SigmaY
	ixx := sx2*c*c + sy2*s*s
	iyy := sx2*s*s + sy2*c*c
	ixy := (sx2 - sy2) * s * c
	return mat.NewSymDense(2, []float64{ixx, ixy, ixy, iyy})
}

// DeterminantRadius returns (Ixx·Iyy − Ixy²)^(1/4), the sigma of the circular
// Gaussian with the same area.
func (g Gaussian) DeterminantRadius() float64 {
	return math.Pow(mat.Det(g.Moments()), 0.25)
}

// FWHM returns the full width at half maximum of the determinant radius.
func (g Gaussian) FWHM() float64 {
	return g.DeterminantRadius() * fwhmPerSigma
}

// LocalShape implements centroid.PSF.
func (g Gaussian) LocalShape(x, y float64) float64 {
	return g.DeterminantRadius()
}

// LocalKernel implements centroid.PSF. The kernel is square and odd-sized,
// with half-size ceil(NSigma × max sigma), normalized to unit sum.
func (g Gaussian) LocalKernel(x, y float64) *centroid.Kernel {
	nsigma := g.NSigma
	if nsigma == 0 {
		nsigma = DefaultNSigma
	}
	half := int(math.Ceil(nsigma * math.Max(g.SigmaX, g.SigmaY)))
	if half < 1 {
		half = 1
	}
	size := 2*half + 1

	m := g.Moments()
	ixx, iyy, ixy := m.At(0, 0), m.At(1, 1), m.At(0, 1)
	det := ixx*iyy - ixy*ixy

	k := &centroid.Kernel{Width: size, Height: size, Data: make([]float64, size*size)}
	var sum float64
	for j := 0; j < size; j++ {
		dy := float64(j - half)
		for i := 0; i < size; i++ {
			dx := float64(i - half)
			v := math.Exp(-0.5 * (iyy*dx*dx - 2*ixy*dx*dy + ixx*dy*dy) / det)
			k.Data[j*size+i] = v
			sum += v
		}
	}
	for i := range k.Data {
		k.Data[i] /= sum
	}
	return k
}
