package centroid

import "math"

// gaussPSF is a circular Gaussian PSF for tests.
type gaussPSF struct {
	sigma float64
}

func (g gaussPSF) LocalShape(x, y float64) float64 { return g.sigma }

func (g gaussPSF) LocalKernel(x, y float64) *Kernel {
	half := int(math.Ceil(3 * g.sigma))
	size := 2*half + 1
	k := &Kernel{Width: size, Height: size, Data: make([]float64, size*size)}
	var sum float64
	for j := 0; j < size; j++ {
		for i := 0; i < size; i++ {
			dx, dy := float64(i-half), float64(j-half)
			v := math.Exp(-(dx*dx + dy*dy) / (2 * g.sigma * g.sigma))
			k.Data[j*size+i] = v
			sum += v
		}
	}
	for i := range k.Data {
		k.Data[i] /= sum
	}
	return k
}

// gaussianImage renders a Gaussian of the given amplitude and sigma centred
// at (cx, cy) on a flat background, with uniform variance.
func gaussianImage(width, height int, cx, cy, amp, sigma, background, variance float64) *MaskedImage {
	mi := NewMaskedImage(0, 0, width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			v := background + amp*math.Exp(-(dx*dx+dy*dy)/(2*sigma*sigma))
			mi.Set(x, y, v, variance)
		}
	}
	return mi
}

// patch3x3 builds a 3×3 image centred on (1, 1) from rows top to bottom.
func patch3x3(rows [3][3]float64, variance float64) *MaskedImage {
	mi := NewMaskedImage(0, 0, 3, 3)
	for y := 0; y < 3; y++ {
		for x := 0; x < 3; x++ {
			mi.Set(x, y, rows[y][x], variance)
		}
	}
	return mi
}
