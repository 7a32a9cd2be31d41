package centroid

// PSF is the point-spread-function model the estimator consumes. It may vary
// across the image; both queries are evaluated at an image position.
type PSF interface {
	// LocalShape returns the PSF size at (x, y) reduced to a single
	// Gaussian-equivalent sigma (the determinant radius).
	LocalShape(x, y float64) float64

	// LocalKernel returns the PSF sampled on the pixel grid at (x, y).
	LocalKernel(x, y float64) *Kernel
}

// Kernel is a discrete convolution kernel. Data is row-major, Width×Height.
type Kernel struct {
	Width  int
	Height int
	Data   []float64
}

// CenterX is the column of the kernel's central pixel.
func (k *Kernel) CenterX() int { return k.Width / 2 }

// CenterY is the row of the kernel's central pixel.
func (k *Kernel) CenterY() int { return k.Height / 2 }

// At returns the kernel value at column i, row j.
func (k *Kernel) At(i, j int) float64 {
	return k.Data[j*k.Width+i]
}

// Sum returns the sum of all kernel values.
func (k *Kernel) Sum() float64 {
	var s float64
	for _, v := range k.Data {
		s += v
	}
	return s
}
