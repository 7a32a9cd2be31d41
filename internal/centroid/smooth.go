package centroid

import (
	"fmt"
	"image"
	"math"
)

// smoothAndBin cuts the window around parent pixel (x, y) that the PSF kernel
// needs, bins it by binX × binY and convolves it with the local PSF kernel.
//
// The result's central pixel (Width/2, Height/2) is the binned pixel whose
// lower-left corner is (x, y); its half-extent is kernel half-width + 2 on
// each axis. The returned sigma is the PSF determinant radius, which the
// refiner treats as the smoothing width.
func smoothAndBin(psf PSF, mi *MaskedImage, x, y, binX, binY int) (*MaskedImage, float64, error) {
	cx, cy := IndexToPosition(float64(x)), IndexToPosition(float64(y))
	smoothingSigma := psf.LocalShape(cx, cy)
	// effective area of a Gaussian kernel
	nEffective := 4 * math.Pi * smoothingSigma * smoothingSigma

	kernel := psf.LocalKernel(cx, cy)
	if kernel == nil || kernel.Width < 1 || kernel.Height < 1 {
		return nil, 0, newError(KindFatalConfiguration, fmt.Sprintf("PSF returned no kernel at (%d,%d)", x, y))
	}
	kw, kh := kernel.Width, kernel.Height

	bbox := image.Rect(
		x-binX*(2+kw/2), y-binY*(2+kh/2),
		x-binX*(2+kw/2)+binX*(kw+4), y-binY*(2+kh/2)+binY*(kh+4),
	)
	sub, err := mi.SubImage(bbox)
	if err != nil {
		return nil, 0, err
	}

	binned := sub.Bin(binX, binY)
	smoothed := binned.Convolve(kernel)
	// per-pixel variance: undo the reduction from binning and smoothing
	smoothed.ScaleVariance(float64(binX*binY) * nEffective)

	return smoothed, smoothingSigma, nil
}

// skyBoxScale is the half-size of the local sky box in units of the
// unbinned smoothing window half-extent.
const skyBoxScale = 4

// localSky returns the median intensity of a box around parent pixel (x, y)
// a few smoothing windows across, clipped to the image.
func localSky(psf PSF, mi *MaskedImage, x, y int) (float64, error) {
	kernel := psf.LocalKernel(IndexToPosition(float64(x)), IndexToPosition(float64(y)))
	if kernel == nil || kernel.Width < 1 || kernel.Height < 1 {
		return 0, newError(KindFatalConfiguration, fmt.Sprintf("PSF returned no kernel at (%d,%d)", x, y))
	}
	half := skyBoxScale * (2 + max(kernel.Width, kernel.Height)/2)
	return mi.Median(image.Rect(x-half, y-half, x+half+1, y+half+1)), nil
}
