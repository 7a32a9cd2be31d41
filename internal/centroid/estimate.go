package centroid

import (
	"fmt"
	"math"

	"github.com/rs/zerolog"
)

// Result is a centroid measurement in image positions.
type Result struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	XErr   float64 `json:"x_err"`
	YErr   float64 `json:"y_err"`
	SizeX2 float64 `json:"size_x2"`
	SizeY2 float64 `json:"size_y2"`
	Peak   float64 `json:"peak"` // above Sky; negative for a negative source

	// Sky is the local background the peak was measured against.
	Sky float64 `json:"sky"`

	// BinX and BinY are the bin factors of the returned estimate.
	BinX int `json:"bin_x"`
	BinY int `json:"bin_y"`

	Iterations int  `json:"iterations"`
	Converged  bool `json:"converged"`
	QuarticBad bool `json:"quartic_bad"`
}

// Estimator measures centroids with a fixed configuration. It keeps no
// per-measurement state and is safe for concurrent use as long as the images
// and PSFs passed to it are not modified meanwhile.
type Estimator struct {
	cfg Config
	log zerolog.Logger
}

// Option configures an Estimator.
type Option func(*Estimator)

// WithLogger sets the logger used for per-iteration debug output.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Estimator) {
		e.log = l
	}
}

// NewEstimator validates cfg and returns an Estimator.
func NewEstimator(cfg Config, opts ...Option) (*Estimator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Estimator{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the estimator configuration.
func (e *Estimator) Config() Config {
	return e.cfg
}

// Estimate measures the centroid of the source near image position (x, y).
//
// (x, y) is the current best guess, typically a detection's peak pixel or a
// previous centroid. The patch around it is smoothed with the local PSF and
// refined against the local sky, the median of a box a few smoothing windows
// across; while the object looks too large, or the estimate lands too far
// from the starting pixel, for the current sampling, the patch is binned by a
// further factor of two on the failing axis, up to Config.MaxBin.
//
// Exhausting MaxBin is not an error: the last estimate is returned with
// Converged set to false. Failures are *Error values; a nil psf is
// KindFatalConfiguration.
func (e *Estimator) Estimate(mi *MaskedImage, x, y float64, psf PSF) (*Result, error) {
	if psf == nil {
		return nil, newError(KindFatalConfiguration, "centroiding requires a PSF")
	}
	if mi == nil {
		return nil, newError(KindFatalConfiguration, "no image")
	}

	ix, _ := PositionToIndex(x)
	iy, _ := PositionToIndex(y)
	if !mi.Contains(ix, iy) {
		return nil, newError(KindEdge, fmt.Sprintf("pixel (%d,%d) outside image %v", ix, iy, mi.Bounds()))
	}

	sky, err := localSky(psf, mi, ix, iy)
	if err != nil {
		return nil, err
	}

	binX, binY := 1, 1
	res := Result{Sky: sky}
	for binsize := 1; binsize <= e.cfg.MaxBin; binsize *= 2 {
		res.Iterations++

		smoothed, smoothingSigma, err := smoothAndBin(psf, mi, ix, iy, binX, binY)
		if err != nil {
			return nil, err
		}
		smoothed.Subtract(sky)
		loc := smoothed.Locator(smoothed.X0+smoothed.Width/2, smoothed.Y0+smoothed.Height/2)
		r, err := Refine(loc, smoothingSigma, e.cfg.Negative)
		if err != nil {
			return nil, err
		}

		xc, yc := r.X, r.Y
		dxc, dyc := r.XErr, r.YErr
		sizeX2, sizeY2 := r.SizeX2, r.SizeY2
		if binsize > 1 {
			// dilate from the lower left corner of the central pixel
			bx, by := float64(binX), float64(binY)
			xc = (xc+0.5)*bx - 0.5
			dxc *= bx
			sizeX2 *= bx * bx

			yc = (yc+0.5)*by - 0.5
			dyc *= by
			sizeY2 *= by * by
		}

		res.X = IndexToPosition(float64(ix) + xc)
		res.Y = IndexToPosition(float64(iy) + yc)
		res.XErr = math.Abs(dxc)
		res.YErr = math.Abs(dyc)
		res.SizeX2 = sizeX2
		res.SizeY2 = sizeY2
		res.Peak = r.Peak
		res.BinX, res.BinY = binX, binY
		res.QuarticBad = r.QuarticBad

		fac := e.cfg.WFac * (1 + smoothingSigma*smoothingSigma)
		facX2 := fac * float64(binX*binX)
		facY2 := fac * float64(binY*binY)
		okX := sizeX2 < facX2 && xc*xc < facX2
		okY := sizeY2 < facY2 && yc*yc < facY2

		e.log.Debug().
			Int("bin_x", binX).Int("bin_y", binY).
			Float64("dx", xc).Float64("dy", yc).
			Float64("size_x2", sizeX2).Float64("size_y2", sizeY2).
			Float64("peak", r.Peak).Bool("quartic_bad", r.QuarticBad).
			Msg("centroid iteration")

		if okX && okY && (binsize > 1 || e.peakAcceptable(r.Peak)) {
			res.Converged = true
			return &res, nil
		}

		if !okX {
			binX *= 2
		}
		if !okY {
			binY *= 2
		}
	}

	e.log.Debug().Float64("x", res.X).Float64("y", res.Y).
		Int("bin_max", e.cfg.MaxBin).Msg("centroid did not converge")
	return &res, nil
}

// peakAcceptable applies the PeakMin check to an unbinned estimate. Negative
// sources are compared by depth.
func (e *Estimator) peakAcceptable(peak float64) bool {
	if e.cfg.PeakMin < 0 {
		return true
	}
	if e.cfg.Negative {
		peak = -peak
	}
	return peak > e.cfg.PeakMin
}
