package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/centroid-mcp/internal/centroid"
	"github.com/ironsheep/centroid-mcp/internal/detection"
	"github.com/ironsheep/centroid-mcp/internal/imaging"
	"github.com/ironsheep/centroid-mcp/internal/logger"
	"github.com/ironsheep/centroid-mcp/internal/psf"
)

// defaultSearchRadius is the refine_peak search radius in pixels.
const defaultSearchRadius = 3

// centroidOptions are the measurement arguments shared by image_centroid and
// image_centroid_batch. Pointer fields fall back to the server config.
type centroidOptions struct {
	Path         string   `json:"path"`
	PSFSigma     float64  `json:"psf_sigma"`
	PSFFWHM      float64  `json:"psf_fwhm"`
	PSFSigmaY    float64  `json:"psf_sigma_y"`
	PSFTheta     float64  `json:"psf_theta"`
	RadialScale  *float64 `json:"psf_radial_scale"`
	OriginX      *float64 `json:"psf_origin_x"`
	OriginY      *float64 `json:"psf_origin_y"`
	Negative     *bool    `json:"negative"`
	BinMax       *int     `json:"bin_max"`
	WFac         *float64 `json:"wfac"`
	PeakMin      *float64 `json:"peak_min"`
	RefinePeak   bool     `json:"refine_peak"`
	SearchRadius int      `json:"search_radius"`
	Quick        bool     `json:"quick"`
}

type imageCentroidArgs struct {
	centroidOptions
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

type batchPosition struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Label string  `json:"label,omitempty"`
}

type imageCentroidBatchArgs struct {
	centroidOptions
	Positions []batchPosition `json:"positions"`
}

// measurementFailure is a centroiding failure reported in a result body.
type measurementFailure struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail"`
}

// centroidResult is one measured source. Errors and sizes that are not
// finite are reported as null.
type centroidResult struct {
	Label  string  `json:"label,omitempty"`
	InputX float64 `json:"input_x"`
	InputY float64 `json:"input_y"`
	OK     bool    `json:"ok"`

	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	XErr       *float64 `json:"x_err,omitempty"`
	YErr       *float64 `json:"y_err,omitempty"`
	SizeX2     *float64 `json:"size_x2,omitempty"`
	SizeY2     *float64 `json:"size_y2,omitempty"`
	Peak       *float64 `json:"peak,omitempty"`
	Sky        *float64 `json:"sky,omitempty"`
	BinX       int      `json:"bin_x,omitempty"`
	BinY       int      `json:"bin_y,omitempty"`
	Iterations int      `json:"iterations,omitempty"`
	Converged  bool     `json:"converged"`
	QuarticBad bool     `json:"quartic_bad,omitempty"`
	Quick      bool     `json:"quick,omitempty"`

	// Seed is the peak pixel the measurement started from when refine_peak
	// was requested.
	Seed *detection.PeakResult `json:"seed,omitempty"`

	Failure *measurementFailure `json:"failure,omitempty"`
}

// CentroidBatchResult contains one entry per requested position, in order.
type CentroidBatchResult struct {
	Results   []*centroidResult `json:"results"`
	Count     int               `json:"count"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
}

// measurement is everything resolved once per call: the frame, its plane,
// the PSF and the estimator.
type measurement struct {
	opts   centroidOptions
	img    image.Image
	plane  *imaging.Plane
	gauss  psf.Gaussian // PSF at the origin
	psf    centroid.PSF
	hasPSF bool
	est    *centroid.Estimator
	radius int
}

func (s *Server) handleImageCentroid(args json.RawMessage) (interface{}, error) {
	var a imageCentroidArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.X == nil || a.Y == nil {
		return nil, fmt.Errorf("x and y are required")
	}

	m, err := s.prepareMeasurement(a.centroidOptions)
	if err != nil {
		return nil, err
	}
	return m.measure(*a.X, *a.Y, "")
}

func (s *Server) handleImageCentroidBatch(args json.RawMessage) (interface{}, error) {
	var a imageCentroidBatchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if len(a.Positions) == 0 {
		return nil, fmt.Errorf("positions must not be empty")
	}
	if len(a.Positions) > s.cfg.Server.MaxBatch {
		return nil, fmt.Errorf("batch of %d positions exceeds max_batch %d", len(a.Positions), s.cfg.Server.MaxBatch)
	}

	m, err := s.prepareMeasurement(a.centroidOptions)
	if err != nil {
		return nil, err
	}

	results := make([]*centroidResult, len(a.Positions))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(s.cfg.Server.MaxConcurrency)
	for i, p := range a.Positions {
		i, p := i, p
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := m.measure(p.X, p.Y, p.Label)
			if err != nil {
				return fmt.Errorf("position %d: %w", i, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &CentroidBatchResult{Results: results, Count: len(results)}
	for _, r := range results {
		if r.OK {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	s.log.Info().Str("path", a.Path).Int("count", out.Count).
		Int("failed", out.Failed).Msg("centroid batch")
	return out, nil
}

// prepareMeasurement loads the frame and resolves the PSF and estimator
// settings. Every error returned here is a tool error.
func (s *Server) prepareMeasurement(o centroidOptions) (*measurement, error) {
	cfg := s.cfg.Centroid
	if o.Negative != nil {
		cfg.Negative = *o.Negative
	}
	if o.BinMax != nil {
		cfg.MaxBin = *o.BinMax
	}
	if o.WFac != nil {
		cfg.WFac = *o.WFac
	}
	if o.PeakMin != nil {
		cfg.PeakMin = *o.PeakMin
	}

	log := logger.Component(s.log, "centroid").With().Str("path", o.Path).Logger()
	est, err := centroid.NewEstimator(cfg, centroid.WithLogger(log))
	if err != nil {
		return nil, err
	}

	m := &measurement{opts: o, est: est, radius: o.SearchRadius}
	if m.radius == 0 {
		m.radius = defaultSearchRadius
	}
	if m.radius < 0 {
		return nil, fmt.Errorf("invalid search_radius %d", m.radius)
	}

	m.gauss, m.hasPSF, err = s.resolvePSF(o)
	if err != nil {
		return nil, err
	}
	if !m.hasPSF && !o.Quick {
		return nil, fmt.Errorf("%w: no PSF: pass psf_sigma or psf_fwhm, or set psf.sigma in the config",
			centroid.ErrFatalConfiguration)
	}

	m.img, m.plane, err = s.loadFrame(o.Path)
	if err != nil {
		return nil, err
	}
	if m.hasPSF {
		m.psf, err = s.fieldPSF(o, m.gauss, m.img.Bounds())
		if err != nil {
			return nil, err
		}
	}
	return m, nil
}

// fieldPSF wraps g in a field-dependent PSF when a radial scale is set by
// the call or the config. The origin defaults to the frame centre.
func (s *Server) fieldPSF(o centroidOptions, g psf.Gaussian, bounds image.Rectangle) (centroid.PSF, error) {
	scale := s.cfg.PSF.RadialScale
	if o.RadialScale != nil {
		scale = *o.RadialScale
	}
	if scale < 0 || math.IsNaN(scale) {
		return nil, fmt.Errorf("%w: psf_radial_scale %g must be non-negative", centroid.ErrFatalConfiguration, scale)
	}
	if scale == 0 {
		return g, nil
	}

	v := psf.Varying{
		Base:        g,
		OriginX:     centroid.IndexToPosition(float64(bounds.Min.X+bounds.Max.X-1) / 2),
		OriginY:     centroid.IndexToPosition(float64(bounds.Min.Y+bounds.Max.Y-1) / 2),
		RadialScale: scale,
	}
	if s.cfg.PSF.OriginX != nil {
		v.OriginX = *s.cfg.PSF.OriginX
	}
	if s.cfg.PSF.OriginY != nil {
		v.OriginY = *s.cfg.PSF.OriginY
	}
	if o.OriginX != nil {
		v.OriginX = *o.OriginX
	}
	if o.OriginY != nil {
		v.OriginY = *o.OriginY
	}
	return v, nil
}

// resolvePSF builds the Gaussian PSF from the call arguments, falling back to
// the configured default. The bool is false when neither gives one.
func (s *Server) resolvePSF(o centroidOptions) (psf.Gaussian, bool, error) {
	if o.PSFSigma < 0 || o.PSFFWHM < 0 || o.PSFSigmaY < 0 {
		return psf.Gaussian{}, false, fmt.Errorf("%w: PSF widths must be positive", centroid.ErrFatalConfiguration)
	}

	var g psf.Gaussian
	switch {
	case o.PSFSigma > 0:
		g = psf.NewGaussian(o.PSFSigma)
	case o.PSFFWHM > 0:
		g = psf.FromFWHM(o.PSFFWHM)
	case s.cfg.PSF.Sigma > 0:
		g = psf.NewGaussian(s.cfg.PSF.Sigma)
	default:
		return g, false, nil
	}
	if o.PSFSigmaY > 0 {
		g.SigmaY = o.PSFSigmaY
	}
	g.Theta = o.PSFTheta
	if s.cfg.PSF.NSigma > 0 {
		g.NSigma = s.cfg.PSF.NSigma
	}
	if err := g.Validate(); err != nil {
		return g, false, fmt.Errorf("%w: %v", centroid.ErrFatalConfiguration, err)
	}
	return g, true, nil
}

// measure centroids the source near (x, y). Measurement failures are
// returned in the result; only fatal errors are returned as errors.
func (m *measurement) measure(x, y float64, label string) (*centroidResult, error) {
	out := &centroidResult{Label: label, InputX: x, InputY: y}
	negative := m.est.Config().Negative

	ix, _ := centroid.PositionToIndex(x)
	iy, _ := centroid.PositionToIndex(y)
	if m.opts.RefinePeak && image.Pt(ix, iy).In(m.img.Bounds()) {
		seed, err := detection.FindPeak(m.img, ix, iy, m.radius, m.blurRadius(), negative)
		if err != nil {
			return nil, err
		}
		out.Seed = seed
		x, y = float64(seed.X), float64(seed.Y)
		ix, iy = seed.X, seed.Y
	}

	if m.opts.Quick {
		r, err := centroid.RefineQuick(m.plane.Masked, ix, iy, negative)
		if err != nil {
			return out, failed(out, err)
		}
		out.setQuick(ix, iy, r)
		return out, nil
	}

	res, err := m.est.Estimate(m.plane.Masked, x, y, m.psf)
	if err != nil {
		return out, failed(out, err)
	}
	out.setResult(res)
	return out, nil
}

// blurRadius is the detection blur used for refine_peak, about the PSF width.
func (m *measurement) blurRadius() float64 {
	if !m.hasPSF {
		return 1
	}
	return math.Ceil(math.Max(m.gauss.SigmaX, m.gauss.SigmaY))
}

// failed records a measurement failure on out, or passes a fatal error on.
func failed(out *centroidResult, err error) error {
	var cerr *centroid.Error
	if centroid.IsFatal(err) || !errors.As(err, &cerr) {
		return err
	}
	out.Failure = &measurementFailure{Kind: cerr.Kind.String(), Detail: cerr.Error()}
	return nil
}

func (out *centroidResult) setResult(res *centroid.Result) {
	out.OK = true
	out.X, out.Y = finite(res.X), finite(res.Y)
	out.XErr, out.YErr = finite(res.XErr), finite(res.YErr)
	out.SizeX2, out.SizeY2 = finite(res.SizeX2), finite(res.SizeY2)
	out.Peak = finite(res.Peak)
	out.Sky = finite(res.Sky)
	out.BinX, out.BinY = res.BinX, res.BinY
	out.Iterations = res.Iterations
	out.Converged = res.Converged
	out.QuarticBad = res.QuarticBad
}

func (out *centroidResult) setQuick(ix, iy int, r *centroid.Refinement) {
	out.setResult(&centroid.Result{
		X:          centroid.IndexToPosition(float64(ix) + r.X),
		Y:          centroid.IndexToPosition(float64(iy) + r.Y),
		XErr:       math.Abs(r.XErr),
		YErr:       math.Abs(r.YErr),
		SizeX2:     r.SizeX2,
		SizeY2:     r.SizeY2,
		Peak:       r.Peak,
		BinX:       1,
		BinY:       1,
		Iterations: 1,
		Converged:  true,
		QuarticBad: r.QuarticBad,
	})
	// raw pixels, not measured against a sky level
	out.Sky = nil
	out.Quick = true
}

// finite returns nil for NaN and infinities, which JSON cannot carry.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
