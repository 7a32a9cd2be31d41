package centroid

import "fmt"

// Config holds the estimator knobs. It is read-only during a measurement.
type Config struct {
	// MaxBin is the largest bin factor the adaptive loop may reach. Must be
	// a power of two.
	MaxBin int `yaml:"binmax" json:"binmax"`

	// WFac scales the convergence bound on size and offset.
	WFac float64 `yaml:"wfac" json:"wfac"`

	// PeakMin is the minimum peak accepted for an unbinned estimate.
	// Negative disables the check.
	PeakMin float64 `yaml:"peak_min" json:"peak_min"`

	// Negative selects negative-going sources (minima), as found in
	// difference images.
	Negative bool `yaml:"negative" json:"negative"`
}

// DefaultConfig returns the standard settings.
func DefaultConfig() Config {
	return Config{
		MaxBin:  16,
		WFac:    1.5,
		PeakMin: -1,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxBin < 1 || c.MaxBin&(c.MaxBin-1) != 0 {
		return newError(KindFatalConfiguration, fmt.Sprintf("binmax %d is not a positive power of two", c.MaxBin))
	}
	if !(c.WFac > 0) {
		return newError(KindFatalConfiguration, fmt.Sprintf("wfac %g must be positive", c.WFac))
	}
	return nil
}
