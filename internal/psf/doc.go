// Package psf provides point-spread-function models for the centroid
// estimator: a fixed elliptical Gaussian and a Gaussian whose width grows
// across the field.
//
// Both satisfy centroid.PSF. Models are immutable values and safe for
// concurrent use.
package psf
