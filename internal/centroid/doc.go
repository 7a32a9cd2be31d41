// Package centroid measures sub-pixel positions of point sources.
//
// The estimator smooths a small patch around an approximate position with the
// local PSF, fits the peak of the smoothed patch with a quadratic through the
// central 3×3 pixels, and corrects that estimate with quartic interpolation
// along the three rows and three columns. Objects that are wide or badly
// sampled compared to the pixel grid are handled by binning the patch by
// powers of two until the size and offset estimates are consistent with the
// sampling. Estimate measures the smoothed patch against the local sky, the
// median of a box around the start pixel.
//
// # Coordinates
//
// MaskedImage pixels are addressed in parent coordinates. Positions are
// continuous with pixel centres at integers (see IndexToPosition).
//
// # Errors
//
// Measurement failures are *Error values with a Kind (edge, vanishing
// curvature, wrong curvature sign). KindFatalConfiguration marks failures
// that no retry can fix, such as a missing PSF. Non-convergence of the
// binning loop is reported on the Result, not as an error.
//
// # Thread Safety
//
// Estimate allocates all intermediate images per call; concurrent calls are
// safe on images and PSFs that are not being modified.
package centroid
