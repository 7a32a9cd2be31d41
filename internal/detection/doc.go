// Package detection finds the approximate positions of point sources.
//
// The centroid estimator needs a starting pixel near each source. This
// package supplies it: FindPeak climbs to the extremum near a user-supplied
// position and FindPeaks lists the local maxima of a whole frame.
//
// # Algorithm Overview
//
//  1. Grayscale: the frame is reduced to 8-bit luminance
//  2. Smoothing: a Gaussian blur suppresses single-pixel noise and hot pixels
//  3. Search: extrema are located on the smoothed luminance
//  4. Filtering: peaks below threshold or too close to a stronger peak are dropped
//
// Positions are whole pixels. Sub-pixel positions come from the centroid
// package.
//
// # Negative Sources
//
// With negative set, luminance is inverted before the search, so minima (for
// example residuals in a difference image) are found the same way as maxima.
// Thresholds then apply to the inverted value.
//
// # Coordinate System
//
// All coordinates are image coordinates: origin at the top-left corner, X
// increasing rightward, Y increasing downward.
package detection
