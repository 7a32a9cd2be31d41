// Package imaging loads frames and turns them into the intensity and variance
// planes the centroid estimator measures, plus the visual products that go
// with a measurement: postage stamps, centroid overlays and separations.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based image coordinates:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - Sub-pixel positions put pixel centres at integers, so pixel (3, 4)
//     covers [2.5, 3.5) × [3.5, 4.5)
//
// # Intensity and Noise
//
// 16-bit and 8-bit grayscale frames (PNG, TIFF) are used as linear counts.
// Colour frames are reduced to linear luminance. ToMaskedImage estimates the
// sky from the median of the frame and its noise from the median absolute
// deviation, and adds Poisson noise above sky when a gain is given.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Planes returned by the cache
// are shared and must not be modified.
package imaging
