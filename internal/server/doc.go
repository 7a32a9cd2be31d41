// Package server implements the MCP (Model Context Protocol) server for
// sub-pixel centroiding of point sources.
//
// This package provides a JSON-RPC 2.0 server that exposes frame loading,
// peak finding and centroid measurement through the MCP protocol, so an
// MCP client can measure positions on astronomical frames and check them
// visually.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Basic Image Information:
//   - image_load: Load a frame and get metadata
//   - image_dimensions: Get width and height
//   - image_unload: Drop a frame from the cache
//
// Pixel Operations:
//   - image_sample_pixel: Intensity, variance and SNR at a pixel
//   - image_sample_pixels: Sample multiple points
//
// Detection:
//   - image_find_peaks: Local maxima across the frame
//   - image_find_peak: Brightest pixel near a starting point
//
// Centroiding:
//   - image_centroid: Sub-pixel position of one source
//   - image_centroid_batch: Many sources, measured concurrently
//
// Visual Checks:
//   - image_crop_stamp: Enlarged postage stamp around a position
//   - image_mark_centroids: Crosshairs on measured positions
//   - image_measure_separation: Distance and angle between two positions
//
// # Image Caching
//
// Frames and their intensity planes are cached by path and reused across
// tool calls. The cache persists until image_unload or process exit.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: Additional error details (typically the Go error string)
//
// A source that cannot be measured (too close to the edge, no curvature,
// wrong polarity) is not a tool error: the result has "ok": false and a
// "failure" with the failure kind. Missing PSFs and invalid settings are
// tool errors.
//
// # Usage
//
//	cfg, err := config.Load(config.Path(""))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	srv := server.New(cfg, zerolog.New(os.Stderr), "1.0.0")
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
package server
