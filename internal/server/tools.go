package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file (PNG, TIFF, JPEG or GIF)",
	}
}

// centroidProperties returns the measurement options shared by
// image_centroid and image_centroid_batch.
func centroidProperties() map[string]interface{} {
	return map[string]interface{}{
		"path": pathProperty(),
		"psf_sigma": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian PSF sigma in pixels. Defaults to psf.sigma from the server config",
		},
		"psf_fwhm": map[string]interface{}{
			"type":        "number",
			"description": "Gaussian PSF FWHM in pixels, used when psf_sigma is not given",
		},
		"psf_sigma_y": map[string]interface{}{
			"type":        "number",
			"description": "Sigma of the second PSF axis for an elliptical PSF (default: same as psf_sigma)",
		},
		"psf_theta": map[string]interface{}{
			"type":        "number",
			"description": "Position angle of the first PSF axis in radians, counter-clockwise from +x",
		},
		"psf_radial_scale": map[string]interface{}{
			"type":        "number",
			"description": "Fractional growth of the PSF sigmas per pixel of distance from the PSF origin; 0 keeps the PSF constant (default: psf.radial_scale from the server config)",
		},
		"psf_origin_x": map[string]interface{}{
			"type":        "number",
			"description": "X position where the PSF equals psf_sigma (default: frame centre)",
		},
		"psf_origin_y": map[string]interface{}{
			"type":        "number",
			"description": "Y position where the PSF equals psf_sigma (default: frame centre)",
		},
		"negative": map[string]interface{}{
			"type":        "boolean",
			"description": "Measure a negative-going source (a minimum, as in difference images)",
		},
		"bin_max": map[string]interface{}{
			"type":        "integer",
			"description": "Largest bin factor for wide sources, a power of two (default 16)",
		},
		"wfac": map[string]interface{}{
			"type":        "number",
			"description": "Convergence factor on size and offset (default 1.5)",
		},
		"peak_min": map[string]interface{}{
			"type":        "number",
			"description": "Minimum smoothed peak to accept without binning; negative disables (default -1)",
		},
		"refine_peak": map[string]interface{}{
			"type":        "boolean",
			"description": "Move the starting position to the brightest nearby pixel before measuring",
			"default":     false,
		},
		"search_radius": map[string]interface{}{
			"type":        "integer",
			"description": "Search radius in pixels for refine_peak (default 3)",
			"default":     3,
		},
		"quick": map[string]interface{}{
			"type":        "boolean",
			"description": "Fit the raw 3x3 pixels without smoothing or binning. Needs no PSF",
			"default":     false,
		},
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	single := centroidProperties()
	single["x"] = map[string]interface{}{
		"type":        "number",
		"description": "Approximate X position of the source (pixel centres at integers)",
	}
	single["y"] = map[string]interface{}{
		"type":        "number",
		"description": "Approximate Y position of the source",
	}

	batch := centroidProperties()
	batch["positions"] = map[string]interface{}{
		"type":        "array",
		"description": "Approximate source positions, e.g. from image_find_peaks",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x":     map[string]interface{}{"type": "number"},
				"y":     map[string]interface{}{"type": "number"},
				"label": map[string]interface{}{"type": "string"},
			},
			"required": []string{"x", "y"},
		},
	}

	return []Tool{
		// Basic Image Information
		{
			Name:        "image_load",
			Description: "Load an image file and return its dimensions, format and bit depth. 16-bit grayscale frames keep their full range.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_dimensions",
			Description: "Get the width and height of an image file.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_unload",
			Description: "Drop an image and its intensity planes from the server cache.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Pixel Operations
		{
			Name:        "image_sample_pixel",
			Description: "Get the linear intensity, variance and signal-to-noise of one pixel, with the frame's sky level.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x": map[string]interface{}{
						"type":        "integer",
						"description": "X coordinate (0-based, from left)",
					},
					"y": map[string]interface{}{
						"type":        "integer",
						"description": "Y coordinate (0-based, from top)",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "image_sample_pixels",
			Description: "Sample intensity and variance at multiple labeled points in one call.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"points": map[string]interface{}{
						"type":        "array",
						"description": "Array of {x, y, label} objects",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x":     map[string]interface{}{"type": "integer"},
								"y":     map[string]interface{}{"type": "integer"},
								"label": map[string]interface{}{"type": "string"},
							},
							"required": []string{"x", "y"},
						},
					},
				},
				"required": []string{"path", "points"},
			},
		},

		// Detection
		{
			Name:        "image_find_peaks",
			Description: "Find local maxima of the smoothed frame, strongest first. Use the peaks as starting positions for image_centroid_batch.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"threshold": map[string]interface{}{
						"type":        "number",
						"description": "Minimum smoothed luminance (0-255) of a peak (default 32)",
						"default":     32,
					},
					"min_separation": map[string]interface{}{
						"type":        "number",
						"description": "Minimum distance in pixels between reported peaks (default 3)",
						"default":     3,
					},
					"max_count": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of peaks to return (default 100)",
						"default":     100,
					},
					"blur_radius": map[string]interface{}{
						"type":        "number",
						"description": "Radius of the Gaussian blur applied before searching; 0 disables (default 1)",
						"default":     1,
					},
					"negative": map[string]interface{}{
						"type":        "boolean",
						"description": "Find minima instead of maxima",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_find_peak",
			Description: "Find the brightest pixel of the smoothed frame near a starting pixel.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x":    map[string]interface{}{"type": "integer", "description": "Starting X"},
					"y":    map[string]interface{}{"type": "integer", "description": "Starting Y"},
					"radius": map[string]interface{}{
						"type":        "integer",
						"description": "Search radius in pixels (default 3)",
						"default":     3,
					},
					"blur_radius": map[string]interface{}{
						"type":        "number",
						"description": "Radius of the Gaussian blur applied before searching (default 1)",
						"default":     1,
					},
					"negative": map[string]interface{}{
						"type":        "boolean",
						"description": "Find the darkest pixel instead",
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},

		// Centroiding
		{
			Name: "image_centroid",
			Description: "Measure the sub-pixel centroid of one source with its one-sigma errors. " +
				"The patch is smoothed with the PSF and binned for wide sources. " +
				"Measurement failures are reported in the result with a failure kind.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": single,
				"required":   []string{"path", "x", "y"},
			},
		},
		{
			Name: "image_centroid_batch",
			Description: "Measure centroids of many sources concurrently with the same PSF and settings. " +
				"Each entry reports its own result or failure.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": batch,
				"required":   []string{"path", "positions"},
			},
		},

		// Visual Checks
		{
			Name:        "image_crop_stamp",
			Description: "Cut a square postage stamp around a position and return it as base64-encoded PNG, enlarged for inspection.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"x":    map[string]interface{}{"type": "number", "description": "Centre X position"},
					"y":    map[string]interface{}{"type": "number", "description": "Centre Y position"},
					"half_size": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels on each side of the centre pixel (default 10)",
						"default":     10,
					},
					"scale": map[string]interface{}{
						"type":        "number",
						"description": "Enlargement factor, nearest-neighbour (default 4)",
						"default":     4,
					},
				},
				"required": []string{"path", "x", "y"},
			},
		},
		{
			Name:        "image_mark_centroids",
			Description: "Return the frame as base64-encoded PNG with a crosshair on each measured position.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"marks": map[string]interface{}{
						"type":        "array",
						"description": "Array of {x, y} positions",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"x": map[string]interface{}{"type": "number"},
								"y": map[string]interface{}{"type": "number"},
							},
							"required": []string{"x", "y"},
						},
					},
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Crosshair color as hex (default #ff0000)",
						"default":     "#ff0000",
					},
					"arm": map[string]interface{}{
						"type":        "integer",
						"description": "Crosshair arm length in pixels (default 6)",
						"default":     6,
					},
					"numbered": map[string]interface{}{
						"type":        "boolean",
						"description": "Label each crosshair with its 1-based index",
						"default":     false,
					},
				},
				"required": []string{"path", "marks"},
			},
		},
		{
			Name:        "image_measure_separation",
			Description: "Distance and position angle between two measured positions, with propagated errors.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"a": positionSchema("First position"),
					"b": positionSchema("Second position"),
				},
				"required": []string{"a", "b"},
			},
		},
	}
}

func positionSchema(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "object",
		"description": description,
		"properties": map[string]interface{}{
			"x":     map[string]interface{}{"type": "number"},
			"y":     map[string]interface{}{"type": "number"},
			"x_err": map[string]interface{}{"type": "number"},
			"y_err": map[string]interface{}{"type": "number"},
		},
		"required": []string{"x", "y"},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
