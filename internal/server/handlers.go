package server

import (
	"encoding/json"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/ironsheep/centroid-mcp/internal/centroid"
	"github.com/ironsheep/centroid-mcp/internal/detection"
	"github.com/ironsheep/centroid-mcp/internal/imaging"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_centroid").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
// Centroid measurement failures are not tool errors; they are reported in
// the result body.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	start := time.Now()
	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}
	s.log.Debug().Str("tool", params.Name).Dur("elapsed", time.Since(start)).Msg("tool done")

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
//
// Each tool handler:
//  1. Unmarshals arguments from JSON
//  2. Applies default values for optional parameters
//  3. Loads images and intensity planes from cache as needed
//  4. Calls the appropriate imaging/detection/centroid function
//  5. Returns the result or error
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	switch name {
	// Basic Image Information
	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_unload":
		return s.handleImageUnload(args)

	// Pixel Operations
	case "image_sample_pixel":
		return s.handleImageSamplePixel(args)
	case "image_sample_pixels":
		return s.handleImageSamplePixels(args)

	// Detection
	case "image_find_peaks":
		return s.handleImageFindPeaks(args)
	case "image_find_peak":
		return s.handleImageFindPeak(args)

	// Centroiding
	case "image_centroid":
		return s.handleImageCentroid(args)
	case "image_centroid_batch":
		return s.handleImageCentroidBatch(args)

	// Visual Checks
	case "image_crop_stamp":
		return s.handleImageCropStamp(args)
	case "image_mark_centroids":
		return s.handleImageMarkCentroids(args)
	case "image_measure_separation":
		return s.handleImageMeasureSeparation(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

func (s *Server) handleImageUnload(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	s.cache.Evict(a.Path)
	return map[string]interface{}{"unloaded": a.Path}, nil
}

// === Pixel Operation Handlers ===

type imageSamplePixelArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

type pixelSampleResult struct {
	*imaging.PixelSample
	Sky         float64 `json:"sky"`
	SkyVariance float64 `json:"sky_variance"`
}

func (s *Server) handleImageSamplePixel(args json.RawMessage) (interface{}, error) {
	var a imageSamplePixelArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, plane, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}
	sample, err := imaging.SamplePixel(plane, img, a.X, a.Y)
	if err != nil {
		return nil, err
	}
	return &pixelSampleResult{PixelSample: sample, Sky: plane.Sky, SkyVariance: plane.SkyVariance}, nil
}

type imageSamplePixelsArgs struct {
	Path   string `json:"path"`
	Points []struct {
		X     int    `json:"x"`
		Y     int    `json:"y"`
		Label string `json:"label,omitempty"`
	} `json:"points"`
}

func (s *Server) handleImageSamplePixels(args json.RawMessage) (interface{}, error) {
	var a imageSamplePixelsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, plane, err := s.loadFrame(a.Path)
	if err != nil {
		return nil, err
	}

	points := make([]imaging.LabeledPoint, len(a.Points))
	for i, p := range a.Points {
		points[i] = imaging.LabeledPoint{X: p.X, Y: p.Y, Label: p.Label}
	}
	samples, err := imaging.SamplePixels(plane, img, points)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"samples":      samples,
		"sky":          plane.Sky,
		"sky_variance": plane.SkyVariance,
	}, nil
}

// loadFrame returns the decoded frame at path and its intensity plane under
// the configured noise model.
func (s *Server) loadFrame(path string) (image.Image, *imaging.Plane, error) {
	img, err := s.cache.Load(path)
	if err != nil {
		return nil, nil, err
	}
	plane, err := s.cache.LoadPlane(path, s.cfg.Noise)
	if err != nil {
		return nil, nil, err
	}
	return img, plane, nil
}

// === Detection Handlers ===

type imageFindPeaksArgs struct {
	Path          string   `json:"path"`
	Threshold     *float64 `json:"threshold"`
	MinSeparation float64  `json:"min_separation"`
	MaxCount      int      `json:"max_count"`
	BlurRadius    *float64 `json:"blur_radius"`
	Negative      *bool    `json:"negative"`
}

func (s *Server) handleImageFindPeaks(args json.RawMessage) (interface{}, error) {
	var a imageFindPeaksArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.MinSeparation == 0 {
		a.MinSeparation = 3
	}
	if a.MaxCount == 0 {
		a.MaxCount = 100
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.FindPeaks(img,
		floatOr(a.Threshold, 32),
		a.MinSeparation,
		a.MaxCount,
		floatOr(a.BlurRadius, 1),
		boolOr(a.Negative, s.cfg.Centroid.Negative))
}

type imageFindPeakArgs struct {
	Path       string   `json:"path"`
	X          int      `json:"x"`
	Y          int      `json:"y"`
	Radius     int      `json:"radius"`
	BlurRadius *float64 `json:"blur_radius"`
	Negative   *bool    `json:"negative"`
}

func (s *Server) handleImageFindPeak(args json.RawMessage) (interface{}, error) {
	var a imageFindPeakArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Radius == 0 {
		a.Radius = 3
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return detection.FindPeak(img, a.X, a.Y, a.Radius,
		floatOr(a.BlurRadius, 1),
		boolOr(a.Negative, s.cfg.Centroid.Negative))
}

// === Visual Check Handlers ===

type imageCropStampArgs struct {
	Path     string  `json:"path"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	HalfSize int     `json:"half_size"`
	Scale    float64 `json:"scale"`
}

func (s *Server) handleImageCropStamp(args json.RawMessage) (interface{}, error) {
	var a imageCropStampArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.HalfSize == 0 {
		a.HalfSize = 10
	}
	if a.Scale == 0 {
		a.Scale = 4
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	ix, _ := centroid.PositionToIndex(a.X)
	iy, _ := centroid.PositionToIndex(a.Y)
	return imaging.CropStamp(img, ix, iy, a.HalfSize, a.Scale)
}

type imageMarkCentroidsArgs struct {
	Path     string         `json:"path"`
	Marks    []imaging.Mark `json:"marks"`
	Color    string         `json:"color"`
	Arm      int            `json:"arm"`
	Numbered bool           `json:"numbered"`
}

func (s *Server) handleImageMarkCentroids(args json.RawMessage) (interface{}, error) {
	var a imageMarkCentroidsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = "#ff0000"
	}
	if a.Arm == 0 {
		a.Arm = 6
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.MarkCentroids(img, a.Marks, a.Color, a.Arm, a.Numbered)
}

type imageMeasureSeparationArgs struct {
	A *imaging.Position `json:"a"`
	B *imaging.Position `json:"b"`
}

func (s *Server) handleImageMeasureSeparation(args json.RawMessage) (interface{}, error) {
	var a imageMeasureSeparationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.A == nil || a.B == nil {
		return nil, fmt.Errorf("both positions a and b are required")
	}
	for _, v := range []float64{a.A.XErr, a.A.YErr, a.B.XErr, a.B.YErr} {
		if v < 0 || math.IsNaN(v) {
			return nil, fmt.Errorf("invalid position error %g", v)
		}
	}
	return imaging.MeasureSeparation(*a.A, *a.B), nil
}

func floatOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
