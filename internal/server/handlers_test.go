package server

import (
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// star is a Gaussian source drawn by writeStarFrame.
type star struct {
	x, y, amp, sigma float64
}

// writeStarFrame writes a 16-bit grayscale PNG with the given sources on a
// flat background and returns its path.
func writeStarFrame(t *testing.T, width, height int, background float64, stars ...star) string {
	t.Helper()

	img := image.NewGray16(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := background
			for _, s := range stars {
				dx, dy := float64(x)-s.x, float64(y)-s.y
				v += s.amp * math.Exp(-(dx*dx+dy*dy)/(2*s.sigma*s.sigma))
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(v))})
		}
	}

	path := filepath.Join(t.TempDir(), "frame.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create frame: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode frame: %v", err)
	}
	return path
}

// testStar is the source used by most tool tests.
var testStar = star{x: 20.3, y: 19.8, amp: 50000, sigma: 1.5}

func writeTestFrame(t *testing.T) string {
	t.Helper()
	return writeStarFrame(t, 41, 41, 1000, testStar)
}

// callTool runs a tools/call request through handleRequest.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}
	resp := s.handleRequest(&MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unmarshals the JSON text content of a successful tool call.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatal("Result should be a map")
	}
	content, ok := result["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("unexpected content: %v", result["content"])
	}
	if content[0]["type"] != "text" {
		t.Errorf("content type: got %v, want text", content[0]["type"])
	}
	text, _ := content[0]["text"].(string)
	if err := json.Unmarshal([]byte(text), v); err != nil {
		t.Fatalf("failed to decode %q: %v", text, err)
	}
}

// toolError returns the error data string of a failed tool call.
func toolError(t *testing.T, resp *MCPResponse) string {
	t.Helper()
	if resp.Error == nil {
		t.Fatalf("expected a tool error, got %v", resp.Result)
	}
	if resp.Error.Code != -32000 {
		t.Errorf("error code: got %d, want -32000", resp.Error.Code)
	}
	data, _ := resp.Error.Data.(string)
	return data
}

func TestHandleToolsCall_ImageLoad(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	var info struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Format     string `json:"format"`
		ColorDepth string `json:"color_depth"`
		Grayscale  bool   `json:"grayscale"`
	}
	decodeResult(t, callTool(t, s, "image_load", map[string]interface{}{"path": path}), &info)

	if info.Width != 41 || info.Height != 41 {
		t.Errorf("size: got %dx%d, want 41x41", info.Width, info.Height)
	}
	if info.Format != "png" || info.ColorDepth != "16-bit" || !info.Grayscale {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestHandleToolsCall_ImageDimensions(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeStarFrame(t, 30, 20, 100)

	var dims struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	}
	decodeResult(t, callTool(t, s, "image_dimensions", map[string]interface{}{"path": path}), &dims)
	if dims.Width != 30 || dims.Height != 20 {
		t.Errorf("got %dx%d, want 30x20", dims.Width, dims.Height)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t, nil)
	resp := callTool(t, s, "image_load", map[string]interface{}{"path": "/nonexistent/image.png"})
	if data := toolError(t, resp); !strings.Contains(data, "failed to open image") {
		t.Errorf("error data: got %q", data)
	}
}

func TestHandleToolsCall_UnknownTool(t *testing.T) {
	s := newTestServer(t, nil)
	resp := callTool(t, s, "image_ocr_full", map[string]interface{}{})
	if data := toolError(t, resp); !strings.Contains(data, "unknown tool") {
		t.Errorf("error data: got %q", data)
	}
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t, nil)
	resp := s.handleToolsCall(&MCPRequest{JSONRPC: "2.0", ID: 1, Params: json.RawMessage(`[1,2]`)})
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Errorf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandleToolsCall_ImageUnload(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	callTool(t, s, "image_load", map[string]interface{}{"path": path})
	var out map[string]string
	decodeResult(t, callTool(t, s, "image_unload", map[string]interface{}{"path": path}), &out)
	if out["unloaded"] != path {
		t.Errorf("unloaded: got %q", out["unloaded"])
	}

	// the file is still readable, so a fresh load succeeds
	if resp := callTool(t, s, "image_dimensions", map[string]interface{}{"path": path}); resp.Error != nil {
		t.Errorf("reload failed: %+v", resp.Error)
	}
}

func TestHandleToolsCall_SamplePixel(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	var sample struct {
		X         int     `json:"x"`
		Y         int     `json:"y"`
		Intensity float64 `json:"intensity"`
		Variance  float64 `json:"variance"`
		SNR       float64 `json:"snr"`
		Sky       float64 `json:"sky"`
	}
	decodeResult(t, callTool(t, s, "image_sample_pixel", map[string]interface{}{
		"path": path, "x": 20, "y": 20,
	}), &sample)

	if sample.X != 20 || sample.Y != 20 {
		t.Errorf("position: got (%d,%d)", sample.X, sample.Y)
	}
	if math.Abs(sample.Intensity-49576) > 1 {
		t.Errorf("intensity: got %g, want about 49576", sample.Intensity)
	}
	if sample.Sky != 1000 {
		t.Errorf("sky: got %g, want 1000", sample.Sky)
	}
	// flat sky and no noise model: unit variance
	if sample.Variance != 1 {
		t.Errorf("variance: got %g, want 1", sample.Variance)
	}
	if math.Abs(sample.SNR-(sample.Intensity-1000)) > 1e-9 {
		t.Errorf("snr: got %g", sample.SNR)
	}
}

func TestHandleToolsCall_SamplePixelOutOfBounds(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)
	resp := callTool(t, s, "image_sample_pixel", map[string]interface{}{"path": path, "x": 41, "y": 0})
	if data := toolError(t, resp); !strings.Contains(data, "outside image bounds") {
		t.Errorf("error data: got %q", data)
	}
}

func TestHandleToolsCall_SamplePixels(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	var out struct {
		Samples []struct {
			Label     string  `json:"label"`
			Intensity float64 `json:"intensity"`
		} `json:"samples"`
		Sky float64 `json:"sky"`
	}
	decodeResult(t, callTool(t, s, "image_sample_pixels", map[string]interface{}{
		"path": path,
		"points": []map[string]interface{}{
			{"x": 20, "y": 20, "label": "star"},
			{"x": 0, "y": 0, "label": "sky"},
		},
	}), &out)

	if len(out.Samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(out.Samples))
	}
	if out.Samples[0].Label != "star" || out.Samples[1].Label != "sky" {
		t.Errorf("labels out of order: %+v", out.Samples)
	}
	if out.Samples[1].Intensity != 1000 {
		t.Errorf("sky pixel: got %g, want 1000", out.Samples[1].Intensity)
	}
}

func TestHandleToolsCall_FindPeaks(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeStarFrame(t, 61, 41, 1000,
		star{x: 15.2, y: 20.1, amp: 50000, sigma: 1.5},
		star{x: 44.7, y: 19.6, amp: 30000, sigma: 1.5})

	var res struct {
		Peaks []struct {
			X     int     `json:"x"`
			Y     int     `json:"y"`
			Value float64 `json:"value"`
		} `json:"peaks"`
		Count int `json:"count"`
	}
	decodeResult(t, callTool(t, s, "image_find_peaks", map[string]interface{}{"path": path}), &res)

	if res.Count != 2 {
		t.Fatalf("got %d peaks, want 2: %+v", res.Count, res.Peaks)
	}
	if res.Peaks[0].X != 15 || res.Peaks[0].Y != 20 {
		t.Errorf("brightest peak: got (%d,%d), want (15,20)", res.Peaks[0].X, res.Peaks[0].Y)
	}
	if res.Peaks[1].X != 45 || res.Peaks[1].Y != 20 {
		t.Errorf("second peak: got (%d,%d), want (45,20)", res.Peaks[1].X, res.Peaks[1].Y)
	}
}

func TestHandleToolsCall_FindPeak(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	var res struct {
		X     int     `json:"x"`
		Y     int     `json:"y"`
		Shift float64 `json:"shift"`
	}
	decodeResult(t, callTool(t, s, "image_find_peak", map[string]interface{}{
		"path": path, "x": 22, "y": 21,
	}), &res)

	if res.X != 20 || res.Y != 20 {
		t.Errorf("peak: got (%d,%d), want (20,20)", res.X, res.Y)
	}
	if math.Abs(res.Shift-math.Sqrt(5)) > 1e-9 {
		t.Errorf("shift: got %g, want sqrt(5)", res.Shift)
	}
}

func TestHandleToolsCall_CropStamp(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	var res struct {
		Width       int    `json:"width"`
		Height      int    `json:"height"`
		X1          int    `json:"x1"`
		Y1          int    `json:"y1"`
		ImageBase64 string `json:"image_base64"`
		MimeType    string `json:"mime_type"`
	}
	decodeResult(t, callTool(t, s, "image_crop_stamp", map[string]interface{}{
		"path": path, "x": 20.3, "y": 19.8, "half_size": 5, "scale": 2,
	}), &res)

	if res.Width != 22 || res.Height != 22 {
		t.Errorf("stamp size: got %dx%d, want 22x22", res.Width, res.Height)
	}
	if res.X1 != 15 || res.Y1 != 15 {
		t.Errorf("stamp origin: got (%d,%d), want (15,15)", res.X1, res.Y1)
	}
	if res.MimeType != "image/png" || res.ImageBase64 == "" {
		t.Errorf("unexpected encoding: %s, %d bytes", res.MimeType, len(res.ImageBase64))
	}
}

func TestHandleToolsCall_CropStampOutside(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)
	resp := callTool(t, s, "image_crop_stamp", map[string]interface{}{"path": path, "x": 2, "y": 2})
	toolError(t, resp)
}

func TestHandleToolsCall_MarkCentroids(t *testing.T) {
	s := newTestServer(t, nil)
	path := writeTestFrame(t)

	var res struct {
		Width  int `json:"width"`
		Height int `json:"height"`
		Marked int `json:"marked"`
	}
	decodeResult(t, callTool(t, s, "image_mark_centroids", map[string]interface{}{
		"path":     path,
		"marks":    []map[string]float64{{"x": 20.3, "y": 19.8}, {"x": 100, "y": 100}},
		"numbered": true,
	}), &res)

	if res.Width != 41 || res.Height != 41 {
		t.Errorf("size: got %dx%d", res.Width, res.Height)
	}
	if res.Marked != 1 {
		t.Errorf("marked: got %d, want 1", res.Marked)
	}
}

func TestHandleToolsCall_MeasureSeparation(t *testing.T) {
	s := newTestServer(t, nil)

	var res struct {
		DistancePixels float64 `json:"distance_pixels"`
		AngleDegrees   float64 `json:"angle_degrees"`
	}
	decodeResult(t, callTool(t, s, "image_measure_separation", map[string]interface{}{
		"a": map[string]float64{"x": 10, "y": 10},
		"b": map[string]float64{"x": 13, "y": 14},
	}), &res)

	if math.Abs(res.DistancePixels-5) > 1e-9 {
		t.Errorf("distance: got %g, want 5", res.DistancePixels)
	}
	if math.Abs(res.AngleDegrees-53.130102) > 1e-5 {
		t.Errorf("angle: got %g", res.AngleDegrees)
	}
}

func TestHandleToolsCall_MeasureSeparationInvalid(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing b", map[string]interface{}{"a": map[string]float64{"x": 1, "y": 1}}},
		{"negative error", map[string]interface{}{
			"a": map[string]float64{"x": 1, "y": 1, "x_err": -0.1},
			"b": map[string]float64{"x": 2, "y": 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toolError(t, callTool(t, s, "image_measure_separation", tt.args))
		})
	}
}
