package server

import (
	"testing"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		"image_load",
		"image_dimensions",
		"image_unload",
		"image_sample_pixel",
		"image_sample_pixels",
		"image_find_peaks",
		"image_find_peak",
		"image_centroid",
		"image_centroid_batch",
		"image_crop_stamp",
		"image_mark_centroids",
		"image_measure_separation",
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		if _, dup := toolMap[tool.Name]; dup {
			t.Errorf("tool %s defined twice", tool.Name)
		}
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
	if len(tools) != len(expectedTools) {
		t.Errorf("got %d tools, want %d", len(tools), len(expectedTools))
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want 'object'", tool.InputSchema["type"])
			}

			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties should be a map")
			}

			// every required argument must be described
			required, _ := tool.InputSchema["required"].([]string)
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required argument %q has no property", r)
				}
			}
			if tool.Name != "image_measure_separation" && !contains(required, "path") {
				t.Error("tool should require 'path'")
			}
		})
	}
}

func TestToolDefinitions_CentroidOptions(t *testing.T) {
	tools := make(map[string]Tool)
	for _, tool := range GetToolDefinitions() {
		tools[tool.Name] = tool
	}

	for _, name := range []string{"image_centroid", "image_centroid_batch"} {
		props := tools[name].InputSchema["properties"].(map[string]interface{})
		for _, opt := range []string{"psf_sigma", "psf_fwhm", "negative", "bin_max", "wfac", "peak_min", "refine_peak", "quick"} {
			if _, ok := props[opt]; !ok {
				t.Errorf("%s: missing option %s", name, opt)
			}
		}
	}

	// the shared options must not leak the per-call position arguments
	batch := tools["image_centroid_batch"].InputSchema["properties"].(map[string]interface{})
	if _, ok := batch["x"]; ok {
		t.Error("image_centroid_batch should take positions, not x")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
