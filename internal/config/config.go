// Package config loads the server configuration from YAML.
//
// Every field has a default, so the server runs without a file. A file only
// needs the keys it changes:
//
//	centroid:
//	  binmax: 8
//	  wfac: 1.5
//	noise:
//	  gain: 1.8
//	  read_noise: 4.5
//	psf:
//	  sigma: 1.3
//	  radial_scale: 0.001
//	log:
//	  level: debug
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/centroid-mcp/internal/centroid"
	"github.com/ironsheep/centroid-mcp/internal/imaging"
	"github.com/ironsheep/centroid-mcp/internal/logger"
)

// Environment variables read by Path and ApplyEnv.
const (
	EnvConfigPath = "CENTROID_MCP_CONFIG"
	EnvLogLevel   = "CENTROID_MCP_LOG_LEVEL"
)

// Config is the complete server configuration.
type Config struct {
	Centroid centroid.Config    `yaml:"centroid"`
	Noise    imaging.NoiseModel `yaml:"noise"`
	PSF      PSFConfig          `yaml:"psf"`
	Server   ServerConfig       `yaml:"server"`
	Log      LogConfig          `yaml:"log"`
}

// PSFConfig is the PSF used when a tool call does not specify one.
type PSFConfig struct {
	// Sigma is the Gaussian sigma in pixels. Zero means no default PSF:
	// centroid calls must then pass psf_sigma or psf_fwhm.
	Sigma float64 `yaml:"sigma"`

	// NSigma is the kernel half-size in units of sigma.
	NSigma float64 `yaml:"nsigma"`

	// RadialScale makes the PSF field dependent: both sigmas grow by this
	// fraction per pixel of distance from the origin. Zero keeps the PSF
	// constant across the frame.
	RadialScale float64 `yaml:"radial_scale"`

	// OriginX, OriginY is where the PSF equals Sigma. Unset means the
	// frame centre.
	OriginX *float64 `yaml:"origin_x"`
	OriginY *float64 `yaml:"origin_y"`
}

// ServerConfig bounds the work a single request may start.
type ServerConfig struct {
	// MaxConcurrency is the number of centroids a batch measures at once.
	MaxConcurrency int `yaml:"max_concurrency"`

	// MaxBatch is the largest number of positions one batch call accepts.
	MaxBatch int `yaml:"max_batch"`
}

// LogConfig selects log verbosity and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Centroid: centroid.DefaultConfig(),
		PSF:      PSFConfig{NSigma: 3},
		Server: ServerConfig{
			MaxConcurrency: runtime.NumCPU(),
			MaxBatch:       1000,
		},
		Log: LogConfig{Level: "info", Format: logger.FormatJSON},
	}
}

// Path returns the config file to load: flagValue if set, otherwise the
// CENTROID_MCP_CONFIG environment variable. Empty means none.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvConfigPath)
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result. An empty path yields the defaults.
// A named file that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto cfg. Unknown keys are rejected so typos surface.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv applies environment overrides.
func (c *Config) ApplyEnv() {
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.Log.Level = level
	}
}

// Validate checks every setting.
func (c *Config) Validate() error {
	if err := c.Centroid.Validate(); err != nil {
		return fmt.Errorf("centroid: %w", err)
	}
	if !nonNegative(c.Noise.Gain) {
		return fmt.Errorf("noise: gain %g must be non-negative", c.Noise.Gain)
	}
	if !nonNegative(c.Noise.ReadNoise) {
		return fmt.Errorf("noise: read_noise %g must be non-negative", c.Noise.ReadNoise)
	}
	if !nonNegative(c.PSF.Sigma) {
		return fmt.Errorf("psf: sigma %g must be non-negative", c.PSF.Sigma)
	}
	if !nonNegative(c.PSF.NSigma) {
		return fmt.Errorf("psf: nsigma %g must be non-negative", c.PSF.NSigma)
	}
	if !nonNegative(c.PSF.RadialScale) {
		return fmt.Errorf("psf: radial_scale %g must be non-negative", c.PSF.RadialScale)
	}
	if c.Server.MaxConcurrency < 1 {
		return fmt.Errorf("server: max_concurrency %d must be at least 1", c.Server.MaxConcurrency)
	}
	if c.Server.MaxBatch < 1 {
		return fmt.Errorf("server: max_batch %d must be at least 1", c.Server.MaxBatch)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logger.FormatJSON, logger.FormatConsole:
	default:
		return fmt.Errorf("log: unknown format %q", c.Log.Format)
	}
	return nil
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
