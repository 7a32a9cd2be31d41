package imaging

import (
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"sync"

	_ "golang.org/x/image/tiff" // Register TIFF format decoder
)

// ImageCache provides thread-safe caching of loaded frames to avoid redundant
// disk reads and repeated conversion to intensity planes.
//
// The cache stores decoded image.Image objects keyed by their file path, along
// with the format name reported by the decoder. Intensity planes built by
// LoadPlane are cached per path and noise model.
//
// ImageCache is safe for concurrent use by multiple goroutines.
//
// # Memory Management
//
// Cached frames and planes remain in memory until explicitly removed via
// Evict() or Clear(). A float64 plane needs 16 bytes per pixel, so evict
// large frames once their sources have been measured.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	plane, err := cache.LoadPlane("/data/frame.tif", imaging.NoiseModel{Gain: 1.5})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Measure sources on plane.Masked...
//	cache.Evict("/data/frame.tif")
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]cachedImage
	planes map[planeKey]*Plane
}

type cachedImage struct {
	img    image.Image
	format string
}

type planeKey struct {
	path  string
	noise NoiseModel
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]cachedImage),
		planes: make(map[planeKey]*Plane),
	}
}

// Load retrieves an image from the cache or loads it from disk if not cached.
//
// Parameters:
//   - path: File path to the image. Supported formats are PNG, JPEG, GIF and
//     TIFF (8 and 16 bit).
//
// Returns:
//   - image.Image: The decoded image. 16-bit grayscale TIFF and PNG frames
//     decode to *image.Gray16 and keep their full range.
//   - error: Non-nil if the file cannot be opened or decoded.
//
// The image is cached using the exact path string provided.
func (c *ImageCache) Load(path string) (image.Image, error) {
	entry, err := c.load(path)
	if err != nil {
		return nil, err
	}
	return entry.img, nil
}

func (c *ImageCache) load(path string) (cachedImage, error) {
	c.mu.RLock()
	if entry, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return entry, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return cachedImage{}, fmt.Errorf("failed to decode image: %w", err)
	}

	entry := cachedImage{img: img, format: format}
	c.mu.Lock()
	c.images[path] = entry
	c.mu.Unlock()

	return entry, nil
}

// LoadPlane returns the intensity/variance plane of the image at path under
// the given noise model, converting and caching it on first use.
func (c *ImageCache) LoadPlane(path string, noise NoiseModel) (*Plane, error) {
	key := planeKey{path: path, noise: noise}

	c.mu.RLock()
	if p, ok := c.planes[key]; ok {
		c.mu.RUnlock()
		return p, nil
	}
	c.mu.RUnlock()

	img, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	p, err := ToMaskedImage(img, noise)
	if err != nil {
		return nil, fmt.Errorf("failed to build intensity plane for %s: %w", path, err)
	}

	c.mu.Lock()
	c.planes[key] = p
	c.mu.Unlock()

	return p, nil
}

// Clear removes all frames and planes from the cache.
func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.images = make(map[string]cachedImage)
	c.planes = make(map[planeKey]*Plane)
	c.mu.Unlock()
}

// Evict removes a frame and every plane derived from it.
//
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	delete(c.images, path)
	for k := range c.planes {
		if k.path == path {
			delete(c.planes, k)
		}
	}
	c.mu.Unlock()
}

// ImageInfo contains metadata about a loaded image file.
type ImageInfo struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`

	// Format is the decoder name: "png", "jpeg", "gif" or "tiff".
	Format string `json:"format"`

	// ColorDepth indicates the bit depth per channel: "8-bit" or "16-bit".
	ColorDepth string `json:"color_depth"`

	// Grayscale is true for single-channel frames, whose pixel values are
	// used directly as linear intensity.
	Grayscale bool `json:"grayscale"`

	// HasAlpha indicates whether the image has an alpha (transparency) channel.
	HasAlpha bool `json:"has_alpha"`

	// FileSizeBytes is the size of the image file on disk in bytes.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadImageInfo loads an image and returns metadata about it.
//
// # Format Detection
//
// The format is the name the registered decoder reported, so a TIFF saved
// with a ".dat" extension is still reported as "tiff".
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	entry, err := cache.load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	info := &ImageInfo{
		Width:         entry.img.Bounds().Dx(),
		Height:        entry.img.Bounds().Dy(),
		Format:        entry.format,
		ColorDepth:    "8-bit",
		FileSizeBytes: stat.Size(),
	}
	switch entry.img.(type) {
	case *image.RGBA, *image.NRGBA:
		info.HasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = true
		info.ColorDepth = "16-bit"
	case *image.Gray:
		info.Grayscale = true
	case *image.Gray16:
		info.Grayscale = true
		info.ColorDepth = "16-bit"
	}
	return info, nil
}

// DimensionsResult contains the width and height of an image.
type DimensionsResult struct {
	// Width is the image width in pixels.
	Width int `json:"width"`

	// Height is the image height in pixels.
	Height int `json:"height"`
}

// GetDimensions returns the dimensions of an image without additional metadata.
func GetDimensions(cache *ImageCache, path string) (*DimensionsResult, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	return &DimensionsResult{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}, nil
}
