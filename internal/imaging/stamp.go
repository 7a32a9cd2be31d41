package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"
)

// StampResult is a postage stamp cut around a source.
type StampResult struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// X1, Y1 (inclusive) and X2, Y2 (exclusive) locate the stamp in the frame.
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`

	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// CropStamp cuts the (2·halfSize+1)² square centred on pixel (x, y) and
// optionally enlarges it by scale. Enlargement uses nearest-neighbour
// sampling so individual pixels stay visible.
func CropStamp(img image.Image, x, y, halfSize int, scale float64) (*StampResult, error) {
	if halfSize < 1 {
		return nil, fmt.Errorf("invalid stamp half-size %d: must be at least 1", halfSize)
	}
	bounds := img.Bounds()
	r := image.Rect(x-halfSize, y-halfSize, x+halfSize+1, y+halfSize+1)
	if !r.In(bounds) {
		return nil, fmt.Errorf("stamp region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
			r.Min.X, r.Min.Y, r.Max.X, r.Max.Y, bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
	}

	stamp := imaging.Crop(img, r)
	if scale > 0 && scale != 1.0 {
		w := int(float64(stamp.Bounds().Dx()) * scale)
		h := int(float64(stamp.Bounds().Dy()) * scale)
		if w < 1 || h < 1 {
			return nil, fmt.Errorf("scale %g leaves an empty stamp", scale)
		}
		stamp = imaging.Resize(stamp, w, h, imaging.NearestNeighbor)
	}

	encoded, err := encodePNG(stamp)
	if err != nil {
		return nil, err
	}
	return &StampResult{
		Width:       stamp.Bounds().Dx(),
		Height:      stamp.Bounds().Dy(),
		X1:          r.Min.X,
		Y1:          r.Min.Y,
		X2:          r.Max.X,
		Y2:          r.Max.Y,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

func encodePNG(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
