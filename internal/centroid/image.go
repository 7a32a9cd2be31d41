package centroid

import (
	"fmt"
	"image"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// MaskedImage is a rectangular window of intensity and variance values.
//
// Pixels are addressed in parent (image) coordinates: the pixel at index
// (X0, Y0) is the first element of both planes. SubImage returns views that
// share storage with their parent, so a MaskedImage must be treated as
// read-only while any view of it is in use.
type MaskedImage struct {
	X0, Y0        int
	Width, Height int

	// Image and Variance are row-major with the given stride.
	Image    []float64
	Variance []float64
	stride   int
	offset   int
}

// NewMaskedImage allocates a zeroed image with origin (x0, y0).
func NewMaskedImage(x0, y0, width, height int) *MaskedImage {
	return &MaskedImage{
		X0:       x0,
		Y0:       y0,
		Width:    width,
		Height:   height,
		Image:    make([]float64, width*height),
		Variance: make([]float64, width*height),
		stride:   width,
	}
}

// Bounds returns the image extent in parent coordinates.
func (m *MaskedImage) Bounds() image.Rectangle {
	return image.Rect(m.X0, m.Y0, m.X0+m.Width, m.Y0+m.Height)
}

func (m *MaskedImage) index(x, y int) int {
	return m.offset + (y-m.Y0)*m.stride + (x - m.X0)
}

// At returns intensity and variance at parent coordinates (x, y).
// The caller must ensure the point lies inside Bounds.
func (m *MaskedImage) At(x, y int) (float64, float64) {
	i := m.index(x, y)
	return m.Image[i], m.Variance[i]
}

// Set stores intensity and variance at parent coordinates (x, y).
func (m *MaskedImage) Set(x, y int, value, variance float64) {
	i := m.index(x, y)
	m.Image[i] = value
	m.Variance[i] = variance
}

// Contains reports whether parent coordinates (x, y) lie inside the image.
func (m *MaskedImage) Contains(x, y int) bool {
	return image.Pt(x, y).In(m.Bounds())
}

// SubImage returns a view of bbox, which must lie entirely inside the image.
func (m *MaskedImage) SubImage(bbox image.Rectangle) (*MaskedImage, error) {
	if bbox.Empty() || !bbox.In(m.Bounds()) {
		return nil, newError(KindEdge,
			fmt.Sprintf("window %v outside image %v", bbox, m.Bounds()))
	}
	return &MaskedImage{
		X0:       bbox.Min.X,
		Y0:       bbox.Min.Y,
		Width:    bbox.Dx(),
		Height:   bbox.Dy(),
		Image:    m.Image,
		Variance: m.Variance,
		stride:   m.stride,
		offset:   m.index(bbox.Min.X, bbox.Min.Y),
	}, nil
}

// Clone returns a deep copy with its own storage.
func (m *MaskedImage) Clone() *MaskedImage {
	out := NewMaskedImage(m.X0, m.Y0, m.Width, m.Height)
	for y := 0; y < m.Height; y++ {
		src := m.offset + y*m.stride
		copy(out.Image[y*out.stride:(y+1)*out.stride], m.Image[src:src+m.Width])
		copy(out.Variance[y*out.stride:(y+1)*out.stride], m.Variance[src:src+m.Width])
	}
	return out
}

// Bin block-averages the image by binX × binY. Each output variance is the
// variance of the block mean (sum of variances over N²). Partial blocks at the
// right and bottom edges are dropped. The binned image keeps the origin of m.
func (m *MaskedImage) Bin(binX, binY int) *MaskedImage {
	if binX == 1 && binY == 1 {
		return m.Clone()
	}
	outW := m.Width / binX
	outH := m.Height / binY
	out := NewMaskedImage(m.X0, m.Y0, outW, outH)
	n := float64(binX * binY)

	for by := 0; by < outH; by++ {
		for bx := 0; bx < outW; bx++ {
			var sum, sumVar float64
			for j := 0; j < binY; j++ {
				row := m.offset + (by*binY+j)*m.stride + bx*binX
				for i := 0; i < binX; i++ {
					sum += m.Image[row+i]
					sumVar += m.Variance[row+i]
				}
			}
			out.Image[by*outW+bx] = sum / n
			out.Variance[by*outW+bx] = sumVar / (n * n)
		}
	}
	return out
}

// Convolve smooths intensity with k and variance with k², returning a new
// image. Pixels closer to the border than the kernel reach keep their input
// values.
func (m *MaskedImage) Convolve(k *Kernel) *MaskedImage {
	out := m.Clone()
	cx, cy := k.CenterX(), k.CenterY()

	for y := cy; y < m.Height-(k.Height-1-cy); y++ {
		for x := cx; x < m.Width-(k.Width-1-cx); x++ {
			var sum, sumVar float64
			for j := 0; j < k.Height; j++ {
				row := m.offset + (y-(j-cy))*m.stride
				for i := 0; i < k.Width; i++ {
					kv := k.Data[j*k.Width+i]
					p := row + x - (i - cx)
					sum += kv * m.Image[p]
					sumVar += kv * kv * m.Variance[p]
				}
			}
			out.Image[y*out.stride+x] = sum
			out.Variance[y*out.stride+x] = sumVar
		}
	}
	return out
}

// Subtract removes v from every intensity value in place.
func (m *MaskedImage) Subtract(v float64) {
	for y := 0; y < m.Height; y++ {
		row := m.offset + y*m.stride
		for x := 0; x < m.Width; x++ {
			m.Image[row+x] -= v
		}
	}
}

// Median returns the median intensity inside bbox, clipped to the image.
// An empty intersection gives 0.
func (m *MaskedImage) Median(bbox image.Rectangle) float64 {
	box := bbox.Intersect(m.Bounds())
	if box.Empty() {
		return 0
	}
	vals := make([]float64, 0, box.Dx()*box.Dy())
	for y := box.Min.Y; y < box.Max.Y; y++ {
		i := m.index(box.Min.X, y)
		vals = append(vals, m.Image[i:i+box.Dx()]...)
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}

// ScaleVariance multiplies every variance value by f in place.
func (m *MaskedImage) ScaleVariance(f float64) {
	for y := 0; y < m.Height; y++ {
		row := m.offset + y*m.stride
		for x := 0; x < m.Width; x++ {
			m.Variance[row+x] *= f
		}
	}
}

// Locator addresses pixels relative to a fixed centre.
type Locator struct {
	m      *MaskedImage
	cx, cy int
}

// Locator returns a Locator centred on parent coordinates (x, y).
func (m *MaskedImage) Locator(x, y int) Locator {
	return Locator{m: m, cx: x, cy: y}
}

// Center returns the locator's centre in parent coordinates.
func (l Locator) Center() (int, int) {
	return l.cx, l.cy
}

// Image returns the intensity at offset (dx, dy) from the centre.
func (l Locator) Image(dx, dy int) float64 {
	return l.m.Image[l.m.index(l.cx+dx, l.cy+dy)]
}

// Variance returns the variance at offset (dx, dy) from the centre.
func (l Locator) Variance(dx, dy int) float64 {
	return l.m.Variance[l.m.index(l.cx+dx, l.cy+dy)]
}
