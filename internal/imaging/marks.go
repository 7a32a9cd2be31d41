package imaging

import (
	"image"
	"image/color"
	"math"
	"strconv"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// defaultMarkColor is used when the requested colour cannot be parsed.
var defaultMarkColor = color.NRGBA{R: 255, G: 0, B: 0, A: 255}

// markGap is the number of pixels left clear around the marked position.
const markGap = 2

// Mark is a sub-pixel position to draw on a frame.
type Mark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MarksResult contains the annotated frame.
type MarksResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Marked      int    `json:"marked"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// MarkCentroids draws an open crosshair on a copy of img for every mark,
// centred on the pixel containing the mark. Marks outside the frame are
// skipped. When numbered is set each crosshair gets its 1-based index.
//
// markColorHex is "#rrggbb"; an unparsable value falls back to red.
func MarkCentroids(img image.Image, marks []Mark, markColorHex string, arm int, numbered bool) (*MarksResult, error) {
	if arm < markGap+1 {
		arm = markGap + 1
	}
	markColor := defaultMarkColor
	if c, err := colorful.Hex(markColorHex); err == nil {
		r, g, b := c.RGB255()
		markColor = color.NRGBA{R: r, G: g, B: b, A: 255}
	}

	out := imaging.Clone(img)
	bounds := out.Bounds()
	off := img.Bounds().Min

	marked := 0
	for i, m := range marks {
		// Clone rebases to the origin
		cx := int(math.Floor(m.X+0.5)) - off.X
		cy := int(math.Floor(m.Y+0.5)) - off.Y
		if !image.Pt(cx, cy).In(bounds) {
			continue
		}
		marked++
		for d := markGap; d <= arm; d++ {
			setIn(out, cx-d, cy, markColor)
			setIn(out, cx+d, cy, markColor)
			setIn(out, cx, cy-d, markColor)
			setIn(out, cx, cy+d, markColor)
		}
		if numbered {
			drawLabel(out, cx+markGap+1, cy+markGap+1, strconv.Itoa(i+1),
				color.NRGBA{R: 255, G: 255, B: 255, A: 255}, color.NRGBA{A: 180})
		}
	}

	encoded, err := encodePNG(out)
	if err != nil {
		return nil, err
	}
	return &MarksResult{
		Width:       bounds.Dx(),
		Height:      bounds.Dy(),
		Marked:      marked,
		ImageBase64: encoded,
		MimeType:    "image/png",
	}, nil
}

func setIn(img *image.NRGBA, x, y int, c color.NRGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}

// drawLabel draws digits with a 3x5 pixel font on a background box.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
	}

	const charWidth = 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setIn(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		for row, line := range glyphs[ch] {
			for col, pixel := range line {
				if pixel == '1' {
					setIn(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
