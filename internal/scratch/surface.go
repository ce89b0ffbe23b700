// Package scratch implements the erasable overlay of the promo scratch card and the
// detector that decides when enough of it has been cleared.
package scratch

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	DefaultSize          = 320
	DefaultRadiusDivisor = 10
	DefaultGridPitch     = 15
	DefaultThreshold     = 45.0
	DefaultPrompt        = "SCRATCH WITH LOVE"
)

var (
	baseColor   = color.RGBA{R: 0xFF, G: 0xD7, B: 0x00, A: 0xFF}
	gridColor   = color.RGBA{R: 0xE6, G: 0xC2, B: 0x00, A: 0xFF}
	promptColor = color.RGBA{R: 0x4A, G: 0x24, B: 0x10, A: 0xFF}

	ErrInvalidThreshold = errors.New("scratch: threshold must be within (0, 100]")
)

// Options tunes a Surface. Zero values fall back to the defaults.
type Options struct {
	RadiusDivisor int
	GridPitch     int
	Threshold     float64
	Prompt        string
}

// Surface is a square opaque overlay that is punched through by erase strokes.
// Its dimensions are fixed at creation.
type Surface struct {
	size      int
	radius    float64
	threshold float64
	overlay   *image.RGBA

	cleared  int
	erasing  bool
	revealed bool
}

// NewSurface paints the initial overlay. A non-positive size uses DefaultSize.
func NewSurface(size int, opts Options) (*Surface, error) {
	if size <= 0 {
		size = DefaultSize
	}
	if opts.RadiusDivisor <= 0 {
		opts.RadiusDivisor = DefaultRadiusDivisor
	}
	if opts.GridPitch <= 0 {
		opts.GridPitch = DefaultGridPitch
	}
	if opts.Threshold == 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Threshold < 0 || opts.Threshold > 100 {
		return nil, ErrInvalidThreshold
	}
	if opts.Prompt == "" {
		opts.Prompt = DefaultPrompt
	}

	s := &Surface{
		size:      size,
		radius:    float64(size) / float64(opts.RadiusDivisor),
		threshold: opts.Threshold,
		overlay:   image.NewRGBA(image.Rect(0, 0, size, size)),
	}
	s.paint(opts.GridPitch, opts.Prompt)
	return s, nil
}

func (s *Surface) paint(pitch int, prompt string) {
	draw.Draw(s.overlay, s.overlay.Bounds(), &image.Uniform{C: baseColor}, image.Point{}, draw.Src)

	for i := 0; i < s.size; i += pitch {
		for j := 0; j < s.size; j++ {
			s.overlay.SetRGBA(i, j, gridColor)
			s.overlay.SetRGBA(j, i, gridColor)
		}
	}

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  s.overlay,
		Src:  image.NewUniform(promptColor),
		Face: face,
	}
	width := d.MeasureString(prompt)
	x := (fixed.I(s.size) - width) / 2
	y := fixed.I(s.size/2 + face.Ascent/2)
	d.Dot = fixed.Point26_6{X: x, Y: y}
	d.DrawString(prompt)
}

// Size returns the side length in pixels.
func (s *Surface) Size() int { return s.size }

// Radius returns the erase brush radius in pixels.
func (s *Surface) Radius() float64 { return s.radius }

// Threshold returns the reveal threshold in percent.
func (s *Surface) Threshold() float64 { return s.threshold }

// Cleared returns the running count of fully transparent pixels.
func (s *Surface) Cleared() int { return s.cleared }

// Percent returns the cleared share of the surface in percent.
func (s *Surface) Percent() float64 {
	return float64(s.cleared) / float64(s.size*s.size) * 100
}

// Revealed reports whether the threshold has ever been crossed.
func (s *Surface) Revealed() bool { return s.revealed }

// Erasing reports whether a drag is in progress.
func (s *Surface) Erasing() bool { return s.erasing }

// Begin starts a drag and erases once at the press point.
func (s *Surface) Begin(x, y float64) bool {
	s.erasing = true
	return s.Erase(x, y)
}

// Move erases at the pointer position while a drag is active.
func (s *Surface) Move(x, y float64) bool {
	if !s.erasing {
		return s.revealed
	}
	return s.Erase(x, y)
}

// End stops the current drag.
func (s *Surface) End() {
	s.erasing = false
}

// Erase clears a filled circle centred on (x, y) and runs the reveal detector.
// Pixels that are already transparent are not counted again.
func (s *Surface) Erase(x, y float64) bool {
	r := s.radius
	minX := clamp(int(math.Floor(x-r)), 0, s.size)
	maxX := clamp(int(math.Ceil(x+r)), 0, s.size)
	minY := clamp(int(math.Floor(y-r)), 0, s.size)
	maxY := clamp(int(math.Ceil(y+r)), 0, s.size)

	r2 := r * r
	for py := minY; py < maxY; py++ {
		dy := float64(py) + 0.5 - y
		for px := minX; px < maxX; px++ {
			dx := float64(px) + 0.5 - x
			if dx*dx+dy*dy > r2 {
				continue
			}
			s.clear(px, py)
		}
	}
	return s.detect(s.cleared)
}

// EraseRect clears every pixel of rect clipped to the surface.
func (s *Surface) EraseRect(rect image.Rectangle) bool {
	rect = rect.Intersect(s.overlay.Bounds())
	for py := rect.Min.Y; py < rect.Max.Y; py++ {
		for px := rect.Min.X; px < rect.Max.X; px++ {
			s.clear(px, py)
		}
	}
	return s.detect(s.cleared)
}

// CheckReveal rescans the whole overlay instead of trusting the running counter.
func (s *Surface) CheckReveal() bool {
	return s.detect(CountCleared(s.overlay))
}

// PNG writes the overlay in its current state.
func (s *Surface) PNG(w io.Writer) error {
	return png.Encode(w, s.overlay)
}

func (s *Surface) clear(px, py int) {
	i := s.overlay.PixOffset(px, py)
	if s.overlay.Pix[i+3] == 0 {
		return
	}
	// destination-out with an opaque brush leaves nothing behind
	s.overlay.Pix[i+0] = 0
	s.overlay.Pix[i+1] = 0
	s.overlay.Pix[i+2] = 0
	s.overlay.Pix[i+3] = 0
	s.cleared++
}

func (s *Surface) detect(cleared int) bool {
	if s.revealed {
		return true
	}
	total := float64(s.size * s.size)
	if float64(cleared)*100 >= s.threshold*total {
		s.revealed = true
	}
	return s.revealed
}

// CountCleared counts pixels whose alpha channel is zero.
func CountCleared(img *image.RGBA) int {
	n := 0
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] == 0 {
			n++
		}
	}
	return n
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
