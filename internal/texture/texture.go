package texture

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/logging"
	"github.com/ivlev/depthflow/internal/source"
)

const (
	// DefaultSSAA renders 1080p sources at 1440p.
	DefaultSSAA = 1440.0 / 1080.0
	Anisotropy  = 16
)

// Pair selects one of the two colour/depth texture pairs.
type Pair int

const (
	PairA Pair = iota
	PairB
)

// Units returns the colour and depth texture units of the pair.
func (p Pair) Units() (color, depth int) {
	return int(p) * 2, int(p)*2 + 1
}

func (p Pair) String() string {
	if p == PairB {
		return "B"
	}
	return "A"
}

// Slot describes a bound texture unit.
type Slot struct {
	Index      int
	Channels   int
	Width      int
	Height     int
	Mipmapped  bool
	Anisotropy int

	tex gpu.Texture
}

// Set owns the texture units and the output framebuffer. It belongs to the
// rendering goroutine.
type Set struct {
	dev   gpu.Device
	ssaa  float64
	slots [gpu.MaxUnits]*Slot
	fb    gpu.Framebuffer
	log   *slog.Logger
}

// NewSet creates an empty set. ssaa <= 0 selects DefaultSSAA.
func NewSet(dev gpu.Device, ssaa float64) *Set {
	if ssaa <= 0 {
		ssaa = DefaultSSAA
	}
	return &Set{dev: dev, ssaa: ssaa, log: logging.NewNop()}
}

func (s *Set) SetLogger(l *slog.Logger) {
	s.log = logging.Component(l, "texture")
}

func (s *Set) Device() gpu.Device {
	return s.dev
}

func (s *Set) SSAA() float64 {
	return s.ssaa
}

// Upload binds color at the pair's first unit and depth at its second, then
// makes sure the framebuffer matches the new resolution.
func (s *Set) Upload(pair Pair, color, depth source.Image) error {
	if pair != PairA && pair != PairB {
		return fmt.Errorf("upload: unknown texture pair %d", pair)
	}
	if err := color.Validate(); err != nil {
		return fmt.Errorf("upload %s colour: %w", pair, err)
	}
	if err := depth.Validate(); err != nil {
		return fmt.Errorf("upload %s depth: %w", pair, err)
	}
	if color.Format != source.RGB8 {
		color = source.FromImage(color.ToImage(), source.RGB8)
	}
	if depth.Format != source.L8 {
		depth = source.FromImage(depth.ToImage(), source.L8)
	}

	cu, du := pair.Units()
	if err := s.bind(cu, "color", color); err != nil {
		return err
	}
	if err := s.bind(du, "depth", depth); err != nil {
		return err
	}

	_, err := s.EnsureFramebuffer()
	return err
}

func (s *Set) bind(unit int, label string, img source.Image) error {
	tex, err := s.dev.NewTexture(gpu.TextureDesc{
		Label:      fmt.Sprintf("%s%d", label, unit),
		Width:      img.Width,
		Height:     img.Height,
		Channels:   img.Format.Channels(),
		Mipmaps:    true,
		Anisotropy: Anisotropy,
		Filter:     gpu.FilterLinearMipmapNearest,
	}, img.Pix)
	if err != nil {
		return err
	}

	if old := s.slots[unit]; old != nil {
		old.tex.Release()
	}
	s.slots[unit] = &Slot{
		Index:      unit,
		Channels:   img.Format.Channels(),
		Width:      img.Width,
		Height:     img.Height,
		Mipmapped:  true,
		Anisotropy: Anisotropy,
		tex:        tex,
	}
	s.dev.Bind(unit, tex)
	return nil
}

// Slot reports the state of a texture unit.
func (s *Set) Slot(unit int) (Slot, bool) {
	if unit < 0 || unit >= gpu.MaxUnits || s.slots[unit] == nil {
		return Slot{}, false
	}
	return *s.slots[unit], true
}

// Bound reports whether the pair has a colour texture.
func (s *Set) Bound(pair Pair) bool {
	cu, _ := pair.Units()
	return s.slots[cu] != nil
}

// SourceResolution is the largest width and height among bound slots.
func (s *Set) SourceResolution() (int, int) {
	var w, h int
	for _, sl := range s.slots {
		if sl == nil {
			continue
		}
		w = max(w, sl.Width)
		h = max(h, sl.Height)
	}
	return w, h
}

// RenderResolution is SourceResolution scaled by the SSAA factor, floored per axis.
func (s *Set) RenderResolution() (int, int) {
	w, h := s.SourceResolution()
	return Scale(w, s.ssaa), Scale(h, s.ssaa)
}

// Scale floors n*factor; the epsilon absorbs float error in ratios like 1440/1080.
func Scale(n int, factor float64) int {
	return int(math.Floor(float64(n)*factor + 1e-9))
}

// EnsureFramebuffer recreates the framebuffer when the render resolution
// changed or none exists. It is cheap to call before every frame.
func (s *Set) EnsureFramebuffer() (gpu.Framebuffer, error) {
	w, h := s.RenderResolution()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("framebuffer: no textures bound")
	}
	if s.fb != nil && s.fb.Width() == w && s.fb.Height() == h {
		return s.fb, nil
	}

	fb, err := s.dev.NewFramebuffer(w, h)
	if err != nil {
		return nil, err
	}
	if s.fb != nil {
		s.log.Debug("framebuffer resized", "from", fmt.Sprintf("%dx%d", s.fb.Width(), s.fb.Height()), "to", fmt.Sprintf("%dx%d", w, h))
		s.fb.Release()
	} else {
		s.log.Debug("framebuffer created", "size", fmt.Sprintf("%dx%d", w, h))
	}
	s.fb = fb
	return fb, nil
}

// Framebuffer returns the current framebuffer, nil before the first upload.
func (s *Set) Framebuffer() gpu.Framebuffer {
	return s.fb
}

// ReleaseFramebuffer frees the framebuffer; the next EnsureFramebuffer recreates it.
func (s *Set) ReleaseFramebuffer() {
	if s.fb != nil {
		s.fb.Release()
		s.fb = nil
	}
}

// Release frees every texture and the framebuffer.
func (s *Set) Release() {
	for i, sl := range s.slots {
		if sl == nil {
			continue
		}
		s.dev.Bind(i, nil)
		sl.tex.Release()
		s.slots[i] = nil
	}
	s.ReleaseFramebuffer()
}
