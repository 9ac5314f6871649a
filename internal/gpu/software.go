package gpu

import (
	"context"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/depthflow/internal/uniform"
)

// MaxTextureSize bounds texture and framebuffer dimensions on the software device.
const MaxTextureSize = 16384

// SoftwareOptions configures the CPU rasterizer.
type SoftwareOptions struct {
	// Workers splits each draw into row bands; zero means GOMAXPROCS.
	Workers int
}

// SoftwareDevice evaluates the parallax program per pixel on the CPU.
// Draw returns only after every row is written.
type SoftwareDevice struct {
	workers int
	units   [MaxUnits]*softTexture
}

func NewSoftwareDevice(opts SoftwareOptions) *SoftwareDevice {
	w := opts.Workers
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	return &SoftwareDevice{workers: w}
}

type mipLevel struct {
	w, h int
	pix  []byte
}

type softTexture struct {
	desc   TextureDesc
	levels []mipLevel
}

func (t *softTexture) Width() int    { return t.desc.Width }
func (t *softTexture) Height() int   { return t.desc.Height }
func (t *softTexture) Channels() int { return t.desc.Channels }
func (t *softTexture) Release()      { t.levels = nil }

type softFramebuffer struct {
	w, h int
	pix  []byte // RGB8, bottom row first
}

func (f *softFramebuffer) Width() int  { return f.w }
func (f *softFramebuffer) Height() int { return f.h }
func (f *softFramebuffer) Release()    { f.pix = nil }

type softProgram struct {
	declared map[string]bool
	values   map[string]uniform.Value
}

func (p *softProgram) Has(name string) bool { return p.declared[name] }

func (p *softProgram) Set(name string, v uniform.Value) {
	if p.declared[name] {
		p.values[name] = v
	}
}

func (p *softProgram) Get(name string) (uniform.Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

func (p *softProgram) Release() {}

func checkSize(stage string, w, h int) error {
	if w <= 0 || h <= 0 {
		return resourceErr(stage, "invalid size %dx%d", w, h)
	}
	if w > MaxTextureSize || h > MaxTextureSize {
		return resourceErr(stage, "size %dx%d exceeds limit %d", w, h, MaxTextureSize)
	}
	return nil
}

func (d *SoftwareDevice) NewTexture(desc TextureDesc, data []byte) (Texture, error) {
	if err := checkSize("texture", desc.Width, desc.Height); err != nil {
		return nil, err
	}
	if desc.Channels != 1 && desc.Channels != 3 {
		return nil, resourceErr("texture", "unsupported channel count %d", desc.Channels)
	}
	if want := desc.Width * desc.Height * desc.Channels; len(data) != want {
		return nil, resourceErr("texture", "%s: got %d bytes, want %d", desc.Label, len(data), want)
	}

	base := make([]byte, len(data))
	copy(base, data)
	t := &softTexture{desc: desc, levels: []mipLevel{{w: desc.Width, h: desc.Height, pix: base}}}
	if desc.Mipmaps {
		for {
			prev := t.levels[len(t.levels)-1]
			if prev.w == 1 && prev.h == 1 {
				break
			}
			t.levels = append(t.levels, downsample(prev, desc.Channels))
		}
	}
	return t, nil
}

// downsample halves a level with a box filter.
func downsample(src mipLevel, ch int) mipLevel {
	w, h := max(1, src.w/2), max(1, src.h/2)
	dst := mipLevel{w: w, h: h, pix: make([]byte, w*h*ch)}
	for y := 0; y < h; y++ {
		y0, y1 := min(2*y, src.h-1), min(2*y+1, src.h-1)
		for x := 0; x < w; x++ {
			x0, x1 := min(2*x, src.w-1), min(2*x+1, src.w-1)
			for c := 0; c < ch; c++ {
				sum := int(src.pix[(y0*src.w+x0)*ch+c]) +
					int(src.pix[(y0*src.w+x1)*ch+c]) +
					int(src.pix[(y1*src.w+x0)*ch+c]) +
					int(src.pix[(y1*src.w+x1)*ch+c])
				dst.pix[(y*w+x)*ch+c] = byte((sum + 2) / 4)
			}
		}
	}
	return dst
}

func (d *SoftwareDevice) NewFramebuffer(width, height int) (Framebuffer, error) {
	if err := checkSize("framebuffer", width, height); err != nil {
		return nil, err
	}
	return &softFramebuffer{w: width, h: height, pix: make([]byte, width*height*3)}, nil
}

func (d *SoftwareDevice) NewProgram(desc ProgramDesc) (Program, error) {
	if desc.Source != "" {
		return nil, resourceErr("program", "%s: software device only runs the built-in program", desc.Label)
	}
	p := &softProgram{declared: make(map[string]bool), values: make(map[string]uniform.Value)}
	for _, n := range desc.Uniforms {
		p.declared[n] = true
	}
	return p, nil
}

func (d *SoftwareDevice) Bind(unit int, tex Texture) {
	if unit < 0 || unit >= MaxUnits {
		return
	}
	if tex == nil {
		d.units[unit] = nil
		return
	}
	st, _ := tex.(*softTexture)
	d.units[unit] = st
}

func (d *SoftwareDevice) Clear(fb Framebuffer) {
	if f, ok := fb.(*softFramebuffer); ok {
		clear(f.pix)
	}
}

func (d *SoftwareDevice) Draw(prog Program, fb Framebuffer) error {
	p, ok := prog.(*softProgram)
	if !ok {
		return fmt.Errorf("draw: program %T does not belong to the software device", prog)
	}
	f, ok := fb.(*softFramebuffer)
	if !ok || f.pix == nil {
		return fmt.Errorf("draw: framebuffer %T is not a live software framebuffer", fb)
	}

	params := ParamsFrom(p.Get)
	pairA := d.pair(0, f)
	pairB := d.pair(2, f)
	if pairB.color == nil {
		pairB = pairA
	}
	if pairA.color == nil {
		return nil
	}

	aspect := float64(f.w) / float64(f.h)
	bands := min(d.workers, f.h)
	rowsPer := (f.h + bands - 1) / bands

	g, _ := errgroup.WithContext(context.Background())
	for b := 0; b < bands; b++ {
		y0, y1 := b*rowsPer, min((b+1)*rowsPer, f.h)
		g.Go(func() error {
			for y := y0; y < y1; y++ {
				row := f.pix[y*f.w*3 : (y+1)*f.w*3]
				sy := (float64(y) + 0.5) / float64(f.h)
				for x := 0; x < f.w; x++ {
					sx := (float64(x) + 0.5) / float64(f.w)
					r, gg, bb := shade(params, pairA, pairB, sx, sy, aspect)
					row[x*3+0] = toByte(r)
					row[x*3+1] = toByte(gg)
					row[x*3+2] = toByte(bb)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

type boundPair struct {
	color, depth           *softTexture
	colorLevel, depthLevel int
}

func (d *SoftwareDevice) pair(unit int, f *softFramebuffer) boundPair {
	bp := boundPair{color: d.units[unit], depth: d.units[unit+1]}
	if bp.color != nil {
		bp.colorLevel = bp.color.level(f.w, f.h)
	}
	if bp.depth != nil {
		bp.depthLevel = bp.depth.level(f.w, f.h)
	}
	return bp
}

// level picks the nearest mip level for a texture drawn across a w x h target.
func (t *softTexture) level(w, h int) int {
	if len(t.levels) <= 1 || t.desc.Filter != FilterLinearMipmapNearest {
		return 0
	}
	ratio := math.Max(float64(t.desc.Width)/float64(w), float64(t.desc.Height)/float64(h))
	if ratio <= 1 {
		return 0
	}
	lod := int(math.Round(math.Log2(ratio)))
	return min(lod, len(t.levels)-1)
}

// sample reads channel c bilinearly at texture coordinate (u, v), v measured
// from the bottom edge, clamped to edge.
func (t *softTexture) sample(level int, u, v float64, c int) float64 {
	lv := t.levels[level]
	ch := t.desc.Channels
	fx := u*float64(lv.w) - 0.5
	fy := (1-v)*float64(lv.h) - 0.5
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	ax := fx - float64(x0)
	ay := fy - float64(y0)

	at := func(x, y int) float64 {
		x = clampInt(x, 0, lv.w-1)
		y = clampInt(y, 0, lv.h-1)
		return float64(lv.pix[(y*lv.w+x)*ch+c])
	}
	top := at(x0, y0)*(1-ax) + at(x0+1, y0)*ax
	bottom := at(x0, y0+1)*(1-ax) + at(x0+1, y0+1)*ax
	return (top*(1-ay) + bottom*ay) / 255
}

func (bp boundPair) depthAt(u, v float64) float64 {
	if bp.depth == nil {
		return 0
	}
	return bp.depth.sample(bp.depthLevel, u, v, 0)
}

func (bp boundPair) rgb(u, v float64) (float64, float64, float64) {
	if bp.color.desc.Channels == 1 {
		l := bp.color.sample(bp.colorLevel, u, v, 0)
		return l, l, l
	}
	return bp.color.sample(bp.colorLevel, u, v, 0),
		bp.color.sample(bp.colorLevel, u, v, 1),
		bp.color.sample(bp.colorLevel, u, v, 2)
}

func shade(p Params, a, b boundPair, sx, sy, aspect float64) (float64, float64, float64) {
	cx, cy := p.Camera(sx, sy, aspect)

	ax, ay := p.Displace(cx, cy, a.depthAt)
	ar, ag, ab := a.rgb(ax, ay)

	if p.Blend != 0 {
		bx, by := p.Displace(cx, cy, b.depthAt)
		br, bg, bb := b.rgb(bx, by)
		ar = ar + (br-ar)*p.Blend
		ag = ag + (bg-ag)*p.Blend
		ab = ab + (bb-ab)*p.Blend
	}

	vig := p.Vignette(sx, sy)
	return ar * vig, ag * vig, ab * vig
}

func (d *SoftwareDevice) Read(fb Framebuffer, dst []byte) error {
	f, ok := fb.(*softFramebuffer)
	if !ok || f.pix == nil {
		return fmt.Errorf("read: framebuffer %T is not a live software framebuffer", fb)
	}
	if len(dst) < len(f.pix) {
		return fmt.Errorf("read: buffer holds %d bytes, frame needs %d", len(dst), len(f.pix))
	}
	copy(dst, f.pix)
	return nil
}

func (d *SoftwareDevice) Release() {
	for i := range d.units {
		d.units[i] = nil
	}
}

func toByte(v float64) byte {
	v = math.Round(v * 255)
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return byte(v)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
