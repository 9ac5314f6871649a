package gpu

import (
	"errors"
	"testing"

	"github.com/ivlev/depthflow/internal/uniform"
)

func solid(w, h, ch int, v ...byte) []byte {
	out := make([]byte, w*h*ch)
	for i := range out {
		out[i] = v[i%ch]
	}
	return out
}

func newTestScene(t *testing.T, w, h int, color []byte) (*SoftwareDevice, Program, Framebuffer) {
	t.Helper()
	dev := NewSoftwareDevice(SoftwareOptions{Workers: 3})
	tex, err := dev.NewTexture(TextureDesc{Label: "color", Width: w, Height: h, Channels: 3, Mipmaps: true, Anisotropy: 16, Filter: FilterLinearMipmapNearest}, color)
	if err != nil {
		t.Fatalf("NewTexture: %v", err)
	}
	depth, err := dev.NewTexture(TextureDesc{Label: "depth", Width: w, Height: h, Channels: 1, Mipmaps: true}, solid(w, h, 1, 128))
	if err != nil {
		t.Fatalf("NewTexture depth: %v", err)
	}
	dev.Bind(0, tex)
	dev.Bind(1, depth)

	prog, err := dev.NewProgram(DefaultProgram())
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	fb, err := dev.NewFramebuffer(w, h)
	if err != nil {
		t.Fatalf("NewFramebuffer: %v", err)
	}
	return dev, prog, fb
}

func TestSoftwareDrawSolidColor(t *testing.T) {
	dev, prog, fb := newTestScene(t, 16, 8, solid(16, 8, 3, 200, 100, 50))

	prog.Set(string(uniform.CameraZoom), uniform.Scalar(1))
	prog.Set(string(uniform.ParallaxFactor), uniform.Scalar(0.1))
	prog.Set(string(uniform.CameraPosition), uniform.Vec2(0.3, -0.2))

	dev.Clear(fb)
	if err := dev.Draw(prog, fb); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	buf := make([]byte, FrameSize(fb))
	if err := dev.Read(fb, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := 0; i < len(buf); i += 3 {
		if buf[i] != 200 || buf[i+1] != 100 || buf[i+2] != 50 {
			t.Fatalf("pixel %d = %v, want [200 100 50]", i/3, buf[i:i+3])
		}
	}
}

func TestSoftwareReadIsBottomFirst(t *testing.T) {
	// top half white, bottom half black in image (top-first) order
	w, h := 4, 4
	color := make([]byte, w*h*3)
	for i := 0; i < w*2*3; i++ {
		color[i] = 255
	}
	dev, prog, fb := newTestScene(t, w, h, color)
	if err := dev.Draw(prog, fb); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	buf := make([]byte, FrameSize(fb))
	if err := dev.Read(fb, buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if buf[0] != 0 {
		t.Errorf("first row read back should be the bottom (black) row, got %d", buf[0])
	}
	if last := buf[len(buf)-1]; last != 255 {
		t.Errorf("last row read back should be the top (white) row, got %d", last)
	}
}

func TestSoftwareVignetteDarkensCorners(t *testing.T) {
	dev, prog, fb := newTestScene(t, 32, 32, solid(32, 32, 3, 255, 255, 255))
	prog.Set(string(uniform.VignetteRadius), uniform.Scalar(0.1))
	prog.Set(string(uniform.VignetteIntensity), uniform.Scalar(0.5))
	if err := dev.Draw(prog, fb); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	buf := make([]byte, FrameSize(fb))
	_ = dev.Read(fb, buf)

	corner := buf[0]
	centre := buf[(16*32+16)*3]
	if corner >= centre {
		t.Errorf("corner %d should be darker than centre %d", corner, centre)
	}
}

func TestSoftwareBlendMixesPairs(t *testing.T) {
	dev, prog, fb := newTestScene(t, 8, 8, solid(8, 8, 3, 0, 0, 0))
	white, _ := dev.NewTexture(TextureDesc{Width: 8, Height: 8, Channels: 3}, solid(8, 8, 3, 255, 255, 255))
	dev.Bind(2, white)

	prog.Set(string(uniform.Blend), uniform.Scalar(0.5))
	if err := dev.Draw(prog, fb); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	buf := make([]byte, FrameSize(fb))
	_ = dev.Read(fb, buf)
	if buf[0] < 126 || buf[0] > 129 {
		t.Errorf("blended value = %d, want ~128", buf[0])
	}
}

func TestSoftwareProgramIgnoresUndeclared(t *testing.T) {
	dev := NewSoftwareDevice(SoftwareOptions{})
	prog, err := dev.NewProgram(ProgramDesc{Uniforms: []string{"camera_zoom"}})
	if err != nil {
		t.Fatalf("NewProgram: %v", err)
	}
	prog.Set("blend", uniform.Scalar(1))
	if prog.Has("blend") {
		t.Error("blend should not be declared")
	}
	if _, ok := prog.Get("blend"); ok {
		t.Error("undeclared uniform stored")
	}
}

func TestResourceErrors(t *testing.T) {
	dev := NewSoftwareDevice(SoftwareOptions{})

	tests := []struct {
		name string
		fn   func() error
	}{
		{"zero framebuffer", func() error { _, err := dev.NewFramebuffer(0, 10); return err }},
		{"huge framebuffer", func() error { _, err := dev.NewFramebuffer(MaxTextureSize+1, 10); return err }},
		{"short texture data", func() error {
			_, err := dev.NewTexture(TextureDesc{Width: 2, Height: 2, Channels: 3}, make([]byte, 5))
			return err
		}},
		{"bad channels", func() error {
			_, err := dev.NewTexture(TextureDesc{Width: 1, Height: 1, Channels: 2}, make([]byte, 2))
			return err
		}},
		{"custom source", func() error { _, err := dev.NewProgram(ProgramDesc{Source: "void main(){}"}); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			if !errors.Is(err, ErrResourceCreation) {
				t.Fatalf("err = %v, want ErrResourceCreation", err)
			}
			var re *ResourceError
			if !errors.As(err, &re) || re.Stage == "" {
				t.Errorf("expected *ResourceError with stage, got %#v", err)
			}
		})
	}
}

func TestMipChain(t *testing.T) {
	dev := NewSoftwareDevice(SoftwareOptions{})
	tex, err := dev.NewTexture(TextureDesc{Width: 8, Height: 2, Channels: 1, Mipmaps: true, Filter: FilterLinearMipmapNearest}, solid(8, 2, 1, 90))
	if err != nil {
		t.Fatalf("NewTexture: %v", err)
	}
	st := tex.(*softTexture)
	if len(st.levels) != 4 {
		t.Fatalf("levels = %d, want 4 (8x2, 4x1, 2x1, 1x1)", len(st.levels))
	}
	last := st.levels[len(st.levels)-1]
	if last.w != 1 || last.h != 1 || last.pix[0] != 90 {
		t.Errorf("last level = %dx%d %v", last.w, last.h, last.pix)
	}
	if lvl := st.level(2, 1); lvl != 2 {
		t.Errorf("level for 2x1 target = %d, want 2", lvl)
	}
	if lvl := st.level(16, 4); lvl != 0 {
		t.Errorf("level for magnified target = %d, want 0", lvl)
	}
}

func TestOpenBackends(t *testing.T) {
	if _, err := Open("software", SoftwareOptions{}); err != nil {
		t.Fatalf("Open software: %v", err)
	}
	if _, err := Open("vulkan", SoftwareOptions{}); err == nil {
		t.Error("expected error for unknown backend")
	}
}
