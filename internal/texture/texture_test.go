package texture

import (
	"errors"
	"testing"

	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/source"
)

type countingDevice struct {
	*gpu.SoftwareDevice
	framebuffers int
	failTextures bool
}

func (d *countingDevice) NewFramebuffer(w, h int) (gpu.Framebuffer, error) {
	d.framebuffers++
	return d.SoftwareDevice.NewFramebuffer(w, h)
}

func (d *countingDevice) NewTexture(desc gpu.TextureDesc, data []byte) (gpu.Texture, error) {
	if d.failTextures {
		return nil, &gpu.ResourceError{Stage: "texture", Err: errors.New("out of memory")}
	}
	return d.SoftwareDevice.NewTexture(desc, data)
}

func newDevice() *countingDevice {
	return &countingDevice{SoftwareDevice: gpu.NewSoftwareDevice(gpu.SoftwareOptions{Workers: 1})}
}

func TestRenderResolution(t *testing.T) {
	set := NewSet(newDevice(), DefaultSSAA)
	color := source.Fill(1920, 1080, source.RGB8, 10)
	depth := source.Fill(1920, 1080, source.L8, 20)
	if err := set.Upload(PairA, color, depth); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	w, h := set.RenderResolution()
	if w != 2560 || h != 1440 {
		t.Errorf("RenderResolution = %dx%d, want 2560x1440", w, h)
	}
	sw, sh := set.SourceResolution()
	if sw != 1920 || sh != 1080 {
		t.Errorf("SourceResolution = %dx%d, want 1920x1080", sw, sh)
	}
	if fb := set.Framebuffer(); fb == nil || fb.Width() != 2560 || fb.Height() != 1440 {
		t.Errorf("framebuffer not sized to render resolution: %v", fb)
	}
}

func TestScaleFloors(t *testing.T) {
	tests := []struct {
		n      int
		factor float64
		want   int
	}{
		{1920, DefaultSSAA, 2560},
		{1080, DefaultSSAA, 1440},
		{512, DefaultSSAA, 682},
		{100, 1.5, 150},
		{101, 1.5, 151},
		{7, 1, 7},
	}
	for _, tt := range tests {
		if got := Scale(tt.n, tt.factor); got != tt.want {
			t.Errorf("Scale(%d, %v) = %d, want %d", tt.n, tt.factor, got, tt.want)
		}
	}
}

func TestFramebufferRecreatedOnResize(t *testing.T) {
	dev := newDevice()
	set := NewSet(dev, 1)

	small := source.Fill(64, 32, source.RGB8, 0)
	smallDepth := source.Fill(64, 32, source.L8, 0)
	if err := set.Upload(PairA, small, smallDepth); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if dev.framebuffers != 1 {
		t.Fatalf("framebuffers = %d, want 1", dev.framebuffers)
	}

	for i := 0; i < 5; i++ {
		if _, err := set.EnsureFramebuffer(); err != nil {
			t.Fatalf("EnsureFramebuffer: %v", err)
		}
	}
	if err := set.Upload(PairA, small, smallDepth); err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	if dev.framebuffers != 1 {
		t.Errorf("stable resolution recreated framebuffer: %d", dev.framebuffers)
	}

	big := source.Fill(128, 32, source.RGB8, 0)
	if err := set.Upload(PairB, big, source.Fill(128, 32, source.L8, 0)); err != nil {
		t.Fatalf("Upload B: %v", err)
	}
	if dev.framebuffers != 2 {
		t.Errorf("framebuffers = %d, want 2 after resize", dev.framebuffers)
	}
	if w, h := set.RenderResolution(); w != 128 || h != 32 {
		t.Errorf("RenderResolution = %dx%d, want max of slots 128x32", w, h)
	}
}

func TestUploadSlots(t *testing.T) {
	set := NewSet(newDevice(), 0)
	if set.SSAA() != DefaultSSAA {
		t.Errorf("SSAA = %v, want default", set.SSAA())
	}
	// L8 colour is expanded, RGB8 depth reduced
	if err := set.Upload(PairB, source.Fill(8, 8, source.L8, 50), source.Fill(8, 8, source.RGB8, 60)); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	colorSlot, ok := set.Slot(2)
	if !ok || colorSlot.Channels != 3 || !colorSlot.Mipmapped || colorSlot.Anisotropy != 16 {
		t.Errorf("colour slot = %+v", colorSlot)
	}
	depthSlot, ok := set.Slot(3)
	if !ok || depthSlot.Channels != 1 {
		t.Errorf("depth slot = %+v", depthSlot)
	}
	if _, ok := set.Slot(0); ok {
		t.Error("pair A should be empty")
	}
	if set.Bound(PairA) || !set.Bound(PairB) {
		t.Error("Bound reports wrong pairs")
	}

	set.Release()
	if _, ok := set.Slot(2); ok {
		t.Error("Release should clear slots")
	}
	if set.Framebuffer() != nil {
		t.Error("Release should drop framebuffer")
	}
}

func TestUploadResourceFailure(t *testing.T) {
	dev := newDevice()
	dev.failTextures = true
	set := NewSet(dev, 1)
	err := set.Upload(PairA, source.Fill(4, 4, source.RGB8, 0), source.Fill(4, 4, source.L8, 0))
	if !errors.Is(err, gpu.ErrResourceCreation) {
		t.Fatalf("err = %v, want ErrResourceCreation", err)
	}
}

func TestUploadRejectsEmptyImage(t *testing.T) {
	set := NewSet(newDevice(), 1)
	if err := set.Upload(PairA, source.Image{}, source.Fill(4, 4, source.L8, 0)); err == nil {
		t.Fatal("expected error for empty colour image")
	}
}
