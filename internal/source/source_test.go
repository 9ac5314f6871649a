package source

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writePNG(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}

func TestFromImageRoundTrip(t *testing.T) {
	img := NewImage(3, 2, RGB8)
	for i := range img.Pix {
		img.Pix[i] = byte(i * 10)
	}
	back := FromImage(img.ToImage(), RGB8)
	if !bytes.Equal(back.Pix, img.Pix) {
		t.Errorf("RGB round trip changed pixels: %v vs %v", back.Pix, img.Pix)
	}

	gray := Fill(4, 4, L8, 77)
	if got := FromImage(gray.ToImage(), L8); !bytes.Equal(got.Pix, gray.Pix) {
		t.Errorf("L8 round trip changed pixels")
	}
}

func TestFromImageGrayConversion(t *testing.T) {
	rgb := Fill(2, 2, RGB8, 200)
	l := FromImage(rgb.ToImage(), L8)
	if l.Format != L8 || len(l.Pix) != 4 {
		t.Fatalf("unexpected L8 image %+v", l)
	}
	if l.Pix[0] != 200 {
		t.Errorf("gray of uniform 200 = %d", l.Pix[0])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		img  Image
		ok   bool
	}{
		{"valid", NewImage(2, 2, RGB8), true},
		{"zero", Image{}, false},
		{"short", Image{Width: 2, Height: 2, Format: L8, Pix: make([]byte, 3)}, false},
		{"no format", Image{Width: 1, Height: 1, Pix: []byte{1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.img.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	writePNG(t, path, 5, 3, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	img, err := LoadFile(path, RGB8)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if img.Width != 5 || img.Height != 3 || img.At(4, 2, 2) != 30 {
		t.Errorf("unexpected image %dx%d last=%d", img.Width, img.Height, img.At(4, 2, 2))
	}
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{garbage, filepath.Join(dir, "missing.png")} {
		_, err := LoadFile(path, RGB8)
		if !errors.Is(err, ErrImageLoad) {
			t.Errorf("LoadFile(%s) = %v, want ErrImageLoad", path, err)
		}
		var le *ImageLoadError
		if !errors.As(err, &le) || le.Path != path {
			t.Errorf("expected ImageLoadError with path %s, got %v", path, err)
		}
	}
}

func TestPNGBytesRoundTrip(t *testing.T) {
	depth := Fill(6, 4, L8, 0)
	depth.Pix[5] = 255
	data, err := PNGBytes(depth)
	if err != nil {
		t.Fatalf("PNGBytes: %v", err)
	}
	back, err := DecodeBytes(data, L8)
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if !bytes.Equal(back.Pix, depth.Pix) {
		t.Error("L8 PNG round trip is lossy")
	}
}

func TestImageSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 4, color.White)
	writePNG(t, filepath.Join(dir, "a.png"), 8, 2, color.Black)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()

	if src.Count() != 2 {
		t.Fatalf("Count = %d, want 2", src.Count())
	}
	w, h, err := src.Dimensions(0)
	if err != nil || w != 8 || h != 2 {
		t.Errorf("Dimensions(0) = %d,%d,%v want 8,2 (sorted a.png first)", w, h, err)
	}
	img, err := src.Load(1)
	if err != nil || img.Pix[0] != 255 {
		t.Errorf("Load(1) = %v, %v", img.Pix[:3], err)
	}
	if _, err := src.Load(5); err == nil {
		t.Error("expected out of range error")
	}
}

func TestFindLatestImage(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "older.png")
	newer := filepath.Join(dir, "newer.jpg")
	writePNG(t, older, 1, 1, color.White)
	if err := os.WriteFile(newer, []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(older, past, past); err != nil {
		t.Fatal(err)
	}

	got, err := FindLatestImage(older)
	if err != nil {
		t.Fatalf("FindLatestImage: %v", err)
	}
	if got != newer {
		t.Errorf("FindLatestImage = %s, want %s", got, newer)
	}

	if _, err := FindLatestImage(t.TempDir()); err == nil {
		t.Error("expected error for empty directory")
	}
}
