package source

import (
	"fmt"
	"image"
	"image/draw"
)

// PixelFormat describes the channel layout of an Image.
type PixelFormat int

const (
	// RGB8 is packed 8-bit red, green, blue.
	RGB8 PixelFormat = iota + 1
	// L8 is a single 8-bit luminance channel (depth maps).
	L8
)

// Channels returns the number of bytes per pixel.
func (f PixelFormat) Channels() int {
	switch f {
	case RGB8:
		return 3
	case L8:
		return 1
	default:
		return 0
	}
}

func (f PixelFormat) String() string {
	switch f {
	case RGB8:
		return "rgb8"
	case L8:
		return "l8"
	default:
		return fmt.Sprintf("PixelFormat(%d)", int(f))
	}
}

// Image is a tightly packed raster with rows stored top to bottom.
// Treat it as immutable once loaded: callers share Pix without copying.
type Image struct {
	Width  int
	Height int
	Format PixelFormat
	Pix    []byte
}

// NewImage allocates a zeroed image.
func NewImage(width, height int, format PixelFormat) Image {
	return Image{
		Width:  width,
		Height: height,
		Format: format,
		Pix:    make([]byte, width*height*format.Channels()),
	}
}

// Stride returns the number of bytes per row.
func (img Image) Stride() int {
	return img.Width * img.Format.Channels()
}

// Empty reports whether the image holds no pixels.
func (img Image) Empty() bool {
	return img.Width == 0 || img.Height == 0 || len(img.Pix) == 0
}

// Validate checks that the buffer length matches the declared geometry.
func (img Image) Validate() error {
	if img.Width <= 0 || img.Height <= 0 {
		return fmt.Errorf("invalid image size %dx%d", img.Width, img.Height)
	}
	if img.Format.Channels() == 0 {
		return fmt.Errorf("unknown pixel format %v", img.Format)
	}
	if want := img.Stride() * img.Height; len(img.Pix) != want {
		return fmt.Errorf("pixel buffer is %d bytes, want %d for %dx%d %v", len(img.Pix), want, img.Width, img.Height, img.Format)
	}
	return nil
}

// At returns channel c of the pixel at (x, y).
func (img Image) At(x, y, c int) byte {
	return img.Pix[y*img.Stride()+x*img.Format.Channels()+c]
}

// ToImage converts to a standard library image for encoding.
func (img Image) ToImage() image.Image {
	rect := image.Rect(0, 0, img.Width, img.Height)
	if img.Format == L8 {
		gray := image.NewGray(rect)
		for y := 0; y < img.Height; y++ {
			copy(gray.Pix[y*gray.Stride:y*gray.Stride+img.Width], img.Pix[y*img.Width:(y+1)*img.Width])
		}
		return gray
	}

	rgba := image.NewRGBA(rect)
	for y := 0; y < img.Height; y++ {
		src := img.Pix[y*img.Stride() : (y+1)*img.Stride()]
		dst := rgba.Pix[y*rgba.Stride : y*rgba.Stride+img.Width*4]
		for x := 0; x < img.Width; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return rgba
}

// FromImage packs any image.Image into the requested format.
// Alpha is dropped; L8 uses the standard luminance conversion.
func FromImage(src image.Image, format PixelFormat) Image {
	b := src.Bounds()
	out := NewImage(b.Dx(), b.Dy(), format)

	if format == L8 {
		gray, ok := src.(*image.Gray)
		if !ok || gray.Rect.Min != (image.Point{}) {
			gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
			draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)
		}
		for y := 0; y < out.Height; y++ {
			copy(out.Pix[y*out.Width:(y+1)*out.Width], gray.Pix[y*gray.Stride:y*gray.Stride+out.Width])
		}
		return out
	}

	rgba, ok := src.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)
	}
	for y := 0; y < out.Height; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		dst := out.Pix[y*out.Stride():]
		for x := 0; x < out.Width; x++ {
			dst[x*3+0] = row[x*4+0]
			dst[x*3+1] = row[x*4+1]
			dst[x*3+2] = row[x*4+2]
		}
	}
	return out
}

// Fill returns an image where every pixel has the given gray level.
func Fill(width, height int, format PixelFormat, level uint8) Image {
	img := NewImage(width, height, format)
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}
