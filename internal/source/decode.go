package source

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Decode reads an encoded image (PNG, JPEG, BMP, TIFF, WebP) into the given format.
func Decode(r io.Reader, format PixelFormat) (Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return Image{}, &ImageLoadError{Err: err}
	}
	return FromImage(img, format), nil
}

// DecodeBytes is Decode over an in-memory buffer.
func DecodeBytes(data []byte, format PixelFormat) (Image, error) {
	return Decode(bytes.NewReader(data), format)
}

// LoadFile decodes the image stored at path.
func LoadFile(path string, format PixelFormat) (Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return Image{}, &ImageLoadError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := Decode(f, format)
	if err != nil {
		return Image{}, &ImageLoadError{Path: path, Err: err.(*ImageLoadError).Err}
	}
	return img, nil
}

// EncodePNG writes the image as PNG. L8 images stay single channel.
func EncodePNG(w io.Writer, img Image) error {
	return png.Encode(w, img.ToImage())
}

// PNGBytes returns the PNG encoding of img.
func PNGBytes(img Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
