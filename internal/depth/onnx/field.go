package onnx

import (
	"image"
	"slices"

	"golang.org/x/image/draw"

	"github.com/ivlev/depthflow/internal/depth"
	"github.com/ivlev/depthflow/internal/source"
)

// depthField turns raw model output into an L8 map of size outW x outH.
// When the map must be resized the field is stretched into 16 bits and
// resampled there, so the only 8-bit quantization happens after scaling.
func depthField(w, h int, data []float32, inverse bool, outW, outH int) source.Image {
	data = slices.Clone(data[:w*h])
	if inverse {
		for i, v := range data {
			data[i] = -v
		}
	}
	if w == outW && h == outH {
		out, _ := depth.Quantize(w, h, data)
		return out
	}

	lo, hi := slices.Min(data), slices.Max(data)
	span := float64(hi - lo)
	field := image.NewGray16(image.Rect(0, 0, w, h))
	for i, v := range data {
		var q uint16
		if span > 0 {
			q = uint16(float64(v-lo) / span * 65535)
		}
		field.Pix[2*i] = uint8(q >> 8)
		field.Pix[2*i+1] = uint8(q)
	}

	dst := image.NewGray16(image.Rect(0, 0, outW, outH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), field, field.Bounds(), draw.Src, nil)
	return source.FromImage(dst, source.L8)
}
