package depth

import (
	"errors"

	"github.com/ivlev/depthflow/internal/source"
)

// ErrDegenerateDepthRange marks a depth map with no dynamic range. It is a
// warning: the constant map is used as-is.
var ErrDegenerateDepthRange = errors.New("degenerate depth range")

// Normalize stretches a single-channel map to the full 0..255 range with
// (v-min)/(max-min)*255, truncated to 8 bits. When max == min it returns src unchanged and false.
// A map already spanning 0..255 comes back byte-identical.
func Normalize(src source.Image) (source.Image, bool) {
	if len(src.Pix) == 0 {
		return src, false
	}
	lo, hi := src.Pix[0], src.Pix[0]
	for _, v := range src.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return src, false
	}
	if lo == 0 && hi == 255 {
		return src, true
	}

	out := source.NewImage(src.Width, src.Height, src.Format)
	span := float64(hi - lo)
	for i, v := range src.Pix {
		out.Pix[i] = uint8(float64(v-lo) / span * 255)
	}
	return out, true
}

// Quantize maps float depth samples to 8 bits with the same min/max stretch.
// It is meant for estimators that produce floating point output.
func Quantize(width, height int, data []float32) (source.Image, bool) {
	out := source.NewImage(width, height, source.L8)
	if len(data) == 0 {
		return out, false
	}
	lo, hi := data[0], data[0]
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return out, false
	}
	span := float64(hi - lo)
	for i, v := range data[:min(len(data), len(out.Pix))] {
		out.Pix[i] = uint8(float64(v-lo) / span * 255)
	}
	return out, true
}
