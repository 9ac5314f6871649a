package analyzer

import (
	"fmt"
	"image"

	"github.com/ivlev/depthflow/internal/source"
)

// FocusDepth returns the mean depth inside r as a fraction in [0, 1].
// An empty or out-of-bounds rectangle averages the whole map.
func FocusDepth(depth source.Image, r image.Rectangle) (float64, error) {
	if err := depth.Validate(); err != nil {
		return 0, err
	}
	if depth.Format != source.L8 {
		return 0, fmt.Errorf("focus depth needs an l8 map, got %v", depth.Format)
	}

	r = r.Intersect(image.Rect(0, 0, depth.Width, depth.Height))
	if r.Empty() {
		r = image.Rect(0, 0, depth.Width, depth.Height)
	}

	var sum uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := depth.Pix[y*depth.Width : (y+1)*depth.Width]
		for _, v := range row[r.Min.X:r.Max.X] {
			sum += uint64(v)
		}
	}
	return float64(sum) / float64(r.Dx()*r.Dy()) / 255, nil
}

// AutoFocus runs det on img, picks the dominant block and returns its mean depth.
// With no blocks the whole map is used and the returned block is empty.
func AutoFocus(det Detector, img, depth source.Image) (float64, Block, error) {
	if det == nil {
		det = NewContrastDetector()
	}
	target := img
	if _, ok := det.(*DepthDetector); ok {
		target = depth
	}
	blocks, err := det.Detect(target.ToImage())
	if err != nil {
		return 0, Block{}, fmt.Errorf("detect: %w", err)
	}
	block, _ := Dominant(blocks)
	focus, err := FocusDepth(depth, block.Rect)
	if err != nil {
		return 0, Block{}, err
	}
	return focus, block, nil
}
