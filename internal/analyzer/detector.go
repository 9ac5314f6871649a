package analyzer

import "image"

// Block is a detected region of interest, in pixel coordinates with a top-left origin.
type Block struct {
	Rect       image.Rectangle
	Type       string  // "content", "foreground", "unknown"
	Confidence float64 // 0.0-1.0
}

// Area returns the block's pixel area.
func (b Block) Area() int {
	return b.Rect.Dx() * b.Rect.Dy()
}

// Detector is the interface for image analysis strategies
type Detector interface {
	Detect(img image.Image) ([]Block, error)
}

// Dominant picks the block with the largest confidence-weighted area.
func Dominant(blocks []Block) (Block, bool) {
	if len(blocks) == 0 {
		return Block{}, false
	}
	best := blocks[0]
	for _, b := range blocks[1:] {
		if float64(b.Area())*b.Confidence > float64(best.Area())*best.Confidence {
			best = b
		}
	}
	return best, true
}
