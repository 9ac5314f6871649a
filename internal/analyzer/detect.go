package analyzer

import (
	"image"
)

// ContrastDetector finds textured regions: Sobel edges dilated into blobs
// and boxed by connected components.
type ContrastDetector struct {
	MinBlockArea  int     // px²
	EdgeThreshold float64 // gradient magnitude
}

func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500,
		EdgeThreshold: 30.0,
	}
}

func (d *ContrastDetector) Detect(img image.Image) ([]Block, error) {
	edges := grayPlane(img).edges(d.EdgeThreshold).dilate(2, 2)
	return boxes(edges, d.MinBlockArea, "content", 0.7), nil
}

// DepthDetector finds the nearest part of the scene in a depth map,
// where brighter means closer.
type DepthDetector struct {
	MinBlockArea int
	// Threshold is the fraction of the map's depth range a pixel must reach.
	Threshold float64
}

func NewDepthDetector() *DepthDetector {
	return &DepthDetector{
		MinBlockArea: 500,
		Threshold:    0.75,
	}
}

func (d *DepthDetector) Detect(img image.Image) ([]Block, error) {
	depth := grayPlane(img)
	lo, hi := depth.extent()
	if hi == lo {
		return nil, nil
	}
	cut := float64(lo) + d.Threshold*float64(hi-lo)
	near := depth.threshold(func(v uint8) bool { return float64(v) >= cut })
	return boxes(near.dilate(1, 1), d.MinBlockArea, "foreground", 0.8), nil
}

func boxes(mask plane, minArea int, kind string, confidence float64) []Block {
	blocks := []Block{}
	for _, r := range mask.components() {
		if r.Dx()*r.Dy() >= minArea {
			blocks = append(blocks, Block{Rect: r, Type: kind, Confidence: confidence})
		}
	}
	return blocks
}
