package analyzer

import "fmt"

// NewDetector creates a detector based on the specified variant.
// "contrast" runs on the colour image, "depth" on the depth map.
func NewDetector(variant string) (Detector, error) {
	switch variant {
	case "contrast", "":
		return NewContrastDetector(), nil
	case "depth":
		return NewDepthDetector(), nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", variant)
	}
}
