// Package onnx runs monocular depth models (MiDaS, Depth Anything) through
// ONNX Runtime.
package onnx

import "errors"

// ErrCGORequired is returned when ONNX inference is attempted without CGO support.
var ErrCGORequired = errors.New("onnx depth estimation requires CGO support; rebuild with CGO_ENABLED=1")

// Options configures the estimator.
type Options struct {
	ModelPath            string
	ORTSharedLibraryPath string
	ModelID              string
	InputName            string
	OutputName           string
	InputWidth           int
	InputHeight          int
	NormalizeMeanRGB     [3]float32
	NormalizeStddevRGB   [3]float32
	// Inverse flips the output for models that predict distance rather than disparity.
	Inverse bool
}

// DefaultOptions matches Depth Anything V2 small exported at 518x518.
func DefaultOptions() Options {
	return Options{
		ModelID:            "depth-anything-v2-small",
		InputName:          "pixel_values",
		OutputName:         "predicted_depth",
		InputWidth:         518,
		InputHeight:        518,
		NormalizeMeanRGB:   [3]float32{0.485, 0.456, 0.406},
		NormalizeStddevRGB: [3]float32{0.229, 0.224, 0.225},
	}
}

func (o Options) validate() error {
	if o.ModelPath == "" {
		return errors.New("onnx: model path is required")
	}
	if o.InputWidth <= 0 || o.InputHeight <= 0 {
		return errors.New("onnx: invalid input size")
	}
	if o.InputName == "" || o.OutputName == "" {
		return errors.New("onnx: input and output names must be provided")
	}
	return nil
}

func (o Options) id() string {
	if o.ModelID != "" {
		return o.ModelID
	}
	return "onnx"
}
