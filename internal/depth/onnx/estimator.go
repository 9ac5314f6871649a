//go:build cgo

package onnx

import (
	"context"
	"fmt"
	"os"
	"sync"

	resize "github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/ivlev/depthflow/internal/depth"
	"github.com/ivlev/depthflow/internal/source"
)

// Estimator runs one model. Calls are serialized; ONNX Runtime and the
// session are created on first use, reused across calls and torn down by
// Close.
type Estimator struct {
	opts Options

	mu          sync.Mutex
	initialized bool
	session     *ort.AdvancedSession
	input       *ort.Tensor[float32]
	output      *ort.Tensor[float32]
}

var _ depth.Estimator = (*Estimator)(nil)

func New(opts Options) (*Estimator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx: model: %w", err)
	}
	return &Estimator{opts: opts}, nil
}

func (e *Estimator) ModelID() string {
	return e.opts.id()
}

func (e *Estimator) init() error {
	if e.session != nil {
		return nil
	}
	if !e.initialized {
		if e.opts.ORTSharedLibraryPath != "" {
			ort.SetSharedLibraryPath(e.opts.ORTSharedLibraryPath)
		} else if p := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH"); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx: init runtime: %w", err)
		}
		e.initialized = true
	}

	w, h := int64(e.opts.InputWidth), int64(e.opts.InputHeight)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, h, w))
	if err != nil {
		return err
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, h, w))
	if err != nil {
		input.Destroy()
		return err
	}
	session, err := ort.NewAdvancedSession(
		e.opts.ModelPath,
		[]string{e.opts.InputName},
		[]string{e.opts.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		output.Destroy()
		input.Destroy()
		return fmt.Errorf("onnx: load %s: %w", e.ModelID(), err)
	}
	e.session, e.input, e.output = session, input, output
	return nil
}

// Estimate returns a depth map at the input's resolution.
func (e *Estimator) Estimate(ctx context.Context, img source.Image) (source.Image, error) {
	if err := ctx.Err(); err != nil {
		return source.Image{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.init(); err != nil {
		return source.Image{}, err
	}

	copy(e.input.GetData(), e.tensorData(img))
	if err := e.session.Run(); err != nil {
		return source.Image{}, fmt.Errorf("onnx: run %s: %w", e.ModelID(), err)
	}
	return depthField(e.opts.InputWidth, e.opts.InputHeight, e.output.GetData(), e.opts.Inverse, img.Width, img.Height), nil
}

// tensorData resizes img to the model input and lays it out as normalized NCHW.
func (e *Estimator) tensorData(img source.Image) []float32 {
	w, h := e.opts.InputWidth, e.opts.InputHeight
	resized := resize.Resize(uint(w), uint(h), img.ToImage(), resize.Bicubic)
	rgb := source.FromImage(resized, source.RGB8)

	plane := w * h
	data := make([]float32, 3*plane)
	for i := 0; i < plane; i++ {
		for c := 0; c < 3; c++ {
			v := float32(rgb.Pix[i*3+c]) / 255
			data[c*plane+i] = (v - e.opts.NormalizeMeanRGB[c]) / e.opts.NormalizeStddevRGB[c]
		}
	}
	return data
}

// Close releases the session and the ONNX Runtime environment.
func (e *Estimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil {
		e.session.Destroy()
		e.output.Destroy()
		e.input.Destroy()
		e.session, e.input, e.output = nil, nil, nil
	}
	if !e.initialized {
		return nil
	}
	e.initialized = false
	return ort.DestroyEnvironment()
}
