//go:build !cgo

package onnx

import (
	"context"

	"github.com/ivlev/depthflow/internal/depth"
	"github.com/ivlev/depthflow/internal/source"
)

// Estimator is unavailable without CGO.
type Estimator struct {
	opts Options
}

var _ depth.Estimator = (*Estimator)(nil)

func New(opts Options) (*Estimator, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return nil, ErrCGORequired
}

func (e *Estimator) ModelID() string { return e.opts.id() }

func (e *Estimator) Estimate(context.Context, source.Image) (source.Image, error) {
	return source.Image{}, ErrCGORequired
}

func (e *Estimator) Close() error { return nil }
