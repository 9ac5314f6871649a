package depth

import (
	"context"

	"github.com/ivlev/depthflow/internal/source"
)

// Estimator produces an unnormalized single-channel depth map with the same
// dimensions as its input. Implementations may be slow.
type Estimator interface {
	Estimate(ctx context.Context, img source.Image) (source.Image, error)
	ModelID() string
}

// EstimatorFunc adapts a function to Estimator.
type EstimatorFunc struct {
	ID string
	Fn func(ctx context.Context, img source.Image) (source.Image, error)
}

func (f EstimatorFunc) Estimate(ctx context.Context, img source.Image) (source.Image, error) {
	return f.Fn(ctx, img)
}

func (f EstimatorFunc) ModelID() string {
	return f.ID
}

// Luminance is a model-free estimator that treats brighter pixels as closer.
// It is useful for previews and tests where no depth model is installed.
var Luminance Estimator = EstimatorFunc{
	ID: "luminance",
	Fn: func(_ context.Context, img source.Image) (source.Image, error) {
		if img.Format == source.L8 {
			return img, nil
		}
		return source.FromImage(img.ToImage(), source.L8), nil
	},
}
