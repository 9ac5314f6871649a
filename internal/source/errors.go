package source

import (
	"errors"
	"fmt"
)

// ErrImageLoad is matched by every ImageLoadError.
var ErrImageLoad = errors.New("image load failed")

// ImageLoadError reports an unreadable or undecodable input image.
type ImageLoadError struct {
	Path string
	Err  error
}

func (e *ImageLoadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("load image: %v", e.Err)
	}
	return fmt.Sprintf("load image %s: %v", e.Path, e.Err)
}

func (e *ImageLoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrImageLoad) match any ImageLoadError.
func (e *ImageLoadError) Is(target error) bool { return target == ErrImageLoad }
