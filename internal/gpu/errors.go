package gpu

import (
	"errors"
	"fmt"
)

// ErrResourceCreation is matched by every ResourceError.
var ErrResourceCreation = errors.New("gpu resource creation failed")

// ResourceError reports a failed context, program, texture or framebuffer allocation.
type ResourceError struct {
	Stage string // "device", "texture", "framebuffer", "program"
	Err   error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("create %s: %v", e.Stage, e.Err)
}

func (e *ResourceError) Unwrap() error { return e.Err }

func (e *ResourceError) Is(target error) bool { return target == ErrResourceCreation }

func resourceErr(stage string, format string, args ...any) error {
	return &ResourceError{Stage: stage, Err: fmt.Errorf(format, args...)}
}
