//go:build !webgpu

package gpu

import "errors"

func openWebGPU() (Device, error) {
	return nil, &ResourceError{Stage: "device", Err: errors.New("binary built without the webgpu tag")}
}
