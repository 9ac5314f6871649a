package gpu

import (
	"fmt"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendSoftware = "software"
	BackendWebGPU   = "webgpu"
)

// Open creates a device for the named backend. The webgpu backend exists
// only in binaries built with the webgpu tag.
func Open(backend string, opts SoftwareOptions) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSoftware:
		return NewSoftwareDevice(opts), nil
	case BackendWebGPU:
		return openWebGPU()
	default:
		return nil, fmt.Errorf("unknown gpu backend %q", backend)
	}
}
