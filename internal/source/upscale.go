package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
)

// ErrUpscalerNotFound means the upscaler binary is not on PATH.
var ErrUpscalerNotFound = errors.New("upscaler binary not found")

// UpscalerTool describes one external ncnn-vulkan upscaler.
type UpscalerTool struct {
	Binary string
	Scales []int
	Noise  []int // nil when the tool has no denoise level
	Models []string
}

// Upscalers lists the supported tools by name.
var Upscalers = map[string]UpscalerTool{
	"realsr": {
		Binary: "realsr-ncnn-vulkan",
		Scales: []int{4},
		Models: []string{"DF2K", "DF2K_JPEG"},
	},
	"srmd": {
		Binary: "srmd-ncnn-vulkan",
		Scales: []int{2, 3, 4},
		Noise:  []int{-1, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
	},
	"waifu2x": {
		Binary: "waifu2x-ncnn-vulkan",
		Scales: []int{1, 2, 4, 8, 16, 32},
		Noise:  []int{-1, 0, 1, 2, 3},
	},
}

// Upscaler enlarges an input image with an external tool before depth
// estimation. Binary overrides the tool's default executable.
type Upscaler struct {
	Tool   string
	Binary string
	Scale  int
	Noise  int
	Model  string
}

func (u Upscaler) Validate() error {
	tool, ok := Upscalers[u.Tool]
	if !ok {
		return fmt.Errorf("unknown upscaler %q", u.Tool)
	}
	if !slices.Contains(tool.Scales, u.Scale) {
		return fmt.Errorf("%s: scale %d not in %v", u.Tool, u.Scale, tool.Scales)
	}
	if tool.Noise != nil && !slices.Contains(tool.Noise, u.Noise) {
		return fmt.Errorf("%s: noise %d not in %v", u.Tool, u.Noise, tool.Noise)
	}
	if u.Model != "" && !slices.Contains(tool.Models, u.Model) {
		return fmt.Errorf("%s: model %q not in %v", u.Tool, u.Model, tool.Models)
	}
	return nil
}

func (u Upscaler) binary() string {
	if u.Binary != "" {
		return u.Binary
	}
	return Upscalers[u.Tool].Binary
}

// Args builds the command line, without the binary.
func (u Upscaler) Args(in, out string) []string {
	tool := Upscalers[u.Tool]
	args := []string{"-i", in, "-o", out, "-s", strconv.Itoa(u.Scale)}
	if tool.Noise != nil {
		args = append(args, "-n", strconv.Itoa(u.Noise))
	}
	if model := u.Model; model != "" || len(tool.Models) > 0 {
		if model == "" {
			model = tool.Models[0]
		}
		args = append(args, "-m", "models-"+model)
	}
	return append(args, "-f", "png")
}

// Upscale runs the tool on img and returns the enlarged image in img's format.
func (u Upscaler) Upscale(ctx context.Context, img Image) (Image, error) {
	if err := u.Validate(); err != nil {
		return Image{}, err
	}
	binary, err := exec.LookPath(u.binary())
	if err != nil {
		return Image{}, fmt.Errorf("%w: %s", ErrUpscalerNotFound, u.binary())
	}

	dir, err := os.MkdirTemp("", "depthflow_upscale_")
	if err != nil {
		return Image{}, err
	}
	defer os.RemoveAll(dir)

	in, out := filepath.Join(dir, "in.png"), filepath.Join(dir, "out.png")
	f, err := os.Create(in)
	if err != nil {
		return Image{}, err
	}
	if err := EncodePNG(f, img); err != nil {
		f.Close()
		return Image{}, err
	}
	if err := f.Close(); err != nil {
		return Image{}, err
	}

	cmd := exec.CommandContext(ctx, binary, u.Args(in, out)...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return Image{}, fmt.Errorf("%s error: %v, output: %s", u.Tool, err, string(output))
	}
	return LoadFile(out, img.Format)
}
