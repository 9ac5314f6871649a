package system

import (
	"context"
	"os/exec"
	"strings"
)

// Preferred hardware encoders, best first. libx264 is the fallback.
var hardwareEncoders = []string{
	"h264_videotoolbox", // macOS
	"h264_nvenc",        // NVIDIA
}

// ListEncoders returns the encoder names ffmpeg reports.
func ListEncoders(ctx context.Context) ([]string, error) {
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		return nil, err
	}
	return ParseEncoders(string(out)), nil
}

// ParseEncoders extracts names from `ffmpeg -encoders` output, skipping the
// legend above the "------" separator.
func ParseEncoders(out string) []string {
	var names []string
	body := false
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if !body {
			body = strings.HasPrefix(fields[0], "------")
			continue
		}
		if len(fields) >= 2 {
			names = append(names, fields[1])
		}
	}
	return names
}

// GetBestH264Encoder picks the first available hardware encoder, else libx264.
func GetBestH264Encoder(ctx context.Context) string {
	names, err := ListEncoders(ctx)
	if err != nil {
		return "libx264"
	}
	return pickEncoder(names)
}

func pickEncoder(available []string) string {
	for _, enc := range hardwareEncoders {
		for _, name := range available {
			if name == enc {
				return enc
			}
		}
	}
	return "libx264"
}

// DefaultQuality is a sensible quality number for the encoder's rate control.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75 // x100 kbit/s
	case "h264_nvenc":
		return 25
	default:
		return 25
	}
}
