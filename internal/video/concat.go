package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ConcatOptions join rendered clips into one file, optionally with xfade
// transitions and a soundtrack.
type ConcatOptions struct {
	Binary   string
	Segments []string
	// Durations per segment; missing entries share TotalDuration evenly.
	Durations     []float64
	TotalDuration float64
	Output        string
	TmpDir        string

	Transition   string // xfade transition name; "" or "none" for hard cuts
	FadeDuration float64

	Audio            string
	BackgroundAudio  string
	BackgroundVolume float64

	Encoder string
	Quality int
}

func (o ConcatOptions) useTransition() bool {
	return o.Transition != "" && o.Transition != "none" && len(o.Segments) > 1
}

// needsFilter reports whether re-encoding through a filter graph is required;
// otherwise segments are stream-copied with the concat demuxer.
func (o ConcatOptions) needsFilter() bool {
	return o.useTransition() || o.BackgroundAudio != "" || o.Audio != ""
}

func (o ConcatOptions) duration(i int) float64 {
	if i < len(o.Durations) {
		return o.Durations[i]
	}
	return o.TotalDuration / float64(len(o.Segments))
}

// Args builds the ffmpeg command line. listPath is the concat list used on the
// stream-copy path.
func (o ConcatOptions) Args(listPath string) []string {
	if !o.needsFilter() {
		return []string{"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", o.Output}
	}

	args := []string{"-y"}
	for _, p := range o.Segments {
		args = append(args, "-i", p)
	}
	audioIndex := -1
	if o.Audio != "" {
		audioIndex = len(o.Segments)
		args = append(args, "-i", o.Audio)
	}

	var graph strings.Builder
	lastOut := "[0:v]"

	if o.useTransition() {
		offset := 0.0
		for i := 1; i < len(o.Segments); i++ {
			offset += o.duration(i-1) - o.FadeDuration
			out := fmt.Sprintf("[v%d]", i)
			fmt.Fprintf(&graph, "%s[%d:v]xfade=transition=%s:duration=%f:offset=%f%s;",
				lastOut, i, o.Transition, o.FadeDuration, offset, out)
			lastOut = out
		}
	} else if len(o.Segments) > 1 {
		for i := range o.Segments {
			fmt.Fprintf(&graph, "[%d:v]", i)
		}
		fmt.Fprintf(&graph, "concat=n=%d:v=1:a=0[vconcat];", len(o.Segments))
		lastOut = "[vconcat]"
	}

	audioOut := ""
	if audioIndex != -1 {
		if o.BackgroundAudio != "" {
			bgIndex := audioIndex + 1
			args = append(args, "-stream_loop", "-1", "-i", o.BackgroundAudio)

			fadeIn, fadeOut := 5.0, 5.0
			total := o.TotalDuration
			if total < fadeIn+fadeOut {
				fadeIn = total * 0.1
				fadeOut = total * 0.1
			}
			volume := fmt.Sprintf("volume='%f*(if(lte(t,%f), 0.1 + 0.9*(t/%f), if(gte(t, %f), (%f-t)/%f, 1.0)))':eval=frame",
				o.BackgroundVolume, fadeIn, fadeIn, total-fadeOut, total, fadeOut)
			fmt.Fprintf(&graph, "[%d:a]%s[bg_a];[%d:a]volume=1.0[main_a];[main_a][bg_a]amix=inputs=2:duration=first:dropout_transition=3[aout];",
				bgIndex, volume, audioIndex)
			audioOut = "[aout]"
		} else {
			audioOut = fmt.Sprintf("%d:a", audioIndex)
		}
	}

	if g := strings.TrimSuffix(graph.String(), ";"); g != "" {
		args = append(args, "-filter_complex", g)
	}
	args = append(args, "-map", lastOut)
	if audioOut != "" {
		args = append(args, "-map", audioOut, "-shortest")
	}

	encoder := o.Encoder
	if encoder == "" {
		encoder = DefaultEncoder
	}
	args = append(args, "-c:v", encoder, "-pix_fmt", "yuv420p")
	args = append(args, QualityArgs(encoder, o.Quality)...)
	return append(args, o.Output)
}

// Concat runs ffmpeg to join the segments.
func Concat(ctx context.Context, o ConcatOptions) error {
	if len(o.Segments) == 0 {
		return fmt.Errorf("no segments to join")
	}
	binary := o.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	listPath := ""
	if !o.needsFilter() {
		dir := o.TmpDir
		if dir == "" {
			dir = filepath.Dir(o.Output)
		}
		f, err := os.CreateTemp(dir, "inputs-*.txt")
		if err != nil {
			return err
		}
		listPath = f.Name()
		defer os.Remove(listPath)
		for _, p := range o.Segments {
			abs, _ := filepath.Abs(p)
			fmt.Fprintf(f, "file '%s'\n", abs)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}

	cmd := exec.CommandContext(ctx, binary, o.Args(listPath)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg concat error: %v, output: %s", err, string(out))
	}
	return nil
}
