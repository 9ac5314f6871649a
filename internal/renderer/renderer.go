package renderer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/logging"
	"github.com/ivlev/depthflow/internal/system"
	"github.com/ivlev/depthflow/internal/texture"
	"github.com/ivlev/depthflow/internal/timeline"
	"github.com/ivlev/depthflow/internal/uniform"
	"github.com/ivlev/depthflow/internal/video"
)

// Options tune a Renderer. The zero value is silent and uses the shared buffer pool.
type Options struct {
	Logger *slog.Logger
	// Progress draws a bar on ProgressOutput when it is a terminal.
	Progress       bool
	ProgressOutput *os.File
	Pool           *system.BufferPool
}

// Renderer drives the per-frame loop: resolve the timeline, upload uniforms,
// draw, read back and hand the frame to a sink. It owns its program and must
// be used from the goroutine that owns the device.
type Renderer struct {
	dev     gpu.Device
	prog    gpu.Program
	surface *uniform.Surface
	log     *slog.Logger
	opts    Options
}

// Result describes a finished render.
type Result struct {
	Output     string
	Frames     int
	Timestamps []float64
	Width      int
	Height     int
	Elapsed    time.Duration
}

// New links the program described by desc on dev.
func New(dev gpu.Device, desc gpu.ProgramDesc, opts Options) (*Renderer, error) {
	prog, err := dev.NewProgram(desc)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		dev:     dev,
		prog:    prog,
		surface: uniform.NewSurface(prog),
		log:     logging.Component(logging.OrNop(opts.Logger), "renderer"),
		opts:    opts,
	}, nil
}

// Surface exposes the uniform surface, for custom parameters.
func (r *Renderer) Surface() *uniform.Surface {
	return r.surface
}

func (r *Renderer) Release() {
	if r.prog != nil {
		r.prog.Release()
		r.prog = nil
	}
}

// Timestamps returns round(duration*fps) evenly spaced times starting at 0,
// all strictly below duration.
func Timestamps(duration float64, fps int) []float64 {
	total := int(math.Round(duration * float64(fps)))
	if total <= 0 {
		return nil
	}
	ts := make([]float64, total)
	for i := range ts {
		ts[i] = float64(i) * duration / float64(total)
	}
	return ts
}

// RenderVideo renders duration seconds at fps into sink, strictly one frame
// at a time. The sink is closed on success and aborted on failure.
func (r *Renderer) RenderVideo(ctx context.Context, tl *timeline.Timeline, set *texture.Set, duration float64, fps int, sink video.Sink) (Result, error) {
	if fps <= 0 || duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return Result{}, &StageError{Stage: StageRender, Err: fmt.Errorf("invalid duration %v at %d fps", duration, fps)}
	}
	ts := Timestamps(duration, fps)
	if len(ts) == 0 {
		return Result{}, &StageError{Stage: StageRender, Err: fmt.Errorf("%vs at %d fps yields no frames", duration, fps)}
	}

	start := time.Now()
	res := Result{Timestamps: ts}

	abort := func() {
		if a, ok := sink.(video.Aborter); ok {
			if err := a.Abort(); err != nil {
				r.log.Warn("sink abort failed", "error", err)
			}
		} else if _, err := sink.Close(); err != nil {
			r.log.Warn("sink close failed", "error", err)
		}
	}

	fb, err := set.EnsureFramebuffer()
	if err != nil {
		abort()
		return res, &StageError{Stage: StageTexture, Err: err}
	}
	res.Width, res.Height = fb.Width(), fb.Height()

	topDown := false
	if td, ok := sink.(video.TopDown); ok {
		topDown = td.TopDown()
	}

	size := gpu.FrameSize(fb)
	buf := r.getBuffer(size)
	defer r.putBuffer(buf)
	var flipped []byte
	if topDown {
		flipped = r.getBuffer(size)
		defer r.putBuffer(flipped)
	}

	bar := r.progressBar(len(ts))
	r.log.Info("render started", "frames", len(ts), "fps", fps, "size", fmt.Sprintf("%dx%d", res.Width, res.Height))

	for i, T := range ts {
		if err := ctx.Err(); err != nil {
			abort()
			set.ReleaseFramebuffer()
			r.log.Info("render cancelled", "frame", i)
			return res, &StageError{Stage: StageRender, Err: err}
		}

		fb, err = set.EnsureFramebuffer()
		if err != nil {
			abort()
			return res, &StageError{Stage: StageTexture, Err: err}
		}
		if gpu.FrameSize(fb) != size {
			abort()
			return res, &StageError{Stage: StageTexture, Err: errors.New("framebuffer resized during render")}
		}

		if err := r.draw(tl, fb, T, buf); err != nil {
			abort()
			return res, &StageError{Stage: StageRender, Err: fmt.Errorf("frame %d (T=%.4f): %w", i, T, err)}
		}

		frame := buf
		if topDown {
			flipRows(flipped, buf, fb.Width()*3, fb.Height())
			frame = flipped
		}
		if err := sink.Write(frame); err != nil {
			abort()
			return res, &EncoderSinkError{Frames: i, Err: err}
		}
		res.Frames++
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	out, err := sink.Close()
	if err != nil {
		return res, &EncoderSinkError{Frames: res.Frames, Err: err}
	}
	res.Output = out
	res.Elapsed = time.Since(start)
	r.log.Info("render finished", "frames", res.Frames, "output", out, "elapsed", res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// RenderImage renders the single frame at T, top row first.
func (r *Renderer) RenderImage(ctx context.Context, tl *timeline.Timeline, set *texture.Set, T float64) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}
	fb, err := set.EnsureFramebuffer()
	if err != nil {
		return nil, &StageError{Stage: StageTexture, Err: err}
	}
	buf := r.getBuffer(gpu.FrameSize(fb))
	defer r.putBuffer(buf)

	if err := r.draw(tl, fb, T, buf); err != nil {
		return nil, &StageError{Stage: StageRender, Err: err}
	}

	w, h := fb.Width(), fb.Height()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		src := buf[(h-1-y)*w*3 : (h-y)*w*3]
		dst := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			dst[x*4+0] = src[x*3+0]
			dst[x*4+1] = src[x*3+1]
			dst[x*4+2] = src[x*3+2]
			dst[x*4+3] = 0xff
		}
	}
	return img, nil
}

// draw resolves the snapshot for T, uploads it and reads the frame back
// bottom row first into dst.
func (r *Renderer) draw(tl *timeline.Timeline, fb gpu.Framebuffer, T float64, dst []byte) error {
	snap := tl.At(T)
	snap.SetFloat(uniform.Time, T)
	snap.SetVec2(uniform.Resolution, float64(fb.Width()), float64(fb.Height()))
	r.surface.Apply(snap)

	r.dev.Clear(fb)
	if err := r.dev.Draw(r.prog, fb); err != nil {
		return err
	}
	return r.dev.Read(fb, dst)
}

// flipRows copies src into dst with the row order reversed.
func flipRows(dst, src []byte, stride, rows int) {
	for y := 0; y < rows; y++ {
		copy(dst[y*stride:(y+1)*stride], src[(rows-1-y)*stride:(rows-y)*stride])
	}
}

func (r *Renderer) getBuffer(size int) []byte {
	if r.opts.Pool != nil {
		return r.opts.Pool.Get(size)
	}
	return system.GetBuffer(size)
}

func (r *Renderer) putBuffer(b []byte) {
	if r.opts.Pool != nil {
		r.opts.Pool.Put(b)
		return
	}
	system.PutBuffer(b)
}

func (r *Renderer) progressBar(total int) *progressbar.ProgressBar {
	if !r.opts.Progress {
		return nil
	}
	out := r.opts.ProgressOutput
	if out == nil {
		out = os.Stderr
	}
	if !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd()) {
		return nil
	}
	return newBar(out, total)
}

func newBar(w io.Writer, total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("[*] Rendering"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
