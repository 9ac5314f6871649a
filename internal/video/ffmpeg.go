package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/ivlev/depthflow/internal/logging"
)

// DefaultEncoder is used when no hardware encoder is requested.
const DefaultEncoder = "libx264"

// FFmpegOptions configure a rawvideo -> file encoder process.
type FFmpegOptions struct {
	Binary string // defaults to "ffmpeg"
	// Width and Height of the incoming frames (the supersampled render size).
	Width  int
	Height int
	FPS    int
	// SSAA is divided out of the frame size by a lanczos downscale; <=1 keeps it.
	SSAA    float64
	Output  string
	Audio   string
	Encoder string
	Quality int
	Logger  *slog.Logger
}

// OutputSize is the encoded resolution: the frame size divided by SSAA,
// rounded down to even numbers as yuv420p requires.
func (o FFmpegOptions) OutputSize() (int, int) {
	ssaa := o.SSAA
	if ssaa <= 1 {
		ssaa = 1
	}
	return even(float64(o.Width) / ssaa), even(float64(o.Height) / ssaa)
}

func even(v float64) int {
	n := int(math.Floor(v + 1e-9))
	n -= n % 2
	return max(n, 2)
}

// QualityArgs maps a quality number onto the encoder's own rate control.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// Bitrate in kbit/s: 75 -> 7.5 Mbit/s
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", fmt.Sprintf("%d", quality)}
	default: // libx264
		return []string{"-crf", fmt.Sprintf("%d", quality), "-preset", "medium"}
	}
}

// Args builds the ffmpeg command line, without the binary.
func (o FFmpegOptions) Args() []string {
	encoder := o.Encoder
	if encoder == "" {
		encoder = DefaultEncoder
	}
	outW, outH := o.OutputSize()

	args := []string{
		"-loglevel", "error",
		"-hide_banner",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-r", fmt.Sprintf("%d", o.FPS),
		"-i", "-",
	}
	if o.Audio != "" {
		args = append(args, "-i", o.Audio, "-c:a", "aac", "-shortest")
	}
	args = append(args,
		"-vf", fmt.Sprintf("scale=%d:%d:flags=lanczos", outW, outH),
		"-c:v", encoder,
	)
	args = append(args, QualityArgs(encoder, o.Quality)...)
	args = append(args, "-pix_fmt", "yuv420p", o.Output, "-y")
	return args
}

func (o FFmpegOptions) validate() error {
	if o.Width <= 0 || o.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", o.Width, o.Height)
	}
	if o.FPS <= 0 {
		return fmt.Errorf("invalid fps %d", o.FPS)
	}
	if o.Output == "" {
		return errors.New("no output path")
	}
	return nil
}

// FFmpegSink streams frames into an ffmpeg child process over stdin.
type FFmpegSink struct {
	opts      FFmpegOptions
	frameSize int
	log       *slog.Logger

	mu     sync.Mutex
	proc   *process
	closed bool
}

// NewFFmpegSink starts ffmpeg. The process is killed when ctx is cancelled.
func NewFFmpegSink(ctx context.Context, opts FFmpegOptions) (*FFmpegSink, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := logging.Component(logging.OrNop(opts.Logger), "ffmpeg")
	proc, err := startProcess(ctx, opts.Binary, opts.Args())
	if err != nil {
		return nil, err
	}
	log.Debug("encoder started", "output", opts.Output, "encoder", opts.Encoder, "size", fmt.Sprintf("%dx%d", opts.Width, opts.Height))
	return &FFmpegSink{
		opts:      opts,
		frameSize: opts.Width * opts.Height * 3,
		log:       log,
		proc:      proc,
	}, nil
}

// TopDown reports true: rawvideo rows start at the top of the picture.
func (s *FFmpegSink) TopDown() bool { return true }

func (s *FFmpegSink) Write(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(frame) != s.frameSize {
		return fmt.Errorf("frame is %d bytes, want %d", len(frame), s.frameSize)
	}
	return s.proc.write(frame)
}

func (s *FFmpegSink) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.opts.Output, ErrClosed
	}
	s.closed = true
	if err := s.proc.wait(); err != nil {
		return "", err
	}
	return s.opts.Output, nil
}

// Abort kills the encoder and removes the partial output.
func (s *FFmpegSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.proc.kill()
	if err := os.Remove(s.opts.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("failed to remove partial output", "path", s.opts.Output, "error", err)
	}
	return nil
}

// process wraps a child whose stdin is the data stream.
type process struct {
	name   string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer

	done    bool
	waitErr error
}

func startProcess(ctx context.Context, binary string, args []string) (*process, error) {
	if binary == "" {
		binary = "ffmpeg"
	}
	p := &process{name: binary, cmd: exec.CommandContext(ctx, binary, args...)}
	p.cmd.Stderr = &p.stderr

	stdin, err := p.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	p.stdin = stdin
	if err := p.cmd.Start(); err != nil {
		return nil, fmt.Errorf("%s start error: %w", binary, err)
	}
	return p, nil
}

func (p *process) write(b []byte) error {
	if _, err := p.stdin.Write(b); err != nil {
		// The child is gone; reap it so stderr is complete.
		p.wait()
		return fmt.Errorf("%s write error: %w%s", p.name, err, p.output())
	}
	return nil
}

// wait closes stdin and reaps the child. Safe to call more than once.
func (p *process) wait() error {
	if !p.done {
		p.done = true
		p.stdin.Close()
		if err := p.cmd.Wait(); err != nil {
			p.waitErr = fmt.Errorf("%s wait error: %w%s", p.name, err, p.output())
		}
	}
	return p.waitErr
}

func (p *process) kill() {
	if p.done {
		return
	}
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
	p.wait()
}

func (p *process) output() string {
	out := strings.TrimSpace(p.stderr.String())
	if out == "" {
		return ""
	}
	return ", output: " + out
}
