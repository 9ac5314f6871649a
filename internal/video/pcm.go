package video

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
)

// PCMOptions configure the audio encoder for generated soundtracks.
type PCMOptions struct {
	Binary     string
	SampleRate int // defaults to 44100
	Output     string
	Bitrate    string // defaults to "96k"
}

// Args builds the ffmpeg command line for interleaved stereo f32le input.
func (o PCMOptions) Args() []string {
	rate := o.SampleRate
	if rate <= 0 {
		rate = 44100
	}
	bitrate := o.Bitrate
	if bitrate == "" {
		bitrate = "96k"
	}
	return []string{
		"-loglevel", "error",
		"-hide_banner",
		"-f", "f32le",
		"-ar", fmt.Sprintf("%d", rate),
		"-ac", "2",
		"-i", "-",
		"-af", "dynaudnorm",
		"-c:a", "libopus",
		"-b:a", bitrate,
		o.Output, "-y",
	}
}

// PCMSink encodes interleaved stereo float samples through ffmpeg.
type PCMSink struct {
	output string

	mu     sync.Mutex
	proc   *process
	buf    []byte
	closed bool
}

func NewPCMSink(ctx context.Context, opts PCMOptions) (*PCMSink, error) {
	if opts.Output == "" {
		return nil, errors.New("no output path")
	}
	proc, err := startProcess(ctx, opts.Binary, opts.Args())
	if err != nil {
		return nil, err
	}
	return &PCMSink{output: opts.Output, proc: proc}, nil
}

// Write sends raw f32le bytes.
func (s *PCMSink) Write(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.proc.write(b)
}

// WriteSamples sends interleaved left/right samples.
func (s *PCMSink) WriteSamples(samples []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.buf = AppendF32LE(s.buf[:0], samples)
	return s.proc.write(s.buf)
}

func (s *PCMSink) Close() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.output, ErrClosed
	}
	s.closed = true
	if err := s.proc.wait(); err != nil {
		return "", err
	}
	return s.output, nil
}

func (s *PCMSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.proc.kill()
	}
	return nil
}

// AppendF32LE appends samples as little-endian IEEE floats.
func AppendF32LE(dst []byte, samples []float32) []byte {
	for _, v := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}
