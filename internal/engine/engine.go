package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/depthflow/internal/analyzer"
	"github.com/ivlev/depthflow/internal/config"
	"github.com/ivlev/depthflow/internal/depth"
	"github.com/ivlev/depthflow/internal/director"
	"github.com/ivlev/depthflow/internal/effects"
	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/logging"
	"github.com/ivlev/depthflow/internal/renderer"
	"github.com/ivlev/depthflow/internal/source"
	"github.com/ivlev/depthflow/internal/system"
	"github.com/ivlev/depthflow/internal/texture"
	"github.com/ivlev/depthflow/internal/timeline"
	"github.com/ivlev/depthflow/internal/video"
)

// StageError identifies the failing pipeline step: cache, texture, render or encode.
type StageError = renderer.StageError

type Stage = renderer.Stage

const (
	StageCache   = renderer.StageCache
	StageTexture = renderer.StageTexture
	StageRender  = renderer.StageRender
	StageEncode  = renderer.StageEncode
)

// SinkFactory opens the frame sink for one clip.
type SinkFactory func(ctx context.Context, opts video.FFmpegOptions) (video.Sink, error)

// FFmpegSinks is the default SinkFactory.
func FFmpegSinks(ctx context.Context, opts video.FFmpegOptions) (video.Sink, error) {
	s, err := video.NewFFmpegSink(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Project renders one configured job.
type Project struct {
	Config *config.Config
	Cache  *depth.Cache
	Device gpu.Device
	// NewSink defaults to FFmpegSinks.
	NewSink SinkFactory
	// Out receives the [*] progress lines; nil silences them.
	Out io.Writer

	log *slog.Logger
}

// Report summarizes a finished run.
type Report struct {
	Output     string
	Clips      int
	Frames     int
	DepthTime  time.Duration
	RenderTime time.Duration
	Total      time.Duration
	Cache      depth.Stats
}

func NewProject(cfg *config.Config, cache *depth.Cache, dev gpu.Device, logger *slog.Logger) *Project {
	return &Project{
		Config:  cfg,
		Cache:   cache,
		Device:  dev,
		NewSink: FFmpegSinks,
		Out:     os.Stdout,
		log:     logging.Component(logging.OrNop(logger), "engine"),
	}
}

func (p *Project) printf(format string, args ...any) {
	if p.Out != nil {
		fmt.Fprintf(p.Out, format, args...)
	}
}

// clip is one rendered unit: an image pair with its depth maps.
type clip struct {
	colorA, depthA source.Image
	colorB, depthB source.Image
	hasB           bool
}

// Run renders the configured input to the configured output.
func (p *Project) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	cfg := p.Config
	if p.NewSink == nil {
		p.NewSink = FFmpegSinks
	}

	if cfg.Duration == 0 && cfg.AudioPath != "" {
		d, err := system.GetAudioDuration(ctx, cfg.AudioPath)
		if err != nil {
			return Report{}, fmt.Errorf("audio duration: %w", err)
		}
		cfg.Duration = d
		p.printf("[*] Duration taken from audio: %.2fs\n", d)
	}
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}

	src, err := source.Open(cfg.InputPath, cfg.DPI)
	if err != nil {
		return Report{}, &StageError{Stage: StageCache, Err: err}
	}
	defer src.Close()
	if src.Count() == 0 {
		return Report{}, fmt.Errorf("source %s has no pages or images", cfg.InputPath)
	}

	output := cfg.OutputVideo
	if cfg.TempOutput {
		output = video.NewTempOutput("", ".mp4")
	}

	fmt.Fprintln(p.outOrDiscard(), "--- [DEPTHFLOW] ---")
	p.printf("[*] Source: %s | Images/Pages: %d\n", cfg.InputPath, src.Count())
	p.printf("[*] Duration: %.2fs @ %d FPS | SSAA: %.3f | Backend: %s\n", cfg.Duration, cfg.FPS, cfg.SSAA, cfg.Backend)

	var rep Report
	if cfg.AllPages && src.Count() > 1 {
		rep, err = p.runPages(ctx, src, output)
	} else {
		rep, err = p.runSingle(ctx, src, output)
	}
	rep.Total = time.Since(start)
	rep.Cache = p.Cache.Stats()
	if err != nil {
		return rep, err
	}

	if cfg.TempOutput {
		video.ScheduleRemoval(output, video.DefaultRemovalDelay, p.log)
	}
	p.printf("[+++] Done! Video saved: %s\n", rep.Output)
	if cfg.ShowStats {
		p.report(ctx, rep)
	}
	return rep, nil
}

func (p *Project) outOrDiscard() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}

func (p *Project) runSingle(ctx context.Context, src source.Source, output string) (Report, error) {
	var rep Report
	colorA, err := src.Load(0)
	if err == nil {
		colorA, err = p.upscale(ctx, colorA, "A")
	}
	if err != nil {
		return rep, &StageError{Stage: StageCache, Err: err}
	}
	c := clip{colorA: colorA}
	if p.Config.InputB != "" {
		c.colorB, err = source.LoadFile(p.Config.InputB, source.RGB8)
		if err == nil {
			c.colorB, err = p.upscale(ctx, c.colorB, "B")
		}
		if err != nil {
			return rep, &StageError{Stage: StageCache, Err: err}
		}
		c.hasB = true
	}

	depthStart := time.Now()
	if err := p.estimate(ctx, &c); err != nil {
		return rep, err
	}
	rep.DepthTime = time.Since(depthStart)

	renderStart := time.Now()
	res, err := p.renderClip(ctx, c, p.Config.Duration, output, p.Config.AudioPath)
	rep.RenderTime = time.Since(renderStart)
	rep.Frames = res.Frames
	if err != nil {
		return rep, err
	}
	rep.Output = res.Output
	rep.Clips = 1
	return rep, nil
}

// upscale runs the configured upscaler on img, or returns it unchanged.
func (p *Project) upscale(ctx context.Context, img source.Image, label string) (source.Image, error) {
	u := p.Config.Upscaler()
	if u == nil {
		return img, nil
	}
	out, err := u.Upscale(ctx, img)
	if err != nil {
		return source.Image{}, fmt.Errorf("upscale %s: %w", label, err)
	}
	p.log.Debug("upscaled input", "image", label, "tool", u.Tool, "from", fmt.Sprintf("%dx%d", img.Width, img.Height), "to", fmt.Sprintf("%dx%d", out.Width, out.Height))
	p.printf("[*] Upscaled %s with %s: %dx%d -> %dx%d\n", label, u.Tool, img.Width, img.Height, out.Width, out.Height)
	return out, nil
}

// estimate fills the depth maps of c, estimating A and B concurrently.
func (p *Project) estimate(ctx context.Context, c *clip) error {
	modelID := p.Config.ModelID()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := p.depthFor(gctx, c.colorA, modelID, "A")
		c.depthA = d
		return err
	})
	if c.hasB {
		g.Go(func() error {
			d, err := p.depthFor(gctx, c.colorB, modelID, "B")
			c.depthB = d
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return &StageError{Stage: StageCache, Err: err}
	}
	return nil
}

func (p *Project) depthFor(ctx context.Context, img source.Image, modelID, label string) (source.Image, error) {
	res, err := p.Cache.GetDepth(ctx, img, modelID)
	if err != nil {
		return source.Image{}, err
	}
	for _, w := range res.Warnings {
		p.log.Warn("depth map warning", "image", label, "warning", w)
		p.printf("[!] Depth %s: %v\n", label, w)
	}
	if res.Hit {
		p.printf("[*] Depth %s: cache hit (%s)\n", label, res.Key)
	} else {
		p.printf("[*] Depth %s: estimated with %s\n", label, modelID)
	}
	return res.Depth, nil
}

// renderClip uploads c, builds its timeline and renders it to output.
func (p *Project) renderClip(ctx context.Context, c clip, duration float64, output, audio string) (renderer.Result, error) {
	cfg := p.Config

	set := texture.NewSet(p.Device, cfg.SSAA)
	set.SetLogger(p.log)
	defer set.Release()

	if err := set.Upload(texture.PairA, c.colorA, c.depthA); err != nil {
		return renderer.Result{}, &StageError{Stage: StageTexture, Err: err}
	}
	if c.hasB {
		if err := set.Upload(texture.PairB, c.colorB, c.depthB); err != nil {
			return renderer.Result{}, &StageError{Stage: StageTexture, Err: err}
		}
	}

	tl, err := p.buildTimeline(c, duration)
	if err != nil {
		return renderer.Result{}, &StageError{Stage: StageRender, Err: err}
	}

	r, err := renderer.New(p.Device, gpu.DefaultProgram(), renderer.Options{Logger: p.log, Progress: p.Out != nil})
	if err != nil {
		return renderer.Result{}, &StageError{Stage: StageRender, Err: err}
	}
	defer r.Release()

	w, h := set.RenderResolution()
	encoder := cfg.VideoEncoder
	if encoder == "" {
		encoder = system.GetBestH264Encoder(ctx)
		cfg.VideoEncoder = encoder
		p.printf("[*] Encoder: %s\n", encoder)
	}
	quality := cfg.Quality
	if quality == 0 {
		quality = system.DefaultQuality(encoder)
	}

	sink, err := p.NewSink(ctx, video.FFmpegOptions{
		Width:   w,
		Height:  h,
		FPS:     cfg.FPS,
		SSAA:    cfg.SSAA,
		Output:  output,
		Audio:   audio,
		Encoder: encoder,
		Quality: quality,
		Logger:  p.log,
	})
	if err != nil {
		return renderer.Result{}, &StageError{Stage: StageEncode, Err: err}
	}

	res, err := r.RenderVideo(ctx, tl, set, duration, cfg.FPS, sink)
	if err != nil {
		var sinkErr *renderer.EncoderSinkError
		if errors.As(err, &sinkErr) {
			return res, &StageError{Stage: StageEncode, Err: err}
		}
		return res, err
	}
	return res, nil
}

// buildTimeline picks the animation: a scenario file, a director tour of the
// image's regions, or a preset.
func (p *Project) buildTimeline(c clip, duration float64) (*timeline.Timeline, error) {
	cfg := p.Config
	if cfg.ScenarioInput != "" {
		sc, err := director.ReadScenario(cfg.ScenarioInput)
		if err != nil {
			return nil, fmt.Errorf("read scenario: %w", err)
		}
		p.printf("[*] Using scenario: %s\n", cfg.ScenarioInput)
		return director.Build(sc)
	}

	params := cfg.EffectParams()
	params.Duration = duration
	params.Crossfade = c.hasB

	if cfg.AutoFocus || cfg.Director {
		det, err := analyzer.NewDetector(cfg.Detector)
		if err != nil {
			return nil, err
		}
		if cfg.Director {
			target := c.colorA
			if _, ok := det.(*analyzer.DepthDetector); ok {
				target = c.depthA
			}
			blocks, err := det.Detect(target.ToImage())
			if err != nil {
				return nil, fmt.Errorf("detect: %w", err)
			}
			if len(blocks) > 0 {
				p.printf("[*] Director: %d regions\n", len(blocks))
				return director.NewDirector().Timeline(blocks, c.depthA, params)
			}
			p.log.Warn("director found no regions, using preset", "preset", cfg.Preset)
		}
		if cfg.AutoFocus {
			focus, block, err := analyzer.AutoFocus(det, c.colorA, c.depthA)
			if err != nil {
				return nil, err
			}
			params.Focus = focus
			p.printf("[*] Auto focus: %.3f (region %v)\n", focus, block.Rect)
		}
	}
	return effects.Preset(cfg.Preset, params)
}

// runPages renders every page into its own clip and joins them with transitions.
func (p *Project) runPages(ctx context.Context, src source.Source, output string) (Report, error) {
	cfg := p.Config
	var rep Report
	count := src.Count()

	tmpDir, err := os.MkdirTemp("", "depthflow_")
	if err != nil {
		return rep, err
	}
	defer os.RemoveAll(tmpDir)

	fade := cfg.FadeDuration
	if cfg.TransitionType == "" || cfg.TransitionType == "none" {
		fade = 0
	}
	durations := calculateDurations(cfg.Duration, fade, count, cfg.Effect.Seed)
	durations = alignToFrames(durations, cfg.FPS)

	// Depth for every page first, with bounded parallelism; rendering stays on this goroutine.
	clips := make([]clip, count)
	depthStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := 0; i < count; i++ {
		g.Go(func() error {
			img, err := src.Load(i)
			if err == nil {
				img, err = p.upscale(gctx, img, fmt.Sprintf("page %d", i+1))
			}
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			d, err := p.depthFor(gctx, img, cfg.ModelID(), fmt.Sprintf("page %d", i+1))
			if err != nil {
				return fmt.Errorf("page %d: %w", i+1, err)
			}
			clips[i] = clip{colorA: img, depthA: d}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, &StageError{Stage: StageCache, Err: err}
	}
	rep.DepthTime = time.Since(depthStart)

	renderStart := time.Now()
	segments := make([]string, count)
	for i, c := range clips {
		segments[i] = filepath.Join(tmpDir, fmt.Sprintf("s%d.mp4", i))
		res, err := p.renderClip(ctx, c, durations[i], segments[i], "")
		rep.Frames += res.Frames
		if err != nil {
			return rep, fmt.Errorf("page %d: %w", i+1, err)
		}
		rep.Clips++
		p.printf("[>] Ready: %d/%d\n", i+1, count)
	}
	rep.RenderTime = time.Since(renderStart)

	p.printf("[*] Joining %d clips...\n", count)
	err = video.Concat(ctx, video.ConcatOptions{
		Segments:      segments,
		Durations:     durations,
		TotalDuration: cfg.Duration,
		Output:        output,
		TmpDir:        tmpDir,
		Transition:    cfg.TransitionType,
		FadeDuration:  fade,
		Audio:         cfg.AudioPath,
		Encoder:       cfg.VideoEncoder,
		Quality:       cfg.Quality,
	})
	if err != nil {
		return rep, &StageError{Stage: StageEncode, Err: err}
	}
	rep.Output = output
	return rep, nil
}

func (p *Project) report(ctx context.Context, rep Report) {
	fps := 0.0
	if rep.Total > 0 {
		fps = float64(rep.Frames) / rep.Total.Seconds()
	}
	p.printf("--- [PERFORMANCE REPORT] ---\n"+
		"Build: %s\n"+
		"Total Time: %.2fs\n"+
		"Depth: %.2fs (hits %d, misses %d)\n"+
		"Rendering: %.2fs\n"+
		"Frames: %d (%.2f FPS)\n",
		p.Config.BuildVersion, rep.Total.Seconds(), rep.DepthTime.Seconds(), rep.Cache.Hits, rep.Cache.Misses,
		rep.RenderTime.Seconds(), rep.Frames, fps)
	if st, err := system.ReadStats(ctx); err == nil {
		p.printf("System: %s\n", st)
	}
	p.printf("----------------------------\n")
}
