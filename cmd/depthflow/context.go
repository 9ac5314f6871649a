package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/ivlev/depthflow/internal/config"
	"github.com/ivlev/depthflow/internal/depth"
	"github.com/ivlev/depthflow/internal/depth/onnx"
	"github.com/ivlev/depthflow/internal/director"
	"github.com/ivlev/depthflow/internal/engine"
	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/logging"
	"github.com/ivlev/depthflow/internal/source"
	"github.com/ivlev/depthflow/internal/system"
)

const (
	inputDir  = "input"
	audioDir  = "input/audio"
	outputDir = "output"
)

// commandContext carries the config file path and the flag values shared by
// every subcommand. Flags the user set win over the file.
type commandContext struct {
	configPath string
	flags      *pflag.FlagSet
	values     *config.Config
}

func newCommandContext() *commandContext {
	return &commandContext{values: config.Default()}
}

// overrides copies one flag value from src into dst.
var overrides = map[string]func(dst, src *config.Config){
	"input":              func(d, s *config.Config) { d.InputPath = s.InputPath },
	"input-b":            func(d, s *config.Config) { d.InputB = s.InputB },
	"output":             func(d, s *config.Config) { d.OutputVideo = s.OutputVideo },
	"temp-output":        func(d, s *config.Config) { d.TempOutput = s.TempOutput },
	"duration":           func(d, s *config.Config) { d.Duration = s.Duration },
	"fps":                func(d, s *config.Config) { d.FPS = s.FPS },
	"ssaa":               func(d, s *config.Config) { d.SSAA = s.SSAA },
	"backend":            func(d, s *config.Config) { d.Backend = s.Backend },
	"workers":            func(d, s *config.Config) { d.Workers = s.Workers },
	"dpi":                func(d, s *config.Config) { d.DPI = s.DPI },
	"preset":             func(d, s *config.Config) { d.Preset = s.Preset },
	"scenario":           func(d, s *config.Config) { d.ScenarioInput = s.ScenarioInput },
	"parallax":           func(d, s *config.Config) { d.Effect.Parallax = s.Effect.Parallax },
	"focus":              func(d, s *config.Config) { d.Effect.Focus = s.Effect.Focus },
	"zoom":               func(d, s *config.Config) { d.Effect.ZoomIntensity = s.Effect.ZoomIntensity },
	"vignette-radius":    func(d, s *config.Config) { d.Effect.VignetteRadius = s.Effect.VignetteRadius },
	"vignette-intensity": func(d, s *config.Config) { d.Effect.VignetteIntensity = s.Effect.VignetteIntensity },
	"orbit-period":       func(d, s *config.Config) { d.Effect.OrbitPeriod = s.Effect.OrbitPeriod },
	"seed":               func(d, s *config.Config) { d.Effect.Seed = s.Effect.Seed },
	"auto-focus":         func(d, s *config.Config) { d.AutoFocus = s.AutoFocus },
	"detector":           func(d, s *config.Config) { d.Detector = s.Detector },
	"director":           func(d, s *config.Config) { d.Director = s.Director },
	"all-pages":          func(d, s *config.Config) { d.AllPages = s.AllPages },
	"transition":         func(d, s *config.Config) { d.TransitionType = s.TransitionType },
	"fade":               func(d, s *config.Config) { d.FadeDuration = s.FadeDuration },
	"encoder":            func(d, s *config.Config) { d.VideoEncoder = s.VideoEncoder },
	"quality":            func(d, s *config.Config) { d.Quality = s.Quality },
	"audio":              func(d, s *config.Config) { d.AudioPath = s.AudioPath },
	"cache-dir":          func(d, s *config.Config) { d.Cache.Dir = s.Cache.Dir },
	"cache-bucket":       func(d, s *config.Config) { d.Cache.Bucket = s.Cache.Bucket },
	"model":              func(d, s *config.Config) { d.Model.Path = s.Model.Path },
	"model-id":           func(d, s *config.Config) { d.Model.ID = s.Model.ID },
	"ort-library":        func(d, s *config.Config) { d.Model.ORTLibrary = s.Model.ORTLibrary },
	"upscale":            func(d, s *config.Config) { d.Upscale.Tool = s.Upscale.Tool },
	"upscale-scale":      func(d, s *config.Config) { d.Upscale.Scale = s.Upscale.Scale },
	"upscale-noise":      func(d, s *config.Config) { d.Upscale.Noise = s.Upscale.Noise },
	"upscale-model":      func(d, s *config.Config) { d.Upscale.Model = s.Upscale.Model },
	"upscaler-binary":    func(d, s *config.Config) { d.Upscale.Binary = s.Upscale.Binary },
	"stats":              func(d, s *config.Config) { d.ShowStats = s.ShowStats },
	"log-level":          func(d, s *config.Config) { d.Log.Level = s.Log.Level },
	"log-format":         func(d, s *config.Config) { d.Log.Format = s.Log.Format },
}

func (c *commandContext) bindFlags(fs *pflag.FlagSet) {
	v := c.values
	c.flags = fs
	fs.StringVarP(&v.InputPath, "input", "i", "", "Image, image folder or PDF (default: newest image in input/)")
	fs.StringVar(&v.InputB, "input-b", "", "Second image to crossfade into")
	fs.StringVarP(&v.OutputVideo, "output", "o", "", "Output video (default: output/<name>_<time>.mp4)")
	fs.BoolVar(&v.TempOutput, "temp-output", false, "Write to a temporary file that is removed after a minute")
	fs.Float64VarP(&v.Duration, "duration", "d", v.Duration, "Duration in seconds (0 takes the audio length)")
	fs.IntVar(&v.FPS, "fps", v.FPS, "Frames per second")
	fs.Float64Var(&v.SSAA, "ssaa", v.SSAA, "Supersampling factor")
	fs.StringVar(&v.Backend, "backend", v.Backend, "Render backend: software, webgpu")
	fs.IntVar(&v.Workers, "workers", v.Workers, "Worker goroutines")
	fs.IntVar(&v.DPI, "dpi", v.DPI, "PDF rasterization DPI")
	fs.StringVarP(&v.Preset, "preset", "p", v.Preset, "Camera preset")
	fs.StringVarP(&v.ScenarioInput, "scenario", "s", "", "Scenario YAML replacing the preset (\"latest\" picks the newest in scenarios/)")
	fs.Float64Var(&v.Effect.Parallax, "parallax", v.Effect.Parallax, "Parallax strength")
	fs.Float64Var(&v.Effect.Focus, "focus", v.Effect.Focus, "Focal depth in [0, 1]")
	fs.Float64Var(&v.Effect.ZoomIntensity, "zoom", v.Effect.ZoomIntensity, "Breathing zoom amplitude")
	fs.Float64Var(&v.Effect.VignetteRadius, "vignette-radius", v.Effect.VignetteRadius, "Vignette radius")
	fs.Float64Var(&v.Effect.VignetteIntensity, "vignette-intensity", v.Effect.VignetteIntensity, "Vignette intensity")
	fs.Float64Var(&v.Effect.OrbitPeriod, "orbit-period", 0, "Orbit period in seconds (0 = duration)")
	fs.Uint64Var(&v.Effect.Seed, "seed", 0, "Seed for shake noise and clip lengths")
	fs.BoolVar(&v.AutoFocus, "auto-focus", false, "Focus on the dominant detected region")
	fs.StringVar(&v.Detector, "detector", v.Detector, "Region detector: contrast, depth")
	fs.BoolVar(&v.Director, "director", false, "Rack focus across detected regions")
	fs.BoolVar(&v.AllPages, "all-pages", false, "Render every page and join them")
	fs.StringVar(&v.TransitionType, "transition", v.TransitionType, "xfade transition: fade, wipeleft, slideup, pixelize, circlecrop, dissolve, none")
	fs.Float64Var(&v.FadeDuration, "fade", v.FadeDuration, "Transition length in seconds")
	fs.StringVar(&v.VideoEncoder, "encoder", "", "FFmpeg video encoder (default: best available H.264)")
	fs.IntVar(&v.Quality, "quality", 0, "Quality (0 = auto, x264: CRF 1-51, VideoToolbox: bitrate = Q*100 kbit/s)")
	fs.StringVar(&v.AudioPath, "audio", "", "Audio track (default: newest file in input/audio/)")
	fs.StringVar(&v.Cache.Dir, "cache-dir", v.Cache.Dir, "Depth cache directory")
	fs.StringVar(&v.Cache.Bucket, "cache-bucket", "", "S3 bucket for the depth cache")
	fs.StringVar(&v.Model.Path, "model", "", "ONNX depth model (default: luminance)")
	fs.StringVar(&v.Model.ID, "model-id", "", "Model id used in cache keys")
	fs.StringVar(&v.Model.ORTLibrary, "ort-library", "", "ONNX Runtime shared library")
	fs.StringVar(&v.Upscale.Tool, "upscale", "", "Upscale inputs before depth estimation: realsr, srmd, waifu2x")
	fs.IntVar(&v.Upscale.Scale, "upscale-scale", 0, "Upscale factor (0 = 4)")
	fs.IntVar(&v.Upscale.Noise, "upscale-noise", 0, "Denoise level for srmd and waifu2x")
	fs.StringVar(&v.Upscale.Model, "upscale-model", "", "realsr model: DF2K, DF2K_JPEG")
	fs.StringVar(&v.Upscale.Binary, "upscaler-binary", "", "Upscaler executable (default: the tool's ncnn-vulkan binary on PATH)")
	fs.BoolVar(&v.ShowStats, "stats", false, "Print the performance report")
	fs.StringVar(&v.Log.Level, "log-level", v.Log.Level, "Log level: debug, info, warn, error")
	fs.StringVar(&v.Log.Format, "log-format", v.Log.Format, "Log format: console, json")
}

// config loads the file (if any) and applies the flags that were set.
func (c *commandContext) config() (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		loaded, err := config.Load(c.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if c.flags != nil {
		// VisitAll with Changed: cobra records parsed persistent flags on the
		// subcommand's merged set, not on this one.
		c.flags.VisitAll(func(f *pflag.Flag) {
			if apply, ok := overrides[f.Name]; ok && f.Changed {
				apply(cfg, c.values)
			}
		})
	}
	cfg.BuildVersion = version
	return cfg, nil
}

// resolveInputs fills in the input, audio and output paths the way an
// interactive run expects: newest files from input/ and a timestamped output.
func resolveInputs(cfg *config.Config, out io.Writer) error {
	if cfg.InputPath == "" {
		latest, err := source.FindLatestImage(inputDir)
		if err != nil {
			return fmt.Errorf("%w. Put an image into %s/", err, inputDir)
		}
		cfg.InputPath = latest
		fmt.Fprintf(out, "[*] Selected input: %s\n", latest)
	}
	if cfg.ScenarioInput == "latest" {
		latest, err := director.FindLatestScenario(director.DefaultDir)
		if err != nil {
			return err
		}
		cfg.ScenarioInput = latest
		fmt.Fprintf(out, "[*] Selected scenario: %s\n", latest)
	}
	if cfg.AudioPath == "" {
		if latest, err := system.FindLatestAudio(audioDir); err == nil {
			cfg.AudioPath = latest
			fmt.Fprintf(out, "[*] Selected audio: %s\n", latest)
		}
	}
	if cfg.OutputVideo == "" && !cfg.TempOutput {
		cfg.OutputVideo = defaultOutput(cfg.InputPath, time.Now())
	}
	return nil
}

func defaultOutput(input string, now time.Time) string {
	base := filepath.Base(input)
	name := strings.ReplaceAll(strings.TrimSuffix(base, filepath.Ext(base)), " ", "_")
	return filepath.Join(outputDir, fmt.Sprintf("%s_%s.mp4", name, now.Format("2006-01-02_15-04-05")))
}

// session bundles what a project needs; close releases it.
type session struct {
	log     *slog.Logger
	cache   *depth.Cache
	device  gpu.Device
	closers []func() error
}

func (r *session) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.Warn("release failed", "error", err)
		}
	}
}

func openSession(ctx context.Context, cfg *config.Config) (*session, error) {
	logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}
	rt := &session{log: logger}

	var store depth.Store
	if cfg.Cache.Bucket != "" {
		store, err = depth.NewS3Store(ctx, depth.S3Options{
			Bucket:   cfg.Cache.Bucket,
			Prefix:   cfg.Cache.Prefix,
			Region:   cfg.Cache.Region,
			Endpoint: cfg.Cache.Endpoint,
		})
	} else {
		store, err = depth.NewDirStore(cfg.Cache.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("depth cache: %w", err)
	}

	est := depth.Luminance
	if cfg.Model.Path != "" {
		opts := onnx.DefaultOptions()
		opts.ModelPath = cfg.Model.Path
		opts.ORTSharedLibraryPath = cfg.Model.ORTLibrary
		opts.ModelID = cfg.ModelID()
		if cfg.Model.InputSize > 0 {
			opts.InputWidth, opts.InputHeight = cfg.Model.InputSize, cfg.Model.InputSize
		}
		model, err := onnx.New(opts)
		if err != nil {
			return nil, fmt.Errorf("depth model: %w", err)
		}
		est = model
		rt.closers = append(rt.closers, model.Close)
	}
	rt.cache = depth.NewCache(store, est, logger)

	dev, err := gpu.Open(cfg.Backend, gpu.SoftwareOptions{Workers: cfg.Workers})
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.device = dev
	rt.closers = append(rt.closers, func() error { dev.Release(); return nil })
	return rt, nil
}

func (r *session) project(cfg *config.Config, out io.Writer) *engine.Project {
	p := engine.NewProject(cfg, r.cache, r.device, r.log)
	p.Out = out
	return p
}

// ensureDirs creates the conventional working folders.
func ensureDirs() {
	for _, d := range []string{audioDir, outputDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "[!] Cannot create %s: %v\n", d, err)
		}
	}
}
