package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/depthflow/internal/effects"
	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/source"
	"github.com/ivlev/depthflow/internal/texture"
)

// Config is the complete set of knobs for one render. Files use the yaml
// tags; CLI flags override whatever a file sets.
type Config struct {
	InputPath   string `yaml:"input"`
	InputB      string `yaml:"input_b,omitempty"` // second image, crossfaded in over the duration
	OutputVideo string `yaml:"output"`
	// TempOutput writes to a random name in the temp dir and deletes it later.
	TempOutput bool `yaml:"temp_output,omitempty"`

	Duration float64 `yaml:"duration"` // seconds; 0 takes the audio length
	FPS      int     `yaml:"fps"`
	SSAA     float64 `yaml:"ssaa"`
	Backend  string  `yaml:"backend"`
	Workers  int     `yaml:"workers"`
	DPI      int     `yaml:"dpi"`

	Preset        string       `yaml:"preset"`
	ScenarioInput string       `yaml:"scenario,omitempty"`
	Effect        EffectConfig `yaml:"effect"`

	AutoFocus bool   `yaml:"auto_focus,omitempty"`
	Detector  string `yaml:"detector,omitempty"`
	// Director replaces the preset with a rack-focus tour of detected regions.
	Director bool `yaml:"director,omitempty"`

	// AllPages renders every page of a multi-page input and joins the clips.
	AllPages       bool    `yaml:"all_pages,omitempty"`
	TransitionType string  `yaml:"transition,omitempty"`
	FadeDuration   float64 `yaml:"fade_duration,omitempty"`

	VideoEncoder string `yaml:"encoder,omitempty"` // empty probes for the best one
	Quality      int    `yaml:"quality,omitempty"` // 0 uses the encoder default
	AudioPath    string `yaml:"audio,omitempty"`

	Cache   CacheConfig   `yaml:"cache"`
	Model   ModelConfig   `yaml:"model"`
	Upscale UpscaleConfig `yaml:"upscale,omitempty"`

	ShowStats bool      `yaml:"show_stats,omitempty"`
	Log       LogConfig `yaml:"log"`

	BuildVersion string `yaml:"-"`
}

// EffectConfig holds the numeric constants of the camera presets.
type EffectConfig struct {
	Parallax          float64 `yaml:"parallax"`
	Focus             float64 `yaml:"focus"`
	ZoomIntensity     float64 `yaml:"zoom_intensity"`
	VignetteRadius    float64 `yaml:"vignette_radius"`
	VignetteIntensity float64 `yaml:"vignette_intensity"`
	OrbitPeriod       float64 `yaml:"orbit_period,omitempty"`
	Seed              uint64  `yaml:"seed,omitempty"`
}

// CacheConfig selects the depth cache store: S3 when Bucket is set, else Dir.
type CacheConfig struct {
	Dir      string `yaml:"dir"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

// ModelConfig picks the depth estimator. Without a Path the luminance
// estimator is used.
type ModelConfig struct {
	ID         string `yaml:"id,omitempty"`
	Path       string `yaml:"path,omitempty"`
	ORTLibrary string `yaml:"ort_library,omitempty"`
	InputSize  int    `yaml:"input_size,omitempty"`
}

// UpscaleConfig enlarges inputs with an external tool before depth
// estimation. An empty Tool disables the stage.
type UpscaleConfig struct {
	Tool   string `yaml:"tool,omitempty"` // realsr, srmd or waifu2x
	Binary string `yaml:"binary,omitempty"`
	Scale  int    `yaml:"scale,omitempty"` // 0 means 4
	Noise  int    `yaml:"noise,omitempty"`
	Model  string `yaml:"model,omitempty"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the stock configuration.
func Default() *Config {
	p := effects.DefaultParams()
	return &Config{
		OutputVideo:    "output.mp4",
		Duration:       p.Duration,
		FPS:            60,
		SSAA:           texture.DefaultSSAA,
		Backend:        gpu.BackendSoftware,
		Workers:        runtime.NumCPU(),
		DPI:            150,
		Preset:         "orbit",
		Detector:       "contrast",
		TransitionType: "fade",
		FadeDuration:   0.5,
		Effect: EffectConfig{
			Parallax:          p.Parallax,
			Focus:             p.Focus,
			ZoomIntensity:     p.ZoomIntensity,
			VignetteRadius:    p.VignetteRadius,
			VignetteIntensity: p.VignetteIntensity,
		},
		Cache: CacheConfig{Dir: defaultCacheDir()},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "depthflow", "depth")
	}
	return filepath.Join(os.TempDir(), "depthflow", "depth")
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.InputPath) == "" {
		errs = append(errs, errors.New("input is required"))
	}
	if !c.TempOutput && strings.TrimSpace(c.OutputVideo) == "" {
		errs = append(errs, errors.New("output is required"))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %v", c.Duration))
	}
	if c.Duration == 0 && c.AudioPath == "" {
		errs = append(errs, errors.New("duration is required when no audio is given"))
	}
	if c.FPS <= 0 {
		errs = append(errs, fmt.Errorf("fps must be positive, got %d", c.FPS))
	}
	if c.SSAA <= 0 {
		errs = append(errs, fmt.Errorf("ssaa must be positive, got %v", c.SSAA))
	}
	if c.Quality < 0 {
		errs = append(errs, fmt.Errorf("quality must not be negative, got %d", c.Quality))
	}
	if c.FadeDuration < 0 {
		errs = append(errs, fmt.Errorf("fade duration must not be negative, got %v", c.FadeDuration))
	}
	if c.Effect.VignetteIntensity < 0 || c.Effect.VignetteRadius < 0 {
		errs = append(errs, errors.New("vignette radius and intensity must not be negative"))
	}
	if c.Effect.ZoomIntensity < 0 || c.Effect.ZoomIntensity >= 1 {
		errs = append(errs, fmt.Errorf("zoom intensity must be in [0, 1), got %v", c.Effect.ZoomIntensity))
	}
	if c.Preset != "" && !validPreset(c.Preset) {
		errs = append(errs, fmt.Errorf("unknown preset %q (available: %v)", c.Preset, effects.Names()))
	}
	if u := c.Upscaler(); u != nil {
		if err := u.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("upscale: %w", err))
		}
	}
	if c.Cache.Bucket == "" && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache needs a directory or a bucket"))
	}
	return errors.Join(errs...)
}

func validPreset(name string) bool {
	for _, n := range effects.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Upscaler returns the configured pre-render upscaler, or nil when disabled.
func (c *Config) Upscaler() *source.Upscaler {
	if c.Upscale.Tool == "" {
		return nil
	}
	scale := c.Upscale.Scale
	if scale == 0 {
		scale = 4
	}
	return &source.Upscaler{
		Tool:   c.Upscale.Tool,
		Binary: c.Upscale.Binary,
		Scale:  scale,
		Noise:  c.Upscale.Noise,
		Model:  c.Upscale.Model,
	}
}

// EffectParams converts the effect section for effects.Preset.
func (c *Config) EffectParams() effects.Params {
	return effects.Params{
		Duration:          c.Duration,
		Parallax:          c.Effect.Parallax,
		Focus:             c.Effect.Focus,
		ZoomIntensity:     c.Effect.ZoomIntensity,
		VignetteRadius:    c.Effect.VignetteRadius,
		VignetteIntensity: c.Effect.VignetteIntensity,
		OrbitPeriod:       c.Effect.OrbitPeriod,
		Crossfade:         c.InputB != "",
		Seed:              c.Effect.Seed,
	}
}

// ModelID names the depth model for cache keys.
func (c *Config) ModelID() string {
	if c.Model.ID != "" {
		return c.Model.ID
	}
	if c.Model.Path != "" {
		return strings.TrimSuffix(filepath.Base(c.Model.Path), filepath.Ext(c.Model.Path))
	}
	return "luminance"
}

// Write saves the config as YAML.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
