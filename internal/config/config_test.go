package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultIsValidWithInput(t *testing.T) {
	cfg := Default()
	cfg.InputPath = "image.png"
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.SSAA != 1440.0/1080.0 {
		t.Errorf("ssaa = %v", cfg.SSAA)
	}
	if cfg.ModelID() != "luminance" {
		t.Errorf("model id = %q", cfg.ModelID())
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "depthflow.yaml")
	data := `
input: photo.jpg
input_b: other.jpg
duration: 3
fps: 30
effect:
  parallax: 0.1
  focus: 0.4
cache:
  bucket: depth-maps
  prefix: v1/
model:
  path: /models/depth_anything_v2_small.onnx
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InputPath != "photo.jpg" || cfg.FPS != 30 || cfg.Duration != 3 {
		t.Errorf("unexpected values: %+v", cfg)
	}
	// Untouched keys keep their defaults.
	if cfg.Effect.VignetteRadius != 0.3 || cfg.OutputVideo != "output.mp4" {
		t.Errorf("defaults lost: vignette %v output %q", cfg.Effect.VignetteRadius, cfg.OutputVideo)
	}
	if cfg.ModelID() != "depth_anything_v2_small" {
		t.Errorf("model id = %q", cfg.ModelID())
	}

	p := cfg.EffectParams()
	if !p.Crossfade || p.Parallax != 0.1 || p.Focus != 0.4 || p.Duration != 3 {
		t.Errorf("effect params = %+v", p)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("fsp: 30\n"), 0644)
	if _, err := Load(bad); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	empty := filepath.Join(dir, "empty.yaml")
	os.WriteFile(empty, nil, 0644)
	if cfg, err := Load(empty); err != nil || cfg.FPS != 60 {
		t.Errorf("empty file: %v, %+v", err, cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"no input", func(c *Config) { c.InputPath = "" }, "input is required"},
		{"zero fps", func(c *Config) { c.FPS = 0 }, "fps"},
		{"negative duration", func(c *Config) { c.Duration = -1 }, "duration"},
		{"no duration no audio", func(c *Config) { c.Duration = 0 }, "audio"},
		{"duration from audio", func(c *Config) { c.Duration = 0; c.AudioPath = "a.mp3" }, ""},
		{"bad ssaa", func(c *Config) { c.SSAA = 0 }, "ssaa"},
		{"bad preset", func(c *Config) { c.Preset = "spin" }, "unknown preset"},
		{"zoom too big", func(c *Config) { c.Effect.ZoomIntensity = 1 }, "zoom"},
		{"no cache", func(c *Config) { c.Cache.Dir = "" }, "cache"},
		{"bucket only", func(c *Config) { c.Cache.Dir = ""; c.Cache.Bucket = "b" }, ""},
		{"temp output", func(c *Config) { c.OutputVideo = ""; c.TempOutput = true }, ""},
		{"upscale", func(c *Config) { c.Upscale = UpscaleConfig{Tool: "realsr"} }, ""},
		{"upscale bad scale", func(c *Config) { c.Upscale = UpscaleConfig{Tool: "realsr", Scale: 2} }, "upscale"},
		{"upscale unknown tool", func(c *Config) { c.Upscale = UpscaleConfig{Tool: "esrgan", Scale: 4} }, "unknown upscaler"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.InputPath = "in.png"
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.want == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.InputPath = "a.png"
	cfg.Effect.Seed = 42
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Effect != cfg.Effect || got.InputPath != cfg.InputPath {
		t.Errorf("round trip changed values: %+v", got)
	}
}
