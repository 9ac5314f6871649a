package engine

import (
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/ivlev/depthflow/internal/analyzer"
	"github.com/ivlev/depthflow/internal/depth"
	"github.com/ivlev/depthflow/internal/director"
	"github.com/ivlev/depthflow/internal/gpu"
	"github.com/ivlev/depthflow/internal/renderer"
	"github.com/ivlev/depthflow/internal/source"
	"github.com/ivlev/depthflow/internal/texture"
)

// Depth estimates (or fetches) the depth map of the input's page index and
// writes it as a grayscale PNG to out.
func (p *Project) Depth(ctx context.Context, index int, out string) (depth.Result, error) {
	img, err := p.loadInput(index)
	if err != nil {
		return depth.Result{}, err
	}
	res, err := p.Cache.GetDepth(ctx, img, p.Config.ModelID())
	if err != nil {
		return depth.Result{}, &StageError{Stage: StageCache, Err: err}
	}
	for _, w := range res.Warnings {
		p.printf("[!] Depth: %v\n", w)
	}
	if err := writeFile(out, func(f *os.File) error { return source.EncodePNG(f, res.Depth) }); err != nil {
		return res, err
	}
	p.printf("[+++] Depth map saved: %s (key %s, hit %v)\n", out, res.Key, res.Hit)
	return res, nil
}

// Still renders the single frame at time T to a PNG file.
func (p *Project) Still(ctx context.Context, T float64, out string) error {
	cfg := p.Config
	colorA, err := p.loadInput(0)
	if err != nil {
		return err
	}
	c := clip{colorA: colorA}
	if cfg.InputB != "" {
		if c.colorB, err = source.LoadFile(cfg.InputB, source.RGB8); err != nil {
			return &StageError{Stage: StageCache, Err: err}
		}
		c.hasB = true
	}
	if err := p.estimate(ctx, &c); err != nil {
		return err
	}

	set := texture.NewSet(p.Device, cfg.SSAA)
	set.SetLogger(p.log)
	defer set.Release()
	if err := set.Upload(texture.PairA, c.colorA, c.depthA); err != nil {
		return &StageError{Stage: StageTexture, Err: err}
	}
	if c.hasB {
		if err := set.Upload(texture.PairB, c.colorB, c.depthB); err != nil {
			return &StageError{Stage: StageTexture, Err: err}
		}
	}

	tl, err := p.buildTimeline(c, cfg.Duration)
	if err != nil {
		return &StageError{Stage: StageRender, Err: err}
	}
	r, err := renderer.New(p.Device, gpu.DefaultProgram(), renderer.Options{Logger: p.log})
	if err != nil {
		return &StageError{Stage: StageRender, Err: err}
	}
	defer r.Release()

	frame, err := r.RenderImage(ctx, tl, set, T)
	if err != nil {
		return err
	}
	if err := writeFile(out, func(f *os.File) error { return png.Encode(f, frame) }); err != nil {
		return err
	}
	p.printf("[+++] Frame at %.2fs saved: %s\n", T, out)
	return nil
}

// DirectorScenario detects the regions of the first input image and returns
// the rack-focus tour as an editable scenario.
func (p *Project) DirectorScenario(ctx context.Context) (*director.Scenario, error) {
	cfg := p.Config
	img, err := p.loadInput(0)
	if err != nil {
		return nil, err
	}
	c := clip{colorA: img}
	if err := p.estimate(ctx, &c); err != nil {
		return nil, err
	}
	det, err := analyzer.NewDetector(cfg.Detector)
	if err != nil {
		return nil, err
	}
	target := c.colorA
	if _, ok := det.(*analyzer.DepthDetector); ok {
		target = c.depthA
	}
	blocks, err := det.Detect(target.ToImage())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	p.printf("[*] Director: %d regions\n", len(blocks))
	params := cfg.EffectParams()
	params.Crossfade = false
	return director.NewDirector().GenerateScenario(blocks, c.depthA, params)
}

func (p *Project) loadInput(index int) (source.Image, error) {
	src, err := source.Open(p.Config.InputPath, p.Config.DPI)
	if err != nil {
		return source.Image{}, &StageError{Stage: StageCache, Err: err}
	}
	defer src.Close()
	if index < 0 || index >= src.Count() {
		return source.Image{}, fmt.Errorf("page %d out of range (1..%d)", index+1, src.Count())
	}
	img, err := src.Load(index)
	if err != nil {
		return source.Image{}, &StageError{Stage: StageCache, Err: err}
	}
	return img, nil
}

func writeFile(path string, fn func(*os.File) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
