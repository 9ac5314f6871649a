package effects

import (
	"fmt"
	"sort"

	"github.com/ivlev/depthflow/internal/timeline"
	"github.com/ivlev/depthflow/internal/uniform"
)

// Params are the tunable numbers shared by every preset.
type Params struct {
	Duration          float64
	Parallax          float64
	Focus             float64
	ZoomIntensity     float64
	VignetteRadius    float64
	VignetteIntensity float64
	// OrbitPeriod in seconds; zero uses the full duration.
	OrbitPeriod float64
	// Crossfade blends pair A into pair B over the duration.
	Crossfade bool
	Seed      uint64
}

// DefaultParams are the stock orbit settings.
func DefaultParams() Params {
	return Params{
		Duration:          5,
		Parallax:          0.05,
		Focus:             0.5,
		ZoomIntensity:     0.03,
		VignetteRadius:    0.3,
		VignetteIntensity: 0.3,
	}
}

// Base returns the base snapshot every preset starts from.
func (p Params) Base() *uniform.Snapshot {
	s := uniform.Defaults()
	s.SetFloat(uniform.ParallaxFactor, p.Parallax)
	s.SetFloat(uniform.CameraFocus, p.Focus)
	return s
}

func (p Params) period() float64 {
	if p.OrbitPeriod > 0 {
		return p.OrbitPeriod
	}
	if p.Duration > 0 {
		return p.Duration
	}
	return 1
}

type presetFunc func(p Params) *timeline.Timeline

var presets = map[string]presetFunc{
	"orbit":  orbitPreset,
	"dolly":  dollyPreset,
	"shake":  shakePreset,
	"static": staticPreset,
}

// Names lists the available presets.
func Names() []string {
	out := make([]string, 0, len(presets))
	for n := range presets {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Preset builds a ready timeline by name; the empty name means orbit.
func Preset(name string, p Params) (*timeline.Timeline, error) {
	if name == "" {
		name = "orbit"
	}
	fn, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q (available: %v)", name, Names())
	}
	tl := fn(p)
	tl.Add(Vignette{Radius: p.VignetteRadius, Intensity: p.VignetteIntensity}, timeline.Always, timeline.WithName("vignette"))
	if p.Crossfade {
		tl.Add(Crossfade{}, timeline.Between(0, p.Duration), timeline.WithName("crossfade"))
	}
	return tl, nil
}

func orbitPreset(p Params) *timeline.Timeline {
	tl := timeline.New(p.Base())
	period := timeline.WithPeriod(p.period())
	tl.Add(Orbit{Radius: 1}, timeline.Always, period, timeline.WithName("orbit"))
	tl.Add(Sway{}, timeline.Always, period, timeline.WithName("sway"))
	tl.Add(Breathe{Intensity: p.ZoomIntensity}, timeline.Always, period, timeline.WithName("breathe"))
	return tl
}

func dollyPreset(p Params) *timeline.Timeline {
	tl := timeline.New(p.Base())
	tl.Add(Pan{FromX: -1, ToX: 1}, timeline.Between(0, p.Duration), timeline.WithName("pan"))
	tl.Add(Dolly{From: 1, To: 1 + 4*p.ZoomIntensity}, timeline.Between(0, p.Duration), timeline.WithName("dolly"))
	return tl
}

func shakePreset(p Params) *timeline.Timeline {
	tl := orbitPreset(p)
	tl.Add(NewShake(p.Seed, 0.3, 0.01, p.ZoomIntensity/2), timeline.Always, timeline.WithName("shake"))
	return tl
}

func staticPreset(p Params) *timeline.Timeline {
	return timeline.New(p.Base())
}
