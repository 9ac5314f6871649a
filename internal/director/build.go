package director

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/depthflow/internal/effects"
	"github.com/ivlev/depthflow/internal/timeline"
	"github.com/ivlev/depthflow/internal/uniform"
)

// Keyframe types understood by Build.
const (
	TypeConstant  = "constant"
	TypeOrbit     = "orbit"
	TypeSway      = "sway"
	TypeBreathe   = "breathe"
	TypeVignette  = "vignette"
	TypeCrossfade = "crossfade"
	TypeDolly     = "dolly"
	TypePan       = "pan"
	TypeFocus     = "focus"
	TypeShake     = "shake"
)

type builder func(k Keyframe) (timeline.Keyframe, error)

var builders = map[string]builder{
	TypeConstant: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Constant{Values: append([]uniform.Entry(nil), k.Values...)}, nil
	},
	TypeOrbit: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Orbit{Radius: k.Param("radius", 1)}, nil
	},
	TypeSway: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Sway{Amplitude: k.Param("amplitude", 0.03)}, nil
	},
	TypeBreathe: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Breathe{Intensity: k.Param("intensity", 0.03)}, nil
	},
	TypeVignette: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Vignette{Radius: k.Param("radius", 0.3), Intensity: k.Param("intensity", 0.3)}, nil
	},
	TypeCrossfade: func(k Keyframe) (timeline.Keyframe, error) {
		if k.End == nil {
			return nil, fmt.Errorf("crossfade needs an end time")
		}
		return effects.Crossfade{Steepness: k.Param("steepness", 500)}, nil
	},
	TypeDolly: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Dolly{From: k.Param("from", 1), To: k.Param("to", 1)}, nil
	},
	TypePan: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.Pan{
			FromX: k.Param("from_x", 0), FromY: k.Param("from_y", 0),
			ToX: k.Param("to_x", 0), ToY: k.Param("to_y", 0),
		}, nil
	},
	TypeFocus: func(k Keyframe) (timeline.Keyframe, error) {
		return effects.FocusPull{From: k.Param("from", 0.5), To: k.Param("to", 0.5)}, nil
	},
	TypeShake: func(k Keyframe) (timeline.Keyframe, error) {
		seed := k.Param("seed", 0)
		if seed < 0 || seed != math.Trunc(seed) {
			return nil, fmt.Errorf("shake seed must be a non-negative integer, got %v", seed)
		}
		return effects.NewShake(uint64(seed), k.Param("position", 0), k.Param("rotation", 0), k.Param("zoom", 0)), nil
	},
}

// Types lists the keyframe types Build accepts.
func Types() []string {
	out := make([]string, 0, len(builders))
	for t := range builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build turns a scenario into a timeline, keyframes in file order.
func Build(sc *Scenario) (*timeline.Timeline, error) {
	if sc == nil {
		return nil, fmt.Errorf("nil scenario")
	}
	if sc.Duration < 0 {
		return nil, fmt.Errorf("negative duration %v", sc.Duration)
	}

	tl := timeline.New(sc.Base.Snapshot())
	for i, k := range sc.Keyframes {
		build, ok := builders[k.Type]
		if !ok {
			return nil, fmt.Errorf("keyframe %d: unknown type %q (available: %v)", i, k.Type, Types())
		}
		iv := timeline.From(k.Start)
		if k.End != nil {
			if *k.End < k.Start {
				return nil, fmt.Errorf("keyframe %d: end %v before start %v", i, *k.End, k.Start)
			}
			iv = timeline.Between(k.Start, *k.End)
		}
		kf, err := build(k)
		if err != nil {
			return nil, fmt.Errorf("keyframe %d (%s): %w", i, k.Type, err)
		}
		name := k.Name
		if name == "" {
			name = k.Type
		}
		tl.Add(kf, iv, timeline.WithPeriod(k.Period), timeline.WithName(name))
	}
	return tl, nil
}

// FromTimeline exports a timeline built from effects keyframes.
// Plain function keyframes cannot be described and are rejected.
func FromTimeline(tl *timeline.Timeline, duration float64) (*Scenario, error) {
	sc := &Scenario{
		Version:  Version,
		Duration: duration,
		Base:     ValuesOf(tl.Base()),
	}
	for i, tr := range tl.Tracks() {
		k, err := describe(tr.Keyframe)
		if err != nil {
			return nil, fmt.Errorf("track %d (%s): %w", i, tr.Name, err)
		}
		k.Name = tr.Name
		if k.Name == k.Type {
			k.Name = ""
		}
		k.Start = tr.Interval.Start
		if tr.Interval.Bounded() {
			end := tr.Interval.End
			k.End = &end
		}
		k.Period = tr.Period
		sc.Keyframes = append(sc.Keyframes, k)
	}
	return sc, nil
}

// FromPreset exports a named preset as a scenario.
func FromPreset(name string, p effects.Params) (*Scenario, error) {
	tl, err := effects.Preset(name, p)
	if err != nil {
		return nil, err
	}
	return FromTimeline(tl, p.Duration)
}

func describe(kf timeline.Keyframe) (Keyframe, error) {
	switch k := kf.(type) {
	case effects.Constant:
		return Keyframe{Type: TypeConstant, Values: append(Values(nil), k.Values...)}, nil
	case effects.Orbit:
		return Keyframe{Type: TypeOrbit, Params: map[string]float64{"radius": k.Radius}}, nil
	case effects.Sway:
		return Keyframe{Type: TypeSway, Params: map[string]float64{"amplitude": k.Amplitude}}, nil
	case effects.Breathe:
		return Keyframe{Type: TypeBreathe, Params: map[string]float64{"intensity": k.Intensity}}, nil
	case effects.Vignette:
		return Keyframe{Type: TypeVignette, Params: map[string]float64{"radius": k.Radius, "intensity": k.Intensity}}, nil
	case effects.Crossfade:
		return Keyframe{Type: TypeCrossfade, Params: map[string]float64{"steepness": k.Steepness}}, nil
	case effects.Dolly:
		return Keyframe{Type: TypeDolly, Params: map[string]float64{"from": k.From, "to": k.To}}, nil
	case effects.Pan:
		return Keyframe{Type: TypePan, Params: map[string]float64{
			"from_x": k.FromX, "from_y": k.FromY, "to_x": k.ToX, "to_y": k.ToY,
		}}, nil
	case effects.FocusPull:
		return Keyframe{Type: TypeFocus, Params: map[string]float64{"from": k.From, "to": k.To}}, nil
	case *effects.Shake:
		return Keyframe{Type: TypeShake, Params: map[string]float64{
			"seed": float64(k.Seed), "position": k.Position, "rotation": k.Rotation, "zoom": k.Zoom,
		}}, nil
	default:
		return Keyframe{}, fmt.Errorf("cannot describe keyframe of type %T", kf)
	}
}
