package effects

import (
	"math"
	"sync"

	"github.com/ivlev/depthflow/internal/timeline"
	"github.com/ivlev/depthflow/internal/uniform"
)

// Constant writes fixed values.
type Constant struct {
	Values []uniform.Entry
}

func NewConstant(values map[uniform.Name]float64) Constant {
	c := Constant{}
	for _, n := range uniform.Canonical {
		if v, ok := values[n]; ok {
			c.Values = append(c.Values, uniform.Entry{Name: n, Value: uniform.Scalar(v)})
		}
	}
	return c
}

func (c Constant) Apply(s *uniform.Snapshot, T, t, tau float64) {
	for _, e := range c.Values {
		s.Set(e.Name, e.Value)
	}
}

// Orbit moves the camera on a circle: camera_position = Radius * exp(i*tau).
type Orbit struct {
	Radius float64
}

func (o Orbit) Apply(s *uniform.Snapshot, T, t, tau float64) {
	r := o.Radius
	if r == 0 {
		r = 1
	}
	s.SetVec2(uniform.CameraPosition, r*math.Cos(tau), r*math.Sin(tau))
}

// Sway rolls the camera with a few superimposed sines.
type Sway struct {
	Amplitude float64
}

func (w Sway) Apply(s *uniform.Snapshot, T, t, tau float64) {
	a := w.Amplitude
	if a == 0 {
		a = 0.03
	}
	s.SetFloat(uniform.CameraRotation, a*(0.1*math.Sin(tau)+0.2*math.Sin(2*tau)+0.03*math.Sin(10*tau)))
}

// Breathe pulses the zoom: (1 - Intensity) + Intensity*sin(tau).
type Breathe struct {
	Intensity float64
}

func (b Breathe) Apply(s *uniform.Snapshot, T, t, tau float64) {
	s.SetFloat(uniform.CameraZoom, (1-b.Intensity)+b.Intensity*math.Sin(tau))
}

// Vignette sets the darkening ring.
type Vignette struct {
	Radius    float64
	Intensity float64
}

func (v Vignette) Apply(s *uniform.Snapshot, T, t, tau float64) {
	s.SetFloat(uniform.VignetteRadius, v.Radius)
	s.SetFloat(uniform.VignetteIntensity, v.Intensity)
}

// Crossfade switches from image A to image B around the middle of its
// interval with a steep arctangent curve.
type Crossfade struct {
	Steepness float64
}

func (c Crossfade) Apply(s *uniform.Snapshot, T, t, tau float64) {
	k := c.Steepness
	if k == 0 {
		k = 500
	}
	s.SetFloat(uniform.Blend, math.Atan(k*(t-0.5))/math.Pi+0.5)
}

// Dolly ramps the zoom from From to To over the keyframe's interval.
type Dolly struct {
	From, To float64
}

func (d Dolly) Apply(s *uniform.Snapshot, T, t, tau float64) {
	s.SetFloat(uniform.CameraZoom, timeline.Smoothstep(d.From, d.To, t))
}

// FocusPull racks camera_focus between two depths over the interval.
type FocusPull struct {
	From, To float64
}

func (f FocusPull) Apply(s *uniform.Snapshot, T, t, tau float64) {
	s.SetFloat(uniform.CameraFocus, timeline.Lerp(f.From, f.To, timeline.EaseInOutCubic(t)))
}

// Pan eases the camera between two positions over the interval.
type Pan struct {
	FromX, FromY float64
	ToX, ToY     float64
}

func (p Pan) Apply(s *uniform.Snapshot, T, t, tau float64) {
	e := timeline.EaseInOutCubic(t)
	s.SetVec2(uniform.CameraPosition, timeline.Lerp(p.FromX, p.ToX, e), timeline.Lerp(p.FromY, p.ToY, e))
}

// Shake adds deterministic noise on top of whatever earlier keyframes wrote.
// The noise fields are derived from Seed on first use, so a literal Shake is
// as valid as one from NewShake. Use it through a pointer.
type Shake struct {
	Seed     uint64
	Position float64
	Rotation float64
	Zoom     float64

	once     sync.Once
	position *timeline.Noise
	rotation *timeline.Noise
	zoom     *timeline.Noise
}

func NewShake(seed uint64, position, rotation, zoom float64) *Shake {
	return &Shake{Seed: seed, Position: position, Rotation: rotation, Zoom: zoom}
}

// seed builds the generators. Position uses a rougher, higher octave field
// than rotation and zoom.
func (k *Shake) seed() {
	k.once.Do(func() {
		k.position = timeline.NewNoise(k.Seed, 0.25, 0.3, 6, 2)
		k.rotation = timeline.NewNoise(k.Seed+1, 0.2, 0.5, 3, 1)
		k.zoom = timeline.NewNoise(k.Seed+2, 0.2, 0.5, 3, 1)
	})
}

func (k *Shake) Apply(s *uniform.Snapshot, T, t, tau float64) {
	k.seed()
	if k.Position != 0 {
		s.AddVec2(uniform.CameraPosition, k.Position*k.position.At(T, 0), k.Position*k.position.At(T, 1))
	}
	if k.Rotation != 0 {
		s.AddFloat(uniform.CameraRotation, k.Rotation*k.rotation.At(T, 0))
	}
	if k.Zoom != 0 {
		s.AddFloat(uniform.CameraZoom, k.Zoom*k.zoom.At(T, 0))
	}
}

// Func adapts a plain function to a keyframe.
func Func(fn func(s *uniform.Snapshot, T, t, tau float64)) timeline.Keyframe {
	return timeline.KeyframeFunc(fn)
}
