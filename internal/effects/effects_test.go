package effects

import (
	"math"
	"testing"

	"github.com/ivlev/depthflow/internal/timeline"
	"github.com/ivlev/depthflow/internal/uniform"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestOrbit(t *testing.T) {
	s := uniform.NewSnapshot()
	Orbit{Radius: 2}.Apply(s, 0, 0, math.Pi/2)
	x, y := s.Vec(uniform.CameraPosition)
	if !near(x, 0) || !near(y, 2) {
		t.Errorf("orbit at pi/2 = (%v, %v), want (0, 2)", x, y)
	}
}

func TestBreathe(t *testing.T) {
	s := uniform.NewSnapshot()
	Breathe{Intensity: 0.03}.Apply(s, 0, 0, 0)
	if got := s.Float(uniform.CameraZoom); !near(got, 0.97) {
		t.Errorf("zoom at tau=0 = %v, want 0.97", got)
	}
	Breathe{Intensity: 0.03}.Apply(s, 0, 0, math.Pi/2)
	if got := s.Float(uniform.CameraZoom); !near(got, 1) {
		t.Errorf("zoom at tau=pi/2 = %v, want 1", got)
	}
}

func TestCrossfade(t *testing.T) {
	s := uniform.NewSnapshot()
	tests := []struct {
		t    float64
		want float64
	}{
		{0, 0},
		{0.5, 0.5},
		{1, 1},
	}
	for _, tt := range tests {
		Crossfade{}.Apply(s, 0, tt.t, 0)
		if got := s.Float(uniform.Blend); math.Abs(got-tt.want) > 0.005 {
			t.Errorf("blend at t=%v = %v, want ~%v", tt.t, got, tt.want)
		}
	}
}

func TestShakeIsAdditiveAndDeterministic(t *testing.T) {
	a := NewShake(9, 0.3, 0.01, 0.02)
	b := NewShake(9, 0.3, 0.01, 0.02)

	s1 := uniform.Defaults()
	s1.SetVec2(uniform.CameraPosition, 1, 0)
	s2 := s1.Clone()
	a.Apply(s1, 1.7, 0, 0)
	b.Apply(s2, 1.7, 0, 0)
	if !s1.Equal(s2) {
		t.Error("same seed produced different shake")
	}
	x, _ := s1.Vec(uniform.CameraPosition)
	if math.Abs(x-1) > 0.3 {
		t.Errorf("shake moved x by more than its amplitude: %v", x)
	}
}

func TestShakeLiteral(t *testing.T) {
	tests := []struct {
		name  string
		shake *Shake
	}{
		{"literal", &Shake{Seed: 7, Position: 0.3, Rotation: 0.01, Zoom: 0.02}},
		{"zero value", &Shake{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := uniform.Defaults()
			tt.shake.Apply(s, 1, 0, 0)
			want := uniform.Defaults()
			NewShake(tt.shake.Seed, tt.shake.Position, tt.shake.Rotation, tt.shake.Zoom).Apply(want, 1, 0, 0)
			if !s.Equal(want) {
				t.Error("literal shake differs from NewShake with the same fields")
			}
		})
	}
}

func TestConstantOrder(t *testing.T) {
	c := NewConstant(map[uniform.Name]float64{
		uniform.ParallaxFactor: 0.1,
		uniform.CameraZoom:     1.2,
	})
	if len(c.Values) != 2 || c.Values[0].Name != uniform.CameraZoom {
		t.Errorf("constant values not in canonical order: %+v", c.Values)
	}
	s := uniform.NewSnapshot()
	c.Apply(s, 0, 0, 0)
	if s.Float(uniform.ParallaxFactor) != 0.1 {
		t.Errorf("parallax = %v", s.Float(uniform.ParallaxFactor))
	}
}

func TestPresets(t *testing.T) {
	p := DefaultParams()
	p.Crossfade = true
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			tl, err := Preset(name, p)
			if err != nil {
				t.Fatalf("Preset: %v", err)
			}
			snap := tl.At(1.3)
			if snap.Float(uniform.VignetteIntensity) != p.VignetteIntensity {
				t.Errorf("vignette intensity = %v", snap.Float(uniform.VignetteIntensity))
			}
			if snap.Float(uniform.ParallaxFactor) != p.Parallax {
				t.Errorf("parallax = %v", snap.Float(uniform.ParallaxFactor))
			}
			if !snap.Equal(tl.At(1.3)) {
				t.Error("preset timeline is not pure")
			}
		})
	}
	if _, err := Preset("nope", p); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestOrbitPresetLoops(t *testing.T) {
	p := DefaultParams()
	tl, _ := Preset("", p)
	start := tl.At(0)
	end := tl.At(p.Duration)
	sx, sy := start.Vec(uniform.CameraPosition)
	ex, ey := end.Vec(uniform.CameraPosition)
	if !near(sx, ex) || !near(sy, ey) {
		t.Errorf("orbit does not loop: (%v,%v) vs (%v,%v)", sx, sy, ex, ey)
	}
}

func TestFuncAdapter(t *testing.T) {
	tl := timeline.New(nil)
	tl.Add(Func(func(s *uniform.Snapshot, T, t, tau float64) {
		s.SetFloat(uniform.CameraFocus, T)
	}), timeline.Always)
	if got := tl.At(0.75).Float(uniform.CameraFocus); got != 0.75 {
		t.Errorf("focus = %v", got)
	}
}
