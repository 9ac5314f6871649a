package uniform

import "testing"

type fakeProgram struct {
	declared map[string]bool
	values   map[string]Value
	writes   []string
}

func newFakeProgram(names ...Name) *fakeProgram {
	p := &fakeProgram{declared: map[string]bool{}, values: map[string]Value{}}
	for _, n := range names {
		p.declared[string(n)] = true
	}
	return p
}

func (p *fakeProgram) Has(name string) bool { return p.declared[name] }

func (p *fakeProgram) Set(name string, v Value) {
	p.values[name] = v
	p.writes = append(p.writes, name)
}

func (p *fakeProgram) Get(name string) (Value, bool) {
	v, ok := p.values[name]
	return v, ok
}

func TestSurfaceIgnoresUndeclared(t *testing.T) {
	prog := newFakeProgram(CameraZoom)
	s := NewSurface(prog)

	s.Set(CameraZoom, Scalar(1.5))
	s.Set(VignetteRadius, Scalar(0.3))
	s.Set(Name("custom_glow"), Scalar(2))

	if got, ok := s.Get(CameraZoom); !ok || got.Float() != 1.5 {
		t.Errorf("camera_zoom = %v (%v), want 1.5", got, ok)
	}
	if _, ok := s.Get(VignetteRadius); ok {
		t.Error("undeclared uniform should stay absent")
	}
	if len(prog.writes) != 1 {
		t.Errorf("writes = %v, want only camera_zoom", prog.writes)
	}
}

func TestSurfaceCustomName(t *testing.T) {
	prog := newFakeProgram(Name("custom_glow"))
	s := NewSurface(prog)
	s.Set(Name("custom_glow"), Scalar(2))
	if got, _ := s.Get(Name("custom_glow")); got.Float() != 2 {
		t.Errorf("custom_glow = %v, want 2", got)
	}
}

func TestApplyOrder(t *testing.T) {
	prog := newFakeProgram(Canonical...)
	s := NewSurface(prog)

	snap := NewSnapshot()
	snap.SetFloat(CameraZoom, 1)
	snap.SetVec2(CameraPosition, 0.1, 0.2)
	snap.SetFloat(CameraZoom, 0.5)
	s.Apply(snap)

	want := []string{"camera_zoom", "camera_position"}
	if len(prog.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", prog.writes, want)
	}
	for i := range want {
		if prog.writes[i] != want[i] {
			t.Errorf("write %d = %s, want %s", i, prog.writes[i], want[i])
		}
	}
	if got, _ := s.Get(CameraZoom); got.Float() != 0.5 {
		t.Errorf("camera_zoom = %v, want 0.5", got)
	}
}

func TestApplyEntriesLastWins(t *testing.T) {
	prog := newFakeProgram(Blend)
	s := NewSurface(prog)
	s.ApplyEntries([]Entry{
		{Name: Blend, Value: Scalar(0.2)},
		{Name: Blend, Value: Scalar(0.8)},
	})
	if got, _ := s.Get(Blend); got.Float() != 0.8 {
		t.Errorf("blend = %v, want 0.8", got)
	}
}

func TestSnapshotCloneIsIndependent(t *testing.T) {
	base := Defaults()
	c := base.Clone()
	c.SetFloat(CameraZoom, 3)
	c.AddVec2(CameraPosition, 1, 1)

	if base.Float(CameraZoom) != 1 {
		t.Errorf("base zoom mutated: %v", base.Float(CameraZoom))
	}
	if x, y := base.Vec(CameraPosition); x != 0 || y != 0 {
		t.Errorf("base position mutated: %v,%v", x, y)
	}
	if base.Equal(c) {
		t.Error("clone should differ after mutation")
	}
}

func TestCanonicalNames(t *testing.T) {
	if !CameraFocus.IsCanonical() {
		t.Error("camera_focus should be canonical")
	}
	if Name("custom").IsCanonical() {
		t.Error("custom should not be canonical")
	}
}
