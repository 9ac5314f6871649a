package uniform

// Snapshot is the resolved set of uniform values for one instant. Iteration
// follows first-insertion order; setting an existing name keeps its position.
type Snapshot struct {
	order  []Name
	values map[Name]Value
}

func NewSnapshot() *Snapshot {
	return &Snapshot{values: make(map[Name]Value)}
}

// Defaults returns the resting state of the canonical parameters.
func Defaults() *Snapshot {
	s := NewSnapshot()
	s.Set(CameraPosition, Vec2(0, 0))
	s.Set(CameraRotation, Scalar(0))
	s.Set(CameraFocus, Scalar(0))
	s.Set(CameraZoom, Scalar(1))
	s.Set(ParallaxFactor, Scalar(0))
	s.Set(VignetteRadius, Scalar(0))
	s.Set(VignetteIntensity, Scalar(0))
	s.Set(Blend, Scalar(0))
	s.Set(Time, Scalar(0))
	return s
}

func (s *Snapshot) Set(name Name, v Value) {
	if s.values == nil {
		s.values = make(map[Name]Value)
	}
	if _, ok := s.values[name]; !ok {
		s.order = append(s.order, name)
	}
	s.values[name] = v
}

func (s *Snapshot) SetFloat(name Name, v float64) {
	s.Set(name, Scalar(v))
}

func (s *Snapshot) SetVec2(name Name, x, y float64) {
	s.Set(name, Vec2(x, y))
}

func (s *Snapshot) Get(name Name) (Value, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Float returns the scalar value of name, or 0 when absent.
func (s *Snapshot) Float(name Name) float64 {
	return s.values[name].X
}

// Vec returns both components of name, or zeros when absent.
func (s *Snapshot) Vec(name Name) (float64, float64) {
	v := s.values[name]
	return v.X, v.Y
}

// AddFloat adds d to the current scalar value of name.
func (s *Snapshot) AddFloat(name Name, d float64) {
	v := s.values[name]
	v.X += d
	s.Set(name, v)
}

// AddVec2 adds (dx, dy) to the current value of name, promoting it to a vector.
func (s *Snapshot) AddVec2(name Name, dx, dy float64) {
	v := s.values[name]
	s.Set(name, Vec2(v.X+dx, v.Y+dy))
}

// MulFloat scales the current scalar value of name.
func (s *Snapshot) MulFloat(name Name, f float64) {
	v := s.values[name]
	v.X *= f
	v.Y *= f
	s.Set(name, v)
}

func (s *Snapshot) Len() int {
	return len(s.order)
}

func (s *Snapshot) Names() []Name {
	out := make([]Name, len(s.order))
	copy(out, s.order)
	return out
}

// Each calls fn for every entry in order.
func (s *Snapshot) Each(fn func(Name, Value)) {
	for _, n := range s.order {
		fn(n, s.values[n])
	}
}

// Clone returns an independent copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		order:  make([]Name, len(s.order)),
		values: make(map[Name]Value, len(s.values)),
	}
	copy(c.order, s.order)
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

// Equal reports whether both snapshots hold the same entries in the same order.
func (s *Snapshot) Equal(o *Snapshot) bool {
	if s.Len() != o.Len() {
		return false
	}
	for i, n := range s.order {
		if o.order[i] != n || s.values[n] != o.values[n] {
			return false
		}
	}
	return true
}
