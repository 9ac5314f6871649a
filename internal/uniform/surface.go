package uniform

// Program is the part of a shader program the surface writes through.
type Program interface {
	Has(name string) bool
	Set(name string, v Value)
	Get(name string) (Value, bool)
}

// Surface bridges snapshots to a program. Names the program does not declare
// are dropped silently.
type Surface struct {
	prog Program
}

func NewSurface(prog Program) *Surface {
	return &Surface{prog: prog}
}

func (s *Surface) Program() Program {
	return s.prog
}

func (s *Surface) Set(name Name, v Value) {
	if s.prog == nil || !s.prog.Has(string(name)) {
		return
	}
	s.prog.Set(string(name), v)
}

func (s *Surface) Get(name Name) (Value, bool) {
	if s.prog == nil {
		return Value{}, false
	}
	return s.prog.Get(string(name))
}

// Apply writes every entry of snap in iteration order.
func (s *Surface) Apply(snap *Snapshot) {
	snap.Each(s.Set)
}

// ApplyEntries writes a raw entry list in order; with duplicate names the last one wins.
func (s *Surface) ApplyEntries(entries []Entry) {
	for _, e := range entries {
		s.Set(e.Name, e.Value)
	}
}

// Entry is a single name/value pair.
type Entry struct {
	Name  Name
	Value Value
}
