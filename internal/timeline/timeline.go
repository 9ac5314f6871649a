package timeline

import (
	"math"

	"github.com/ivlev/depthflow/internal/uniform"
)

// Keyframe mutates the running snapshot at absolute time T, with local
// progress t in [0,1] and cyclic phase tau.
type Keyframe interface {
	Apply(s *uniform.Snapshot, T, t, tau float64)
}

// KeyframeFunc adapts a plain function to Keyframe.
type KeyframeFunc func(s *uniform.Snapshot, T, t, tau float64)

func (f KeyframeFunc) Apply(s *uniform.Snapshot, T, t, tau float64) {
	f(s, T, t, tau)
}

// Interval is the activation window [Start, End). End may be +Inf.
type Interval struct {
	Start float64
	End   float64
}

// From returns an interval open towards +Inf.
func From(start float64) Interval {
	return Interval{Start: start, End: math.Inf(1)}
}

// Between returns the bounded interval [start, end).
func Between(start, end float64) Interval {
	return Interval{Start: start, End: end}
}

// Always is active from T=0 onwards.
var Always = From(0)

func (iv Interval) Bounded() bool {
	return !math.IsInf(iv.End, 1)
}

// Contains reports whether T is inside the interval. A zero-length interval
// contains exactly its start.
func (iv Interval) Contains(T float64) bool {
	if iv.Start == iv.End {
		return T == iv.Start
	}
	return T >= iv.Start && T < iv.End
}

// Progress is the local position of T, 0 for open or zero-length intervals.
func (iv Interval) Progress(T float64) float64 {
	if !iv.Bounded() || iv.End <= iv.Start {
		return 0
	}
	return Clamp((T-iv.Start)/(iv.End-iv.Start), 0, 1)
}

// Track is a registered keyframe.
type Track struct {
	Name     string
	Interval Interval
	// Period in seconds; zero means tau = 2*pi*T.
	Period   float64
	Keyframe Keyframe
}

func (tr Track) phase(T float64) float64 {
	if tr.Period > 0 {
		return 2 * math.Pi * T / tr.Period
	}
	return 2 * math.Pi * T
}

// Option configures a track on registration.
type Option func(*Track)

func WithPeriod(period float64) Option {
	return func(tr *Track) { tr.Period = period }
}

func WithName(name string) Option {
	return func(tr *Track) { tr.Name = name }
}

// Timeline composes keyframes over a base snapshot. Built once, then queried;
// At is a pure function of its argument.
type Timeline struct {
	base   *uniform.Snapshot
	tracks []Track
}

// New creates a timeline over a copy of base (uniform.Defaults when nil).
func New(base *uniform.Snapshot) *Timeline {
	if base == nil {
		base = uniform.Defaults()
	}
	return &Timeline{base: base.Clone()}
}

// Add registers k after every existing keyframe.
func (tl *Timeline) Add(k Keyframe, iv Interval, opts ...Option) *Timeline {
	tr := Track{Interval: iv, Keyframe: k}
	for _, opt := range opts {
		opt(&tr)
	}
	tl.tracks = append(tl.tracks, tr)
	return tl
}

// AddFunc is Add for a plain function.
func (tl *Timeline) AddFunc(fn func(s *uniform.Snapshot, T, t, tau float64), iv Interval, opts ...Option) *Timeline {
	return tl.Add(KeyframeFunc(fn), iv, opts...)
}

func (tl *Timeline) Tracks() []Track {
	out := make([]Track, len(tl.tracks))
	copy(out, tl.tracks)
	return out
}

// Base returns a copy of the base snapshot.
func (tl *Timeline) Base() *uniform.Snapshot {
	return tl.base.Clone()
}

// At resolves the snapshot at time T. Later keyframes override earlier ones.
func (tl *Timeline) At(T float64) *uniform.Snapshot {
	snap := tl.base.Clone()
	for _, tr := range tl.tracks {
		if !tr.Interval.Contains(T) {
			continue
		}
		tr.Keyframe.Apply(snap, T, tr.Interval.Progress(T), tr.phase(T))
	}
	return snap
}

// End returns the latest bounded end among tracks, or 0 when all are open.
func (tl *Timeline) End() float64 {
	end := 0.0
	for _, tr := range tl.tracks {
		if tr.Interval.Bounded() && tr.Interval.End > end {
			end = tr.Interval.End
		}
	}
	return end
}
