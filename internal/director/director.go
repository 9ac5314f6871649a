package director

import (
	"fmt"
	"math"
	"sort"

	"github.com/ivlev/depthflow/internal/analyzer"
	"github.com/ivlev/depthflow/internal/effects"
	"github.com/ivlev/depthflow/internal/source"
	"github.com/ivlev/depthflow/internal/timeline"
)

// Director turns detected regions into a rack-focus scenario: the focal plane
// visits each region in reading order while the camera keeps orbiting.
type Director struct {
	MinDwell float64 // Minimum time per block (seconds)
	MaxDwell float64 // Maximum time per block (seconds)
	MaxZoom  float64
	// Transition is the share of each dwell spent pulling focus.
	Transition float64
}

// NewDirector creates a new Director with default settings
func NewDirector() *Director {
	return &Director{
		MinDwell:   1.0,
		MaxDwell:   3.0,
		MaxZoom:    1.15,
		Transition: 0.4,
	}
}

// GenerateScenario builds a scenario visiting blocks over depth for the given duration.
func (d *Director) GenerateScenario(blocks []analyzer.Block, depth source.Image, p effects.Params) (*Scenario, error) {
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no blocks detected")
	}
	if p.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %v", p.Duration)
	}

	sorted := d.sortBlocks(blocks)
	dwell := d.calculateDwellTime(p.Duration, len(sorted))

	// Base scenario is the orbit preset without its own zoom.
	base := p
	base.ZoomIntensity = 0
	base.Crossfade = false
	tl, err := effects.Preset("orbit", base)
	if err != nil {
		return nil, err
	}
	sc, err := FromTimeline(tl, p.Duration)
	if err != nil {
		return nil, err
	}

	focus := p.Focus
	zoom := 1.0
	current := 0.0
	for i, block := range sorted {
		if current >= p.Duration {
			break
		}
		target, err := analyzer.FocusDepth(depth, block.Rect)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i+1, err)
		}
		targetZoom := d.calculateZoom(block, depth.Width, depth.Height)

		mid := math.Min(current+dwell*d.Transition, p.Duration)
		next := math.Min(current+dwell, p.Duration)
		name := fmt.Sprintf("region_%d", i+1)
		sc.Keyframes = append(sc.Keyframes,
			focusKeyframe(name, focus, target, current, mid),
			zoomKeyframe(name+"_zoom", zoom, targetZoom, current, mid),
			focusKeyframe(name+"_hold", target, target, mid, next),
			zoomKeyframe(name+"_zoom_hold", targetZoom, targetZoom, mid, next),
		)
		focus, zoom = target, targetZoom
		current = next
	}

	// Settle back to the full view for whatever time is left.
	if current < p.Duration {
		sc.Keyframes = append(sc.Keyframes,
			focusKeyframe("outro", focus, focus, current, p.Duration),
			zoomKeyframe("outro_zoom", zoom, 1, current, p.Duration),
		)
	}
	return sc, nil
}

// Timeline is GenerateScenario followed by Build.
func (d *Director) Timeline(blocks []analyzer.Block, depth source.Image, p effects.Params) (*timeline.Timeline, error) {
	sc, err := d.GenerateScenario(blocks, depth, p)
	if err != nil {
		return nil, err
	}
	return Build(sc)
}

func focusKeyframe(name string, from, to, start, end float64) Keyframe {
	return Keyframe{
		Type:   TypeFocus,
		Name:   name,
		Start:  start,
		End:    &end,
		Params: map[string]float64{"from": from, "to": to},
	}
}

func zoomKeyframe(name string, from, to, start, end float64) Keyframe {
	return Keyframe{
		Type:   TypeDolly,
		Name:   name,
		Start:  start,
		End:    &end,
		Params: map[string]float64{"from": from, "to": to},
	}
}

// sortBlocks sorts blocks in reading order (Western: top-to-bottom, left-to-right)
func (d *Director) sortBlocks(blocks []analyzer.Block) []analyzer.Block {
	sorted := make([]analyzer.Block, len(blocks))
	copy(sorted, blocks)

	sort.SliceStable(sorted, func(i, j int) bool {
		// Threshold for "same row" (20 pixels)
		const threshold = 20

		yDiff := sorted[i].Rect.Min.Y - sorted[j].Rect.Min.Y
		if abs(yDiff) > threshold {
			return sorted[i].Rect.Min.Y < sorted[j].Rect.Min.Y
		}
		return sorted[i].Rect.Min.X < sorted[j].Rect.Min.X
	})
	return sorted
}

// calculateDwellTime determines how long to stay on each block
func (d *Director) calculateDwellTime(totalDuration float64, blockCount int) float64 {
	dwell := totalDuration / float64(blockCount)
	return math.Max(d.MinDwell, math.Min(d.MaxDwell, dwell))
}

// calculateZoom grows with how small the block is, capped at MaxZoom.
func (d *Director) calculateZoom(block analyzer.Block, width, height int) float64 {
	if width == 0 || height == 0 || block.Rect.Empty() {
		return 1.0
	}
	frac := float64(block.Area()) / float64(width*height)
	zoom := 1 + (d.MaxZoom-1)*(1-math.Sqrt(math.Min(frac, 1)))
	return math.Max(1, math.Min(d.MaxZoom, zoom))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
