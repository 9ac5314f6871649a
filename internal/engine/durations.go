package engine

import (
	"math"
	"math/rand"
	"time"
)

// calculateDurations splits total visible time across count clips. Each
// transition overlaps two clips by fade seconds, so the clips sum to
// total + (count-1)*fade. Lengths wander up to ±15% from clip to clip.
// A zero seed draws from the clock.
func calculateDurations(total, fade float64, count int, seed uint64) []float64 {
	if count <= 0 {
		return nil
	}
	numFades := float64(count - 1)
	clipsTotal := total + numFades*fade
	base := clipsTotal / float64(count)

	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	r := rand.New(rand.NewSource(int64(seed)))

	durations := make([]float64, count)
	durations[0] = base * (1 + (r.Float64()*0.3 - 0.15))
	for i := 1; i < count; i++ {
		durations[i] = durations[i-1] * (1 + (r.Float64()*0.3 - 0.15))
		// A clip must outlast its transition
		if durations[i] < fade*1.1 {
			durations[i] = fade * 1.1
		}
	}

	sum := 0.0
	for _, d := range durations {
		sum += d
	}
	scale := clipsTotal / sum
	for i := range durations {
		durations[i] *= scale
	}
	return durations
}

// alignToFrames rounds every duration to a whole number of frames so xfade
// offsets land on frame boundaries.
func alignToFrames(durations []float64, fps int) []float64 {
	out := make([]float64, len(durations))
	for i, d := range durations {
		out[i] = math.Max(1, math.Round(d*float64(fps))) / float64(fps)
	}
	return out
}
