package timeline

import "math"

// Noise is deterministic fractal value noise over time with one output per
// dimension. Two generators with the same parameters produce identical output.
type Noise struct {
	Seed       uint64
	Frequency  float64
	Roughness  float64
	Octaves    int
	Dimensions int
}

func NewNoise(seed uint64, frequency, roughness float64, octaves, dimensions int) *Noise {
	if octaves < 1 {
		octaves = 1
	}
	if dimensions < 1 {
		dimensions = 1
	}
	return &Noise{
		Seed:       seed,
		Frequency:  frequency,
		Roughness:  roughness,
		Octaves:    octaves,
		Dimensions: dimensions,
	}
}

// At samples channel dim at time T. The result stays within [-1, 1].
func (n *Noise) At(T float64, dim int) float64 {
	var sum, norm float64
	amp := 1.0
	freq := n.Frequency
	for o := 0; o < n.Octaves; o++ {
		sum += amp * n.lattice(T*freq, dim, o)
		norm += amp
		amp *= n.Roughness
		freq *= 2
	}
	if norm == 0 {
		return 0
	}
	return sum / norm
}

// Sample returns every channel at time T.
func (n *Noise) Sample(T float64) []float64 {
	out := make([]float64, n.Dimensions)
	for d := range out {
		out[d] = n.At(T, d)
	}
	return out
}

func (n *Noise) lattice(x float64, dim, octave int) float64 {
	i := math.Floor(x)
	f := x - i
	a := n.hash(int64(i), dim, octave)
	b := n.hash(int64(i)+1, dim, octave)
	f = f * f * (3 - 2*f)
	return a + (b-a)*f
}

// hash maps a lattice point to [-1, 1] with splitmix64.
func (n *Noise) hash(i int64, dim, octave int) float64 {
	z := n.Seed ^ uint64(i)*0x9E3779B97F4A7C15 ^ uint64(dim+1)*0xBF58476D1CE4E5B9 ^ uint64(octave+1)*0x94D049BB133111EB
	z += 0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	z ^= z >> 31
	return float64(z>>11)/float64(1<<53)*2 - 1
}
