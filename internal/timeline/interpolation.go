package timeline

import "math"

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp performs linear interpolation between a and b with t clamped to [0,1].
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*Clamp(t, 0, 1)
}

// Smoothstep eases between a and b with the cubic Hermite curve.
func Smoothstep(a, b, t float64) float64 {
	t = Clamp(t, 0, 1)
	return Lerp(a, b, t*t*(3-2*t))
}

// Heaviside is 0 below low, 1 above high and a linear ramp in between.
func Heaviside(low, high, t float64) float64 {
	if t <= low {
		return 0
	}
	if t >= high {
		return 1
	}
	return (t - low) / (high - low)
}

// Triangle is a triangle wave of the given frequency and amplitude anchored to
// tau: zero at tau=0, peak amplitude at tau = pi/(2*frequency).
func Triangle(tau, frequency, amplitude float64) float64 {
	return amplitude * (2 / math.Pi) * math.Asin(math.Sin(frequency*tau))
}

// EaseInOutCubic applies smooth in-out easing on t in [0,1].
func EaseInOutCubic(t float64) float64 {
	t = Clamp(t, 0, 1)
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - math.Pow(-2*t+2, 3)/2
}
