package gpu

import (
	"math"

	"github.com/ivlev/depthflow/internal/uniform"
)

// Params are the fragment program inputs resolved from uniform values.
type Params struct {
	PositionX, PositionY float64
	Rotation             float64
	Focus                float64
	Zoom                 float64
	Parallax             float64
	VignetteRadius       float64
	VignetteIntensity    float64
	Blend                float64
}

// ParallaxSteps is the fixed number of displacement refinements.
const ParallaxSteps = 8

// ParamsFrom reads the canonical uniforms through get. Missing values fall
// back to the resting state.
func ParamsFrom(get func(string) (uniform.Value, bool)) Params {
	p := Params{Zoom: 1}
	if v, ok := get(string(uniform.CameraPosition)); ok {
		p.PositionX, p.PositionY = v.X, v.Y
	}
	if v, ok := get(string(uniform.CameraRotation)); ok {
		p.Rotation = v.X
	}
	if v, ok := get(string(uniform.CameraFocus)); ok {
		p.Focus = v.X
	}
	if v, ok := get(string(uniform.CameraZoom)); ok && v.X != 0 {
		p.Zoom = v.X
	}
	if v, ok := get(string(uniform.ParallaxFactor)); ok {
		p.Parallax = v.X
	}
	if v, ok := get(string(uniform.VignetteRadius)); ok {
		p.VignetteRadius = v.X
	}
	if v, ok := get(string(uniform.VignetteIntensity)); ok {
		p.VignetteIntensity = v.X
	}
	if v, ok := get(string(uniform.Blend)); ok {
		p.Blend = v.X
	}
	return p
}

// Camera maps a screen coordinate st (origin bottom-left) through the camera
// rotation and zoom about the centre. aspect is width/height.
func (p Params) Camera(sx, sy, aspect float64) (float64, float64) {
	x := (sx - 0.5) * aspect
	y := sy - 0.5
	sin, cos := math.Sincos(p.Rotation)
	rx := cos*x - sin*y
	ry := sin*x + cos*y
	return rx/p.Zoom/aspect + 0.5, ry/p.Zoom + 0.5
}

// Displace iterates q = base + position*parallax*(depth(q) - focus).
func (p Params) Displace(bx, by float64, depth func(x, y float64) float64) (float64, float64) {
	qx, qy := bx, by
	if p.Parallax == 0 || depth == nil {
		return qx, qy
	}
	for i := 0; i < ParallaxSteps; i++ {
		d := depth(qx, qy) - p.Focus
		qx = bx + p.PositionX*p.Parallax*d
		qy = by + p.PositionY*p.Parallax*d
	}
	return qx, qy
}

// Vignette is the brightness factor at screen coordinate st.
func (p Params) Vignette(sx, sy float64) float64 {
	if p.VignetteIntensity == 0 {
		return 1
	}
	dist := math.Hypot(sx-0.5, sy-0.5)
	return 1 - p.VignetteIntensity*hermite(p.VignetteRadius, p.VignetteRadius+0.5, dist)
}

// hermite matches the shading-language smoothstep(edge0, edge1, x).
func hermite(e0, e1, x float64) float64 {
	t := (x - e0) / (e1 - e0)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}
	return t * t * (3 - 2*t)
}
