package uniform

import "fmt"

// Name identifies a shader parameter. The canonical set is declared below;
// any other string is passed through as a custom parameter.
type Name string

const (
	CameraPosition    Name = "camera_position"
	CameraRotation    Name = "camera_rotation"
	CameraFocus       Name = "camera_focus"
	CameraZoom        Name = "camera_zoom"
	ParallaxFactor    Name = "parallax_factor"
	VignetteRadius    Name = "vignette_radius"
	VignetteIntensity Name = "vignette_intensity"
	Blend             Name = "blend"
	Time              Name = "time"
	Resolution        Name = "resolution"
)

// Canonical lists the recognized parameters in declaration order.
var Canonical = []Name{
	CameraPosition,
	CameraRotation,
	CameraFocus,
	CameraZoom,
	ParallaxFactor,
	VignetteRadius,
	VignetteIntensity,
	Blend,
	Time,
	Resolution,
}

// IsCanonical reports whether n belongs to the recognized set.
func (n Name) IsCanonical() bool {
	for _, c := range Canonical {
		if c == n {
			return true
		}
	}
	return false
}

// Value is a scalar or a 2-vector.
type Value struct {
	X, Y float64
	Vec  bool
}

func Scalar(v float64) Value {
	return Value{X: v}
}

func Vec2(x, y float64) Value {
	return Value{X: x, Y: y, Vec: true}
}

// Float returns the scalar component (X for vectors).
func (v Value) Float() float64 {
	return v.X
}

func (v Value) String() string {
	if v.Vec {
		return fmt.Sprintf("(%g, %g)", v.X, v.Y)
	}
	return fmt.Sprintf("%g", v.X)
}
