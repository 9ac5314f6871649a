package gpu

import "github.com/ivlev/depthflow/internal/uniform"

// Filter selects texture minification behaviour.
type Filter int

const (
	FilterLinear Filter = iota
	FilterLinearMipmapNearest
)

// TextureDesc describes an 8-bit texture upload.
type TextureDesc struct {
	Label      string
	Width      int
	Height     int
	Channels   int // 3 for colour, 1 for depth
	Mipmaps    bool
	Anisotropy int
	Filter     Filter
}

type Texture interface {
	Width() int
	Height() int
	Channels() int
	Release()
}

type Framebuffer interface {
	Width() int
	Height() int
	Release()
}

// ProgramDesc describes a shader program. Uniforms lists the parameter
// names the program declares; writes to any other name are dropped.
type ProgramDesc struct {
	Label    string
	Uniforms []string
	// Source is backend specific shader code; empty selects the built-in
	// parallax program.
	Source string
}

// Program is a linked shader program with its uniform storage.
type Program interface {
	uniform.Program
	Release()
}

// Device owns GPU resources. It is not safe for concurrent use: every call
// must come from the goroutine that drives rendering.
type Device interface {
	NewTexture(desc TextureDesc, data []byte) (Texture, error)
	NewFramebuffer(width, height int) (Framebuffer, error)
	NewProgram(desc ProgramDesc) (Program, error)
	// Bind attaches tex to a texture unit (0..MaxUnits-1). nil unbinds.
	Bind(unit int, tex Texture)
	Clear(fb Framebuffer)
	// Draw renders the full-screen quad (a 4-vertex triangle strip) with prog into fb.
	Draw(prog Program, fb Framebuffer) error
	// Read copies fb as packed RGB8 rows, bottom row first, into dst.
	Read(fb Framebuffer, dst []byte) error
	Release()
}

// MaxUnits is the number of texture units: two colour/depth pairs.
const MaxUnits = 4

// DefaultProgram declares every canonical uniform.
func DefaultProgram() ProgramDesc {
	names := make([]string, len(uniform.Canonical))
	for i, n := range uniform.Canonical {
		names[i] = string(n)
	}
	return ProgramDesc{Label: "parallax", Uniforms: names}
}

// FrameSize is the byte length of one packed RGB8 readback.
func FrameSize(fb Framebuffer) int {
	return fb.Width() * fb.Height() * 3
}
