package renderer

import "fmt"

// Stage names a pipeline step in a StageError.
type Stage string

const (
	StageCache   Stage = "cache"
	StageTexture Stage = "texture"
	StageRender  Stage = "render"
	StageEncode  Stage = "encode"
)

// StageError identifies which pipeline step failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// EncoderSinkError reports a frame sink that stopped accepting data.
// Frames is the number of frames written successfully before the failure.
type EncoderSinkError struct {
	Frames int
	Err    error
}

func (e *EncoderSinkError) Error() string {
	return fmt.Sprintf("encoder sink failed after %d frames: %v", e.Frames, e.Err)
}

func (e *EncoderSinkError) Unwrap() error { return e.Err }
