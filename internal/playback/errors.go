package playback

import (
	"errors"
	"fmt"

	"github.com/san-kum/isruplay/internal/view"
)

// Playback errors.
var (
	// ErrSuperseded is returned by a Start whose fetch completed after a
	// newer Start began; its bundle is discarded.
	ErrSuperseded = errors.New("playback: start superseded by a newer start")

	// ErrInvalidParams indicates non-positive speed or duration.
	ErrInvalidParams = errors.New("playback: speed and duration must be positive")
)

// FetchError reports a failed or malformed simulation request. The session
// is left as it was before Start.
type FetchError struct {
	Params Params
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("playback: fetch (speed=%g duration=%g): %v", e.Params.Speed, e.Params.Duration, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// RenderError wraps a failed render of one tick. The tick is skipped and the
// clock keeps running.
type RenderError struct {
	Step int
	View view.ID
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("playback: render %s at step %d: %v", e.View, e.Step, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
