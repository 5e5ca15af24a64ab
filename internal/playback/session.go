package playback

import (
	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/view"
)

// State of the controller and its clock combined.
type State int

const (
	Idle State = iota
	Running
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// Params are the simulation request parameters of a start.
type Params struct {
	Speed    float64
	Duration float64
}

func (p Params) validate() error {
	if p.Speed <= 0 || p.Duration <= 0 {
		return ErrInvalidParams
	}
	return nil
}

// Status is a point-in-time copy of the controller state.
type Status struct {
	SessionID string
	State     State
	Step      int
	Len       int
	View      view.ID
	Params    Params
	// Pending is true while a start is waiting for its bundle.
	Pending bool
}

// session is owned by the Controller and only touched under its lock.
type session struct {
	id     string
	params Params
	bundle *bundle.Bundle
	step   int
	paused bool
	state  State
	clock  *clock
}

func (s *session) halt(state State) {
	s.state = state
	if s.clock != nil {
		s.clock.stop()
	}
}
