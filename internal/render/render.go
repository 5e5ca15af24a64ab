package render

import (
	"errors"
	"fmt"
)

var (
	ErrNoTraces   = errors.New("render: no traces")
	ErrTraceShape = errors.New("render: trace x/y length mismatch")
)

// Trace is one line on a chart.
type Trace struct {
	X    []float64
	Y    []float64
	Name string
}

// Layout carries the display metadata of a chart.
type Layout struct {
	Title      string
	XAxisLabel string
	YAxisLabel string
	Mode       string
}

// Renderer draws or redraws the visualization surface in place. Calls are
// synchronous and idempotent for equal input.
type Renderer interface {
	Render(traces []Trace, layout Layout) error
}

type RendererFunc func(traces []Trace, layout Layout) error

func (f RendererFunc) Render(traces []Trace, layout Layout) error { return f(traces, layout) }

// Validate checks that traces can be drawn.
func Validate(traces []Trace) error {
	if len(traces) == 0 {
		return ErrNoTraces
	}
	for _, tr := range traces {
		if len(tr.X) != len(tr.Y) {
			return fmt.Errorf("%w: %q has %d x and %d y", ErrTraceShape, tr.Name, len(tr.X), len(tr.Y))
		}
	}
	return nil
}

// Samples is the longest trace length.
func Samples(traces []Trace) int {
	n := 0
	for _, tr := range traces {
		if len(tr.Y) > n {
			n = len(tr.Y)
		}
	}
	return n
}
