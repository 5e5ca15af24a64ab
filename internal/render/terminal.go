package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

const (
	clearScreen = "\033[2J\033[H"
	hideCursor  = "\033[?25l"
	showCursor  = "\033[?25h"
)

// Terminal redraws the whole screen on every Render, like a live view.
type Terminal struct {
	mu     sync.Mutex
	out    io.Writer
	chart  *Chart
	clear  bool
	frames int
}

func NewTerminal(out io.Writer, chart *Chart, clear bool) *Terminal {
	if chart == nil {
		chart = NewChart(0, 0)
	}
	return &Terminal{out: out, chart: chart, clear: clear}
}

func (t *Terminal) Render(traces []Trace, layout Layout) error {
	frame, err := t.chart.Plot(traces, layout)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var b strings.Builder
	if t.clear {
		b.WriteString(clearScreen)
	}
	b.WriteString(frame)
	if !t.clear {
		b.WriteString(strings.Repeat("-", t.chart.Width) + "\n")
	}
	t.frames++

	_, err = io.WriteString(t.out, b.String())
	return err
}

// Frames counts successful renders.
func (t *Terminal) Frames() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.frames
}

func (t *Terminal) Start() {
	if t.clear {
		fmt.Fprint(t.out, hideCursor)
	}
}

func (t *Terminal) Stop() {
	if t.clear {
		fmt.Fprint(t.out, showCursor)
	}
}

// Frame keeps the latest rendered frame for a UI that pulls it on redraw.
type Frame struct {
	mu    sync.Mutex
	chart *Chart
	last  string
}

func NewFrame(chart *Chart) *Frame {
	if chart == nil {
		chart = NewChart(0, 0)
	}
	return &Frame{chart: chart}
}

func (f *Frame) Render(traces []Trace, layout Layout) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	frame, err := f.chart.Plot(traces, layout)
	if err != nil {
		return err
	}
	f.last = frame
	return nil
}

func (f *Frame) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Resize changes the chart size used by subsequent renders.
func (f *Frame) Resize(width, height int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if width > 0 {
		f.chart.Width = width
	}
	if height > 0 {
		f.chart.Height = height
	}
}
