package render

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"
)

const (
	DefaultWidth  = 70
	DefaultHeight = 15
)

var palette = []asciigraph.AnsiColor{
	asciigraph.Red,
	asciigraph.Yellow,
	asciigraph.Green,
	asciigraph.Blue,
	asciigraph.Cyan,
	asciigraph.Magenta,
}

// Chart turns traces into an asciigraph text frame.
type Chart struct {
	Width     int
	Height    int
	Precision uint
	Color     bool
}

func NewChart(width, height int) *Chart {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	return &Chart{Width: width, Height: height, Precision: 2, Color: true}
}

// Plot renders one frame. asciigraph has no x axis, so the x label and the
// revealed x range are written under the graph.
func (c *Chart) Plot(traces []Trace, layout Layout) (string, error) {
	if err := Validate(traces); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(layout.Title)
	b.WriteString("\n\n")

	data := make([][]float64, 0, len(traces))
	names := make([]string, 0, len(traces))
	colors := make([]asciigraph.AnsiColor, 0, len(traces))
	var x []float64
	for i, tr := range traces {
		if len(tr.Y) == 0 {
			continue
		}
		data = append(data, tr.Y)
		names = append(names, tr.Name)
		if c.Color {
			colors = append(colors, palette[i%len(palette)])
		} else {
			colors = append(colors, asciigraph.Default)
		}
		if len(tr.X) > len(x) {
			x = tr.X
		}
	}

	if len(data) == 0 {
		b.WriteString("  waiting for data\n")
		return b.String(), nil
	}

	graph := asciigraph.PlotMany(data,
		asciigraph.Height(c.Height),
		asciigraph.Width(c.Width),
		asciigraph.Precision(c.Precision),
		asciigraph.Caption(layout.YAxisLabel),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(names...),
	)
	b.WriteString(graph)
	b.WriteString("\n\n")
	b.WriteString(fmt.Sprintf("  x: %s  [%g .. %g]  %d samples\n", layout.XAxisLabel, x[0], x[len(x)-1], len(x)))

	return b.String(), nil
}
