package metrics

import (
	"math"

	"github.com/san-kum/isruplay/internal/bundle"
)

// Metric accumulates one statistic over the samples of a series.
type Metric interface {
	Name() string
	Observe(v float64)
	Value() float64
	Reset()
}

type Mean struct {
	sum     float64
	samples int
}

func NewMean() *Mean { return &Mean{} }

func (m *Mean) Name() string { return "mean" }

func (m *Mean) Observe(v float64) {
	m.sum += v
	m.samples++
}

func (m *Mean) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Mean) Reset() {
	m.sum = 0
	m.samples = 0
}

// Extreme tracks the smallest or largest sample.
type Extreme struct {
	name string
	max  bool
	val  float64
	seen bool
}

func NewMin() *Extreme { return &Extreme{name: "min"} }
func NewMax() *Extreme { return &Extreme{name: "max", max: true} }

func (e *Extreme) Name() string { return e.name }

func (e *Extreme) Observe(v float64) {
	if !e.seen || (e.max && v > e.val) || (!e.max && v < e.val) {
		e.val = v
		e.seen = true
	}
}

func (e *Extreme) Value() float64 {
	if !e.seen {
		return math.NaN()
	}
	return e.val
}

func (e *Extreme) Reset() {
	e.val = 0
	e.seen = false
}

type Final struct {
	val  float64
	seen bool
}

func NewFinal() *Final { return &Final{} }

func (f *Final) Name() string { return "final" }

func (f *Final) Observe(v float64) {
	f.val = v
	f.seen = true
}

func (f *Final) Value() float64 {
	if !f.seen {
		return math.NaN()
	}
	return f.val
}

func (f *Final) Reset() {
	f.val = 0
	f.seen = false
}

func Default() []Metric {
	return []Metric{NewMin(), NewMax(), NewMean(), NewFinal()}
}

// Summary holds the default metrics of one series.
type Summary struct {
	Series  string  `json:"series"`
	Samples int     `json:"samples"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Mean    float64 `json:"mean"`
	Final   float64 `json:"final"`
}

func Observe(values []float64, ms ...Metric) {
	for _, m := range ms {
		m.Reset()
	}
	for _, v := range values {
		for _, m := range ms {
			m.Observe(v)
		}
	}
}

// Summarize computes a Summary for each named series of b. With no names,
// every series is summarised.
func Summarize(b *bundle.Bundle, names ...string) ([]Summary, error) {
	if len(names) == 0 {
		names = b.Names()
	}
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		values, err := b.Prefix(name, b.Len())
		if err != nil {
			return nil, err
		}
		if len(values) == 0 {
			out = append(out, Summary{Series: name})
			continue
		}
		lo, hi, mean, final := NewMin(), NewMax(), NewMean(), NewFinal()
		Observe(values, lo, hi, mean, final)
		out = append(out, Summary{
			Series:  name,
			Samples: len(values),
			Min:     lo.Value(),
			Max:     hi.Value(),
			Mean:    mean.Value(),
			Final:   final.Value(),
		})
	}
	return out, nil
}
