package bundle

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Hour is the series every bundle carries; it is the X axis of every view.
const Hour = "hour"

// Bundle is the decoded output of one simulation run: named series of equal
// length, one sample per simulated hour. It is never mutated after New.
type Bundle struct {
	series map[string][]float64
	length int
}

// New validates series and wraps them in a Bundle. The input map is copied.
// required names series that must be present in addition to Hour.
func New(series map[string][]float64, required ...string) (*Bundle, error) {
	if len(series) == 0 {
		return nil, ErrEmpty
	}

	hour, ok := series[Hour]
	if !ok {
		return nil, &SeriesError{Name: Hour, Err: ErrMissingSeries}
	}

	for _, name := range required {
		if _, ok := series[name]; !ok {
			return nil, &SeriesError{Name: name, Err: ErrMissingSeries}
		}
	}

	n := len(hour)
	for _, name := range sortedKeys(series) {
		if got := len(series[name]); got != n {
			return nil, &SeriesError{
				Name: name,
				Err:  fmt.Errorf("%w: %d samples, %s has %d", ErrLengthMismatch, got, Hour, n),
			}
		}
	}

	for i := 1; i < n; i++ {
		if hour[i] < hour[i-1] {
			return nil, &SeriesError{
				Name: Hour,
				Err:  fmt.Errorf("%w: index %d (%g after %g)", ErrHourNotMonotonic, i, hour[i], hour[i-1]),
			}
		}
	}

	b := &Bundle{series: make(map[string][]float64, len(series)), length: n}
	for name, values := range series {
		b.series[name] = append([]float64(nil), values...)
	}
	return b, nil
}

// Decode reads a JSON object of series name to number array and validates it.
func Decode(r io.Reader, required ...string) (*Bundle, error) {
	var raw map[string][]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return New(raw, required...)
}

// Len is the number of simulated steps L.
func (b *Bundle) Len() int { return b.length }

// Names returns the series names in lexical order.
func (b *Bundle) Names() []string { return sortedKeys(b.series) }

func (b *Bundle) Has(name string) bool {
	_, ok := b.series[name]
	return ok
}

// Require reports the first of names the bundle lacks.
func (b *Bundle) Require(names ...string) error {
	for _, name := range names {
		if !b.Has(name) {
			return &SeriesError{Name: name, Err: ErrMissingSeries}
		}
	}
	return nil
}

// Series returns a copy of the named series.
func (b *Bundle) Series(name string) ([]float64, bool) {
	values, ok := b.series[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), values...), true
}

// Prefix returns a copy of the first n samples of the named series. n is
// clamped to [0, Len].
func (b *Bundle) Prefix(name string, n int) ([]float64, error) {
	values, ok := b.series[name]
	if !ok {
		return nil, &SeriesError{Name: name, Err: ErrMissingSeries}
	}
	if n < 0 {
		n = 0
	}
	if n > len(values) {
		n = len(values)
	}
	return append([]float64(nil), values[:n]...), nil
}

// At returns sample i of every series, keyed by name.
func (b *Bundle) At(i int) (map[string]float64, error) {
	if i < 0 || i >= b.length {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrIndexRange, i, b.length)
	}
	row := make(map[string]float64, len(b.series))
	for name, values := range b.series {
		row[name] = values[i]
	}
	return row, nil
}

func (b *Bundle) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.series)
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
