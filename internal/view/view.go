package view

import (
	"errors"
	"fmt"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/render"
)

// ID selects one of the fixed chart views.
type ID int

const (
	TankLevels ID = iota
	PowerDemand
	BatteryLevel
	ProductionMetrics
	EnvironmentalConditions
	EfficiencyMetrics
	PowerGeneration

	numViews
)

const ModeLines = "lines"

const timeAxis = "Time (hours)"

var ErrUnknownView = errors.New("view: unknown view")

// UnknownViewError names a view identifier outside the registry.
type UnknownViewError struct {
	Name string
}

func (e *UnknownViewError) Error() string {
	return fmt.Sprintf("view: unknown view %q", e.Name)
}

func (e *UnknownViewError) Is(target error) bool { return target == ErrUnknownView }

// Series is one consumed bundle series and the trace name it is shown under.
type Series struct {
	Key  string
	Name string
}

// Descriptor is the static display configuration of a view.
type Descriptor struct {
	ID         ID
	Title      string
	XAxisLabel string
	YAxisLabel string
	Mode       string
	Series     []Series
}

func (id ID) String() string {
	switch id {
	case TankLevels:
		return "tank_levels"
	case PowerDemand:
		return "power_demand"
	case BatteryLevel:
		return "battery_level"
	case ProductionMetrics:
		return "production_metrics"
	case EnvironmentalConditions:
		return "environmental_conditions"
	case EfficiencyMetrics:
		return "efficiency_metrics"
	case PowerGeneration:
		return "power_generation"
	}
	return fmt.Sprintf("view(%d)", int(id))
}

func (id ID) Valid() bool { return id >= 0 && id < numViews }

// Next cycles forward through the registry order; Prev backward.
func (id ID) Next() ID { return (id + 1) % numViews }
func (id ID) Prev() ID { return (id + numViews - 1) % numViews }

// Parse maps a view identifier such as "tank_levels" to its ID.
func Parse(name string) (ID, error) {
	for id := ID(0); id < numViews; id++ {
		if id.String() == name {
			return id, nil
		}
	}
	return 0, &UnknownViewError{Name: name}
}

// IDs lists every view in registry order.
func IDs() []ID {
	ids := make([]ID, 0, numViews)
	for id := ID(0); id < numViews; id++ {
		ids = append(ids, id)
	}
	return ids
}

// Lookup returns the descriptor for id.
func Lookup(id ID) (Descriptor, error) {
	d := Descriptor{ID: id, XAxisLabel: timeAxis, Mode: ModeLines}

	switch id {
	case TankLevels:
		d.Title = "Storage Tank Levels Over Time"
		d.YAxisLabel = "Level (g)"
		d.Series = []Series{{"CO2_level", "CO₂ Level"}, {"H2_level", "H₂ Level"}}
	case PowerDemand:
		d.Title = "Power Demand Over Time"
		d.YAxisLabel = "Power Demand (kJ)"
		d.Series = []Series{{"power_demand", "Total Power Demand"}}
	case BatteryLevel:
		d.Title = "Battery Level Over Time"
		d.YAxisLabel = "Battery Level (kJ)"
		d.Series = []Series{{"battery_level", "Battery Level"}}
	case ProductionMetrics:
		d.Title = "Production Metrics Over Time"
		d.YAxisLabel = "Production (g)"
		d.Series = []Series{{"H2_produced", "H₂ Produced"}, {"O2_produced", "O₂ Produced"}}
	case EnvironmentalConditions:
		d.Title = "Environmental Conditions Over Time"
		d.YAxisLabel = "Value"
		d.Series = []Series{{"internal_temp_c", "Internal Temperature (°C)"}, {"internal_pressure_pa", "Internal Pressure (Pa)"}}
	case EfficiencyMetrics:
		d.Title = "Catalyst Efficiency Over Time"
		d.YAxisLabel = "Efficiency"
		d.Series = []Series{{"catalyst_efficiency", "Catalyst Efficiency"}}
	case PowerGeneration:
		d.Title = "Power Generation Over Time"
		d.YAxisLabel = "Power Generated (kJ)"
		d.Series = []Series{{"solar_power_generated", "Solar Power Generated"}, {"nuclear_power_generated", "Nuclear Power Generated"}}
	default:
		return Descriptor{}, &UnknownViewError{Name: id.String()}
	}
	return d, nil
}

// All returns every descriptor in registry order.
func All() []Descriptor {
	out := make([]Descriptor, 0, numViews)
	for _, id := range IDs() {
		d, _ := Lookup(id)
		out = append(out, d)
	}
	return out
}

// RequiredSeries is the hour series plus every series any view consumes.
func RequiredSeries() []string {
	seen := map[string]bool{bundle.Hour: true}
	names := []string{bundle.Hour}
	for _, d := range All() {
		for _, s := range d.Series {
			if !seen[s.Key] {
				seen[s.Key] = true
				names = append(names, s.Key)
			}
		}
	}
	return names
}

// Keys lists the bundle series the view reads, in trace order.
func (d Descriptor) Keys() []string {
	keys := make([]string, len(d.Series))
	for i, s := range d.Series {
		keys[i] = s.Key
	}
	return keys
}

func (d Descriptor) Layout() render.Layout {
	return render.Layout{
		Title:      d.Title,
		XAxisLabel: d.XAxisLabel,
		YAxisLabel: d.YAxisLabel,
		Mode:       d.Mode,
	}
}

// Traces extracts the first n samples of each consumed series against hour.
func (d Descriptor) Traces(b *bundle.Bundle, n int) ([]render.Trace, error) {
	x, err := b.Prefix(bundle.Hour, n)
	if err != nil {
		return nil, err
	}
	traces := make([]render.Trace, 0, len(d.Series))
	for _, s := range d.Series {
		y, err := b.Prefix(s.Key, n)
		if err != nil {
			return nil, fmt.Errorf("view %s: %w", d.ID, err)
		}
		traces = append(traces, render.Trace{X: x, Y: y, Name: s.Name})
	}
	return traces, nil
}

// Render draws the first n samples of b through r using view id. Nothing is
// drawn when the view is unknown or a series is missing.
func Render(r render.Renderer, id ID, b *bundle.Bundle, n int) error {
	d, err := Lookup(id)
	if err != nil {
		return err
	}
	traces, err := d.Traces(b, n)
	if err != nil {
		return err
	}
	return r.Render(traces, d.Layout())
}
