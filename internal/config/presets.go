package config

import "sort"

// Preset is a named pair of simulation request parameters. Duration is in
// Martian years.
type Preset struct {
	Speed    float64
	Duration float64
	About    string
}

var Presets = map[string]Preset{
	"small": {Speed: 1.0, Duration: 0.1, About: "a tenth of a Martian year"},
	"year":  {Speed: 1.0, Duration: 1.0, About: "one Martian year"},
	"fast":  {Speed: 10.0, Duration: 0.5, About: "half a Martian year at ten times speed"},
}

func GetPreset(name string) (Preset, bool) {
	p, ok := Presets[name]
	return p, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset copies the preset parameters into c.
func (c *Config) ApplyPreset(name string) bool {
	p, ok := GetPreset(name)
	if !ok {
		return false
	}
	c.Speed = p.Speed
	c.Duration = p.Duration
	return true
}
