package config

import (
	"math"
	"sort"
)

// GaitPreset is a walking command applied on top of DefaultConfig.
type GaitPreset struct {
	Description string
	Step        []float64
	YawPerStep  float64
}

var Presets = map[string]GaitPreset{
	"forward": {
		Description: "0.15 m steps straight ahead",
		Step:        []float64{0.15, 0, 0},
	},
	"backward": {
		Description: "0.1 m steps backwards",
		Step:        []float64{-0.1, 0, 0},
	},
	"lateral": {
		Description: "0.1 m steps to the left",
		Step:        []float64{0, 0.1, 0},
	},
	"diagonal": {
		Description: "0.1 m forward and 0.1 m right per step",
		Step:        []float64{0.1, -0.1, 0},
	},
	"turn": {
		Description: "0.05 m steps turning 5 degrees per step",
		Step:        []float64{0.05, 0, 0},
		YawPerStep:  5 * math.Pi / 180,
	},
	"stand": {
		Description: "trot in place",
		Step:        []float64{0, 0, 0},
	},
}

// GetPreset returns DefaultConfig with the named gait, or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Gait.Step = append([]float64(nil), p.Step...)
	cfg.Gait.YawPerStep = p.YawPerStep
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
