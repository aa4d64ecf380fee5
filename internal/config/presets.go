package config

import (
	"fmt"
	"sort"

	"github.com/san-kum/thermsim/internal/control"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/thermal"
)

var Presets = map[string]*Config{
	"room": {
		Description: "4x4x2.5 m room, incremental PI heater",
		Controller:  control.Config{Mode: control.ModeIncremental, Kp: 0.5, Ti: 60},
		Plant:       PlantConfig{Model: "room"},
		Run: RunConfig{
			Setpoint: DefaultSetpoint, Initial: DefaultInitial, Ambient: DefaultAmbient,
			Dt: DefaultDt, Duration: DefaultDuration,
		},
	},
	"room_pid": {
		Description: "room with a positional PID heater",
		Controller:  control.Config{Kp: 5, Ti: 70, Td: 10},
		Plant:       PlantConfig{Model: "room"},
		Run:         RunConfig{Setpoint: 25, Initial: 20, Ambient: 15, Dt: 1, Duration: 7200},
	},
	"room_window": {
		Description: "room_pid with the window open for ten minutes",
		Controller:  control.Config{Kp: 5, Ti: 70, Td: 10, AntiWindup: true},
		Plant:       PlantConfig{Model: "room", OpenFactor: 5},
		Run: RunConfig{
			Setpoint: 25, Initial: 20, Ambient: 15, Dt: 1, Duration: 7200,
			Windows: []sim.Window{{Start: 1800, End: 2400}},
		},
	},
	"enclosure": {
		Description: "0.25 m³ heated enclosure",
		Controller:  control.Config{Kp: 5, Ti: 70, Td: 10},
		Plant:       PlantConfig{Model: "enclosure"},
		Run:         RunConfig{Setpoint: 25, Initial: 20, Ambient: 15, Dt: 1, Duration: 7200},
	},
	"aquarium": {
		Description: "200x80x60 cm tank with a 300 W heater",
		Controller:  control.Config{Form: control.FormParallel, Kp: 30, Ki: 0.2, Kd: 10},
		Plant:       PlantConfig{Model: "aquarium"},
		Run:         RunConfig{Setpoint: 25, Initial: 20, Ambient: 20, Dt: 1, Duration: 3600},
	},
	"aquarium_legacy": {
		Description: "aquarium integrating the previous error",
		Controller:  control.Config{Mode: control.ModeLegacy, Form: control.FormParallel, Kp: 30, Ki: 0.2, Kd: 10},
		Plant:       PlantConfig{Model: "aquarium"},
		Run:         RunConfig{Setpoint: 25, Initial: 20, Ambient: 20, Dt: 1, Duration: 3600},
	},
	"air_conditioner": {
		Description: "occupied office, heating and cooling, window opened mid-run",
		Controller:  control.Config{Kp: 400, Ti: 300, Td: 5, AntiWindup: true},
		Plant:       PlantConfig{Model: "office"},
		Run: RunConfig{
			Setpoint: 24, Initial: 30, Ambient: 32, Dt: 1, Duration: 7200,
			Windows: []sim.Window{{Start: 3600, End: 4200}},
		},
	},
	"air_conditioner_legacy": {
		Description: "30 m³ of air, symmetric 1500 W unit, Tp 0.1 s",
		Controller:  control.Config{Kp: 50, Ti: 1, Td: 0.01, AntiWindup: true},
		// unoccupied; set heat_gain to 0.0428 W per person
		Plant: PlantConfig{Custom: &thermal.Model{
			Name:     "air_conditioner_legacy",
			Media:    []thermal.Medium{{Name: "air", Volume: 30, Density: 1.225, SpecificHeat: thermal.AirSpecificHeat}},
			Surfaces: []thermal.Surface{{Name: "envelope", U: 5, Area: 1}},
			MaxPower: 1500,
			Cooling:  true,
		}},
		Run: RunConfig{Setpoint: 22, Initial: 15, Ambient: 15, Dt: 0.1, Duration: 3600},
	},
}

// GetPreset returns a copy that the caller may modify.
func GetPreset(name string) (*Config, error) {
	cfg, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPreset, name)
	}
	out := cfg.Clone()
	out.Preset = name
	return out, nil
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
