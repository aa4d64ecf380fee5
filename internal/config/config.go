package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/thermsim/internal/control"
	"github.com/san-kum/thermsim/internal/experiment"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/thermal"
)

const (
	DefaultDt       = 1.0
	DefaultDuration = 14400.0
	DefaultSetpoint = 23.0
	DefaultInitial  = 20.0
	DefaultAmbient  = 10.0
)

var (
	ErrUnknownPreset = errors.New("config: unknown preset")
	ErrUnknownParam  = errors.New("config: unknown parameter")
)

var registry = experiment.NewRegistry()

type Config struct {
	// Preset names the base configuration when loading; fields present in
	// the document override it.
	Preset      string `yaml:"preset,omitempty" json:"preset,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	Controller control.Config `yaml:"controller" json:"controller"`
	Plant      PlantConfig    `yaml:"plant" json:"plant"`
	Run        RunConfig      `yaml:"run" json:"run"`
}

// PlantConfig selects a registered model by name, or carries a full custom
// model, and applies overrides on top.
type PlantConfig struct {
	Model  string         `yaml:"model,omitempty" json:"model,omitempty"`
	Custom *thermal.Model `yaml:"custom,omitempty" json:"custom,omitempty"`

	MaxPower   *float64 `yaml:"max_power,omitempty" json:"max_power,omitempty"`
	HeatGain   *float64 `yaml:"heat_gain,omitempty" json:"heat_gain,omitempty"`
	Cooling    *bool    `yaml:"cooling,omitempty" json:"cooling,omitempty"`
	OpenFactor float64  `yaml:"open_factor,omitempty" json:"open_factor,omitempty"`
}

type RunConfig struct {
	Setpoint float64 `yaml:"setpoint" json:"setpoint"`
	Initial  float64 `yaml:"initial" json:"initial"`
	Ambient  float64 `yaml:"ambient" json:"ambient"`
	Dt       float64 `yaml:"dt" json:"dt"`
	Duration float64 `yaml:"duration" json:"duration"`

	Schedule       []sim.SetpointStep  `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	Windows        []sim.Window        `yaml:"windows,omitempty" json:"windows,omitempty"`
	Open           bool                `yaml:"open,omitempty" json:"open,omitempty"`
	RandomOpenings *sim.RandomOpenings `yaml:"random_openings,omitempty" json:"random_openings,omitempty"`
}

func DefaultConfig() *Config {
	cfg, _ := GetPreset("room")
	cfg.Preset = ""
	return cfg
}

// Load reads a YAML document. When it names a preset, that preset is the
// base; otherwise DefaultConfig is.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, yaml.Unmarshal)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data with unmarshal (yaml.Unmarshal or json.Unmarshal) over
// the base named by its preset field.
func Parse(data []byte, unmarshal func([]byte, any) error) (*Config, error) {
	var head struct {
		Preset string `yaml:"preset" json:"preset"`
	}
	if err := unmarshal(data, &head); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if head.Preset != "" {
		base, err := GetPreset(head.Preset)
		if err != nil {
			return nil, err
		}
		cfg = base
	}
	if err := unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Model resolves the plant with overrides applied.
func (c *Config) Model() (thermal.Model, error) {
	var m thermal.Model
	switch {
	case c.Plant.Custom != nil:
		m = cloneModel(*c.Plant.Custom)
	case c.Plant.Model != "":
		var err error
		if m, err = registry.GetModel(c.Plant.Model); err != nil {
			return thermal.Model{}, err
		}
	default:
		return thermal.Model{}, fmt.Errorf("%w: plant needs a model name or a custom model", thermal.ErrInvalidModel)
	}

	if c.Plant.MaxPower != nil {
		m.MaxPower = *c.Plant.MaxPower
	}
	if c.Plant.HeatGain != nil {
		m.HeatGain = *c.Plant.HeatGain
	}
	if c.Plant.Cooling != nil {
		m.Cooling = *c.Plant.Cooling
	}
	if c.Plant.OpenFactor != 0 {
		for i := range m.Surfaces {
			if m.Surfaces[i].Aperture {
				m.Surfaces[i].OpenFactor = c.Plant.OpenFactor
			}
		}
	}
	return m, nil
}

// Params converts the config into simulator input.
func (c *Config) Params() (sim.Params, error) {
	m, err := c.Model()
	if err != nil {
		return sim.Params{}, &sim.ConfigError{Field: "plant", Reason: err.Error(), Err: err}
	}
	cl := c.Clone()
	return sim.Params{
		Controller:     cl.Controller,
		Model:          m,
		Setpoint:       cl.Run.Setpoint,
		Schedule:       cl.Run.Schedule,
		Initial:        cl.Run.Initial,
		Ambient:        cl.Run.Ambient,
		Dt:             cl.Run.Dt,
		Duration:       cl.Run.Duration,
		Windows:        cl.Run.Windows,
		Open:           cl.Run.Open,
		RandomOpenings: cl.Run.RandomOpenings,
	}, nil
}

// ParamNames lists the names accepted by Set and Get.
var ParamNames = []string{
	"kp", "ti", "td", "ki", "kd", "out_min", "out_max", "anti_windup", "skip_initial_kick",
	"setpoint", "initial", "ambient", "dt", "duration", "open",
	"max_power", "heat_gain", "open_factor",
}

// Set overrides one numeric parameter by name. Boolean parameters treat any
// non-zero value as true.
func (c *Config) Set(name string, v float64) error {
	switch strings.ToLower(name) {
	case "kp":
		c.Controller.Kp = v
	case "ti":
		c.Controller.Ti = v
	case "td":
		c.Controller.Td = v
	case "ki":
		c.Controller.Ki = v
	case "kd":
		c.Controller.Kd = v
	case "out_min":
		c.Controller.OutMin = v
	case "out_max":
		c.Controller.OutMax = v
	case "anti_windup":
		c.Controller.AntiWindup = v != 0
	case "skip_initial_kick":
		c.Controller.SkipInitialKick = v != 0
	case "setpoint":
		c.Run.Setpoint = v
	case "initial":
		c.Run.Initial = v
	case "ambient":
		c.Run.Ambient = v
	case "dt":
		c.Run.Dt = v
	case "duration":
		c.Run.Duration = v
	case "open":
		c.Run.Open = v != 0
	case "max_power":
		c.Plant.MaxPower = &v
	case "heat_gain":
		c.Plant.HeatGain = &v
	case "open_factor":
		c.Plant.OpenFactor = v
	default:
		return fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
	return nil
}

// Get returns the effective value of a parameter accepted by Set.
func (c *Config) Get(name string) (float64, error) {
	key := strings.ToLower(name)
	switch key {
	case "kp":
		return c.Controller.Kp, nil
	case "ti":
		return c.Controller.Ti, nil
	case "td":
		return c.Controller.Td, nil
	case "ki":
		return c.Controller.Ki, nil
	case "kd":
		return c.Controller.Kd, nil
	case "out_min":
		return c.Controller.OutMin, nil
	case "out_max":
		return c.Controller.OutMax, nil
	case "anti_windup":
		return boolValue(c.Controller.AntiWindup), nil
	case "skip_initial_kick":
		return boolValue(c.Controller.SkipInitialKick), nil
	case "setpoint":
		return c.Run.Setpoint, nil
	case "initial":
		return c.Run.Initial, nil
	case "ambient":
		return c.Run.Ambient, nil
	case "dt":
		return c.Run.Dt, nil
	case "duration":
		return c.Run.Duration, nil
	case "open":
		return boolValue(c.Run.Open), nil
	case "max_power", "heat_gain":
		m, err := c.Model()
		if err != nil {
			return 0, err
		}
		if key == "heat_gain" {
			return m.HeatGain, nil
		}
		return m.MaxPower, nil
	case "open_factor":
		if c.Plant.OpenFactor == 0 {
			return thermal.DefaultOpenFactor, nil
		}
		return c.Plant.OpenFactor, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownParam, name)
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.Plant.Custom != nil {
		m := cloneModel(*c.Plant.Custom)
		out.Plant.Custom = &m
	}
	if c.Plant.MaxPower != nil {
		v := *c.Plant.MaxPower
		out.Plant.MaxPower = &v
	}
	if c.Plant.HeatGain != nil {
		v := *c.Plant.HeatGain
		out.Plant.HeatGain = &v
	}
	if c.Plant.Cooling != nil {
		v := *c.Plant.Cooling
		out.Plant.Cooling = &v
	}
	out.Run.Schedule = append([]sim.SetpointStep(nil), c.Run.Schedule...)
	out.Run.Windows = append([]sim.Window(nil), c.Run.Windows...)
	if c.Run.RandomOpenings != nil {
		ro := *c.Run.RandomOpenings
		out.Run.RandomOpenings = &ro
	}
	return &out
}

func cloneModel(m thermal.Model) thermal.Model {
	m.Media = append([]thermal.Medium(nil), m.Media...)
	m.Surfaces = append([]thermal.Surface(nil), m.Surfaces...)
	if m.Opening != nil {
		o := *m.Opening
		m.Opening = &o
	}
	return m
}
