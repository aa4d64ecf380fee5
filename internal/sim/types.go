package sim

import (
	"github.com/san-kum/thermsim/internal/control"
	"github.com/san-kum/thermsim/internal/thermal"
)

// Window is a closed interval [Start, End] in seconds during which the
// aperture is open.
type Window struct {
	Start float64 `yaml:"start" json:"start"`
	End   float64 `yaml:"end" json:"end"`
}

func (w Window) Contains(t float64) bool { return t >= w.Start && t <= w.End }

// SetpointStep switches the setpoint to Setpoint from time At onward.
type SetpointStep struct {
	At       float64 `yaml:"at" json:"at"`
	Setpoint float64 `yaml:"setpoint" json:"setpoint"`
}

// RandomOpenings draws Count windows of Length seconds uniformly over the run.
// The same Seed always yields the same windows.
type RandomOpenings struct {
	Count  int     `yaml:"count" json:"count"`
	Length float64 `yaml:"length" json:"length"`
	Seed   int64   `yaml:"seed" json:"seed"`
}

type Params struct {
	Controller control.Config `json:"controller"`
	Model      thermal.Model  `json:"model"`

	Setpoint float64        `json:"setpoint"`
	Schedule []SetpointStep `json:"schedule,omitempty"`
	Initial  float64        `json:"initial"`
	Ambient  float64        `json:"ambient"`

	Dt       float64 `json:"dt"`
	Duration float64 `json:"duration"`

	Windows        []Window        `json:"windows,omitempty"`
	Open           bool            `json:"open,omitempty"`
	RandomOpenings *RandomOpenings `json:"random_openings,omitempty"`
}

// SetpointAt resolves the schedule at time t.
func (p *Params) SetpointAt(t float64) float64 {
	sp := p.Setpoint
	at := -1.0
	for _, s := range p.Schedule {
		if t >= s.At && s.At >= at {
			sp, at = s.Setpoint, s.At
		}
	}
	return sp
}

type Sample struct {
	Time        float64 `json:"time"`
	Temperature float64 `json:"temperature"`
	Setpoint    float64 `json:"setpoint"`
	Power       float64 `json:"power"`
	Loss        float64 `json:"loss"`
	Open        bool    `json:"open"`
}

func (s Sample) Minutes() float64 { return s.Time / 60 }

// Metric observes every sample of a run. dt is the step length.
type Metric interface {
	Name() string
	Observe(s Sample, dt float64)
	Value() float64
	Reset()
}

type Result struct {
	Samples []Sample `json:"samples"`
	// Final is the temperature after the last step.
	Final     float64            `json:"final"`
	Overshoot float64            `json:"overshoot"`
	Metrics   map[string]float64 `json:"metrics"`
	// Windows lists every disturbance window that was applied, including
	// randomly drawn ones.
	Windows []Window `json:"windows,omitempty"`
	// Controller is the controller state after the last step.
	Controller control.Diagnostics `json:"controller"`
}

func (r *Result) Times() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Time
	}
	return out
}

func (r *Result) Minutes() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Minutes()
	}
	return out
}

func (r *Result) Temperatures() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Temperature
	}
	return out
}

func (r *Result) Powers() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Power
	}
	return out
}

func (r *Result) Losses() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Loss
	}
	return out
}

func (r *Result) Setpoints() []float64 {
	out := make([]float64, len(r.Samples))
	for i, s := range r.Samples {
		out[i] = s.Setpoint
	}
	return out
}
