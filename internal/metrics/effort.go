// Package metrics scores a finished run. Every type implements sim.Metric
// and is reset by the simulator at the start of each run.
package metrics

import (
	"math"

	"github.com/san-kum/thermsim/internal/sim"
)

// ControlEffort is the mean absolute actuator power in W.
type ControlEffort struct {
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort { return &ControlEffort{} }

func (c *ControlEffort) Name() string { return "mean_power" }

func (c *ControlEffort) Observe(s sim.Sample, dt float64) {
	c.sum += math.Abs(s.Power)
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}

// PeakPower is the largest absolute actuator power in W.
type PeakPower struct {
	peak float64
}

func NewPeakPower() *PeakPower { return &PeakPower{} }

func (p *PeakPower) Name() string { return "peak_power" }

func (p *PeakPower) Observe(s sim.Sample, dt float64) {
	p.peak = math.Max(p.peak, math.Abs(s.Power))
}

func (p *PeakPower) Value() float64 { return p.peak }
func (p *PeakPower) Reset()         { p.peak = 0 }

const joulesPerKWh = 3.6e6

// Energy is the actuator energy in kWh, heating and cooling both counted as
// consumption.
type Energy struct {
	joules float64
}

func NewEnergy() *Energy { return &Energy{} }

func (e *Energy) Name() string { return "energy_kwh" }

func (e *Energy) Observe(s sim.Sample, dt float64) {
	e.joules += math.Abs(s.Power) * dt
}

func (e *Energy) Value() float64 { return e.joules / joulesPerKWh }
func (e *Energy) Reset()         { e.joules = 0 }
