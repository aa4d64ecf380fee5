package metrics

import (
	"math"

	"github.com/san-kum/thermsim/internal/sim"
)

// NotSettled is the settling time of a run that ends outside the band.
const NotSettled = -1.0

// Settling is the time in seconds after which the temperature stays within
// band °C of the setpoint. It is NotSettled if the run ends outside the band.
type Settling struct {
	band      float64
	enteredAt float64
	inside    bool
	samples   int
}

func NewSettling(band float64) *Settling {
	return &Settling{band: band}
}

func (s *Settling) Name() string { return "settling_time" }

func (s *Settling) Observe(sample sim.Sample, dt float64) {
	s.samples++
	within := math.Abs(sample.Temperature-sample.Setpoint) <= s.band
	if within && !s.inside {
		s.enteredAt = sample.Time
	}
	s.inside = within
}

func (s *Settling) Value() float64 {
	if s.samples == 0 || !s.inside {
		return NotSettled
	}
	return s.enteredAt
}

func (s *Settling) Reset() {
	s.enteredAt = 0
	s.inside = false
	s.samples = 0
}

// IAE is the integral of absolute tracking error in °C·s.
type IAE struct {
	sum float64
}

func NewIAE() *IAE { return &IAE{} }

func (m *IAE) Name() string { return "iae" }

func (m *IAE) Observe(s sim.Sample, dt float64) {
	m.sum += math.Abs(s.Setpoint-s.Temperature) * dt
}

func (m *IAE) Value() float64 { return m.sum }
func (m *IAE) Reset()         { m.sum = 0 }

// MaxDeviation is the largest excursion above the setpoint in °C.
type MaxDeviation struct {
	max float64
}

func NewMaxDeviation() *MaxDeviation { return &MaxDeviation{} }

func (m *MaxDeviation) Name() string { return "max_above_setpoint" }

func (m *MaxDeviation) Observe(s sim.Sample, dt float64) {
	m.max = math.Max(m.max, s.Temperature-s.Setpoint)
}

func (m *MaxDeviation) Value() float64 { return m.max }
func (m *MaxDeviation) Reset()         { m.max = 0 }

// Rankable reports whether v can be compared with other runs' values of the
// named metric. A run that never settled has no settling time to rank.
func Rankable(name string, v float64) bool {
	if math.IsNaN(v) {
		return false
	}
	if name == "settling_time" && v == NotSettled {
		return false
	}
	return true
}

// DefaultSettlingBand is the band used by Default, in °C.
const DefaultSettlingBand = 0.2

// Default returns a fresh set of every metric.
func Default() []sim.Metric {
	return []sim.Metric{
		NewIAE(),
		NewSettling(DefaultSettlingBand),
		NewMaxDeviation(),
		NewEnergy(),
		NewPeakPower(),
		NewControlEffort(),
	}
}
