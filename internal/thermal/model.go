// Package thermal describes a lumped-capacitance thermal plant: the media
// that store heat, the surfaces and air paths that lose it, and the actuator
// that adds or removes it.
package thermal

import (
	"errors"
	"fmt"
	"math"
)

const (
	Gravity = 9.81

	AirDensity        = 1.2    // kg/m³
	AirSpecificHeat   = 1005.0 // J/(kg·K)
	WaterDensity      = 1000.0 // kg/m³
	WaterSpecificHeat = 4186.0 // J/(kg·K)

	// DefaultOpenFactor scales an aperture surface while it is open.
	DefaultOpenFactor = 5.0

	kelvinOffset = 273.15
)

var ErrInvalidModel = errors.New("thermal: invalid model")

// Medium is one heat-storing mass. Mass wins over Volume×Density when set.
type Medium struct {
	Name         string  `yaml:"name" json:"name"`
	Volume       float64 `yaml:"volume,omitempty" json:"volume,omitempty"`
	Density      float64 `yaml:"density,omitempty" json:"density,omitempty"`
	Mass         float64 `yaml:"mass,omitempty" json:"mass,omitempty"`
	SpecificHeat float64 `yaml:"specific_heat" json:"specific_heat"`
}

func (m Medium) Capacity() float64 {
	mass := m.Mass
	if mass == 0 {
		mass = m.Volume * m.Density
	}
	return mass * m.SpecificHeat
}

// Surface is a conductive loss path. When U is zero it is derived from
// Conductivity/Thickness.
type Surface struct {
	Name         string  `yaml:"name" json:"name"`
	U            float64 `yaml:"u,omitempty" json:"u,omitempty"`
	Area         float64 `yaml:"area" json:"area"`
	Conductivity float64 `yaml:"conductivity,omitempty" json:"conductivity,omitempty"`
	Thickness    float64 `yaml:"thickness,omitempty" json:"thickness,omitempty"`

	// Aperture surfaces (windows, doors, lids) lose OpenFactor times more
	// heat while the disturbance flag is active.
	Aperture   bool    `yaml:"aperture,omitempty" json:"aperture,omitempty"`
	OpenFactor float64 `yaml:"open_factor,omitempty" json:"open_factor,omitempty"`
}

func (s Surface) Coefficient() float64 {
	u := s.U
	if u == 0 && s.Conductivity > 0 && s.Thickness > 0 {
		u = s.Conductivity / s.Thickness
	}
	return u * s.Area
}

func (s Surface) openFactor() float64 {
	if s.OpenFactor > 0 {
		return s.OpenFactor
	}
	return DefaultOpenFactor
}

// Opening is a buoyancy-driven air exchange path active only while open.
// Its loss is velocity·Area·ρ·c·ΔT; an Area of 1 m² gives velocity·ρ·c·ΔT.
type Opening struct {
	Height float64 `yaml:"height" json:"height"`
	Area   float64 `yaml:"area" json:"area"`
}

type Model struct {
	Name     string    `yaml:"name" json:"name"`
	Media    []Medium  `yaml:"media" json:"media"`
	Surfaces []Surface `yaml:"surfaces" json:"surfaces"`

	// VentilationFlow is a constant air exchange in m³/s.
	VentilationFlow float64  `yaml:"ventilation_flow,omitempty" json:"ventilation_flow,omitempty"`
	Opening         *Opening `yaml:"opening,omitempty" json:"opening,omitempty"`

	// HeatGain is a constant internal load in W, e.g. occupants.
	HeatGain float64 `yaml:"heat_gain,omitempty" json:"heat_gain,omitempty"`

	MaxPower float64 `yaml:"max_power" json:"max_power"`
	// Cooling allows negative actuator output down to -MaxPower.
	Cooling bool `yaml:"cooling,omitempty" json:"cooling,omitempty"`
}

// Capacitance is the summed heat capacity of all media in J/K.
func (m *Model) Capacitance() float64 {
	total := 0.0
	for _, md := range m.Media {
		total += md.Capacity()
	}
	return total
}

// UA is the closed-aperture conductive coefficient in W/K.
func (m *Model) UA() float64 {
	total := 0.0
	for _, s := range m.Surfaces {
		total += s.Coefficient()
	}
	return total
}

// ActuatorBounds returns the physical output range of the actuator.
func (m *Model) ActuatorBounds() (lo, hi float64) {
	if m.Cooling {
		return -m.MaxPower, m.MaxPower
	}
	return 0, m.MaxPower
}

// Loss splits the heat flowing out of the plant, in W. Negative values are
// heat flowing in.
type Loss struct {
	Conduction  float64
	Ventilation float64
	Airflow     float64
}

func (l Loss) Total() float64 {
	return l.Conduction + l.Ventilation + l.Airflow
}

// HeatLoss evaluates every loss term at inside temperature tIn and ambient
// tAmb (°C).
func (m *Model) HeatLoss(tIn, tAmb float64, open bool) Loss {
	dT := tIn - tAmb

	var l Loss
	for _, s := range m.Surfaces {
		ua := s.Coefficient()
		if open && s.Aperture {
			ua *= s.openFactor()
		}
		l.Conduction += ua * dT
	}

	if m.VentilationFlow > 0 {
		l.Ventilation = m.VentilationFlow * AirDensity * AirSpecificHeat * dT
	}

	if open && m.Opening != nil {
		v := BuoyancyVelocity(m.Opening.Height, dT, tAmb)
		l.Airflow = v * m.Opening.Area * AirDensity * AirSpecificHeat * dT
	}
	return l
}

// BuoyancyVelocity estimates the stack-effect air speed through an opening of
// height h in m/s. It returns 0 when the ambient temperature is at or below
// absolute zero.
func BuoyancyVelocity(h, dT, tAmb float64) float64 {
	kelvin := tAmb + kelvinOffset
	if kelvin <= 0 || h <= 0 {
		return 0
	}
	return 0.5 * math.Sqrt(Gravity*h*math.Abs(dT)/kelvin)
}

func (m *Model) Validate() error {
	if len(m.Media) == 0 {
		return fmt.Errorf("%w: no media", ErrInvalidModel)
	}
	for _, md := range m.Media {
		if md.Capacity() < 0 || !finite(md.Capacity()) {
			return fmt.Errorf("%w: medium %q has invalid capacity %g", ErrInvalidModel, md.Name, md.Capacity())
		}
	}
	if c := m.Capacitance(); c <= 0 || !finite(c) {
		return fmt.Errorf("%w: capacitance must be positive, got %g", ErrInvalidModel, c)
	}
	for _, s := range m.Surfaces {
		if s.U < 0 || s.Area < 0 || s.Conductivity < 0 || s.Thickness < 0 || !finite(s.Coefficient()) {
			return fmt.Errorf("%w: surface %q has a negative or non-finite coefficient", ErrInvalidModel, s.Name)
		}
		if s.OpenFactor < 0 {
			return fmt.Errorf("%w: surface %q has negative open factor", ErrInvalidModel, s.Name)
		}
	}
	if m.VentilationFlow < 0 || !finite(m.VentilationFlow) {
		return fmt.Errorf("%w: ventilation flow must be >= 0, got %g", ErrInvalidModel, m.VentilationFlow)
	}
	if m.Opening != nil && (m.Opening.Height < 0 || m.Opening.Area < 0) {
		return fmt.Errorf("%w: opening dimensions must be >= 0", ErrInvalidModel)
	}
	if !finite(m.HeatGain) {
		return fmt.Errorf("%w: heat gain must be finite", ErrInvalidModel)
	}
	if m.MaxPower < 0 || !finite(m.MaxPower) {
		return fmt.Errorf("%w: max power must be >= 0, got %g", ErrInvalidModel, m.MaxPower)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
