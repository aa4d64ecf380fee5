package control

import (
	"errors"
	"fmt"
	"math"
)

// Mode selects the control law.
type Mode string

const (
	ModePositional  Mode = "pid"
	ModeIncremental Mode = "pi-incremental"
	ModeLegacy      Mode = "pid-legacy"
)

// Form selects how the integral and derivative gains are expressed.
type Form string

const (
	// FormTime uses Kp with integral time Ti and derivative time Td (seconds).
	FormTime Form = "time"
	// FormParallel uses independent Kp, Ki and Kd.
	FormParallel Form = "parallel"
)

var ErrInvalidConfig = errors.New("control: invalid controller config")

type Config struct {
	Mode Mode `yaml:"mode" json:"mode"`
	Form Form `yaml:"form" json:"form"`

	Kp float64 `yaml:"kp" json:"kp"`
	Ti float64 `yaml:"ti" json:"ti"`
	Td float64 `yaml:"td" json:"td"`
	Ki float64 `yaml:"ki" json:"ki"`
	Kd float64 `yaml:"kd" json:"kd"`

	// Tp is the sample period in seconds.
	Tp float64 `yaml:"tp" json:"tp"`

	OutMin float64 `yaml:"out_min" json:"out_min"`
	OutMax float64 `yaml:"out_max" json:"out_max"`

	// AntiWindup bounds the integral accumulator to ±OutMax/Kp.
	AntiWindup bool `yaml:"anti_windup" json:"anti_windup"`

	// SkipInitialKick primes the previous error with the first error after
	// a reset, so positional mode has no derivative on its first update.
	SkipInitialKick bool `yaml:"skip_initial_kick,omitempty" json:"skip_initial_kick,omitempty"`
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModePositional
	}
	if c.Form == "" {
		c.Form = FormTime
	}
	return c
}

// Validate reports the first invalid field. A non-positive Tp is not an
// error here: the derivative term is skipped instead.
func (c Config) Validate() error {
	c = c.withDefaults()

	switch c.Mode {
	case ModePositional, ModeIncremental, ModeLegacy:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, c.Mode)
	}
	switch c.Form {
	case FormTime, FormParallel:
	default:
		return fmt.Errorf("%w: unknown gain form %q", ErrInvalidConfig, c.Form)
	}

	fields := []struct {
		name string
		v    float64
	}{
		{"kp", c.Kp}, {"ti", c.Ti}, {"td", c.Td}, {"ki", c.Ki}, {"kd", c.Kd},
		{"tp", c.Tp}, {"out_min", c.OutMin}, {"out_max", c.OutMax},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidConfig, f.name, f.v)
		}
	}
	if c.Ti < 0 {
		return fmt.Errorf("%w: ti must not be negative, got %g", ErrInvalidConfig, c.Ti)
	}
	if c.Td < 0 {
		return fmt.Errorf("%w: td must not be negative, got %g", ErrInvalidConfig, c.Td)
	}
	if c.OutMin > c.OutMax {
		return fmt.Errorf("%w: out_min %g exceeds out_max %g", ErrInvalidConfig, c.OutMin, c.OutMax)
	}
	return nil
}

// PID is a discrete controller. It is not safe for concurrent use; one run
// owns one instance.
type PID struct {
	cfg Config

	integral float64
	prevErr  float64
	prevOut  float64
	started  bool
}

func New(cfg Config) (*PID, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PID{cfg: cfg}, nil
}

func (p *PID) Config() Config { return p.cfg }

// Update returns the clamped actuator output for one sample period.
func (p *PID) Update(setpoint, measurement float64) float64 {
	e := setpoint - measurement

	var u float64
	switch p.cfg.Mode {
	case ModeIncremental:
		u = p.incremental(e)
	case ModeLegacy:
		u = p.positional(e, true)
	default:
		u = p.positional(e, false)
	}

	u = clamp(u, p.cfg.OutMin, p.cfg.OutMax)
	p.prevErr = e
	p.prevOut = u
	return u
}

// positional starts from a zero previous error, so the first derivative sees
// the full step unless SkipInitialKick is set.
func (p *PID) positional(e float64, legacy bool) float64 {
	if !legacy && p.cfg.SkipInitialKick && !p.started {
		p.prevErr = e
	}
	p.started = true

	if p.hasIntegral() {
		if legacy {
			p.integral += p.prevErr
		} else {
			p.integral += e * p.cfg.Tp
		}
		p.limitIntegral()
	}

	var derivative float64
	if p.hasDerivative() {
		derivative = (e - p.prevErr) / p.cfg.Tp
	}

	if p.cfg.Form == FormParallel {
		return p.cfg.Kp*e + p.cfg.Ki*p.integral + p.cfg.Kd*derivative
	}

	out := e
	if p.hasIntegral() {
		out += (p.cfg.Tp / p.cfg.Ti) * p.integral
	}
	if p.hasDerivative() {
		out += (p.cfg.Td / p.cfg.Tp) * derivative
	}
	return p.cfg.Kp * out
}

func (p *PID) incremental(e float64) float64 {
	deltaE := e - p.prevErr

	var delta float64
	if p.cfg.Form == FormParallel {
		delta = p.cfg.Kp * deltaE
		if p.cfg.Tp > 0 {
			delta += p.cfg.Ki * p.cfg.Tp * e
		}
	} else {
		inner := deltaE
		if p.hasIntegral() && p.cfg.Tp > 0 {
			inner += (p.cfg.Tp / p.cfg.Ti) * e
		}
		delta = p.cfg.Kp * inner
	}
	return p.prevOut + delta
}

func (p *PID) hasIntegral() bool {
	if p.cfg.Form == FormParallel {
		return p.cfg.Ki != 0
	}
	return p.cfg.Ti != 0
}

func (p *PID) hasDerivative() bool {
	if p.cfg.Tp <= 0 {
		return false
	}
	if p.cfg.Form == FormParallel {
		return p.cfg.Kd != 0
	}
	return p.cfg.Td != 0
}

func (p *PID) limitIntegral() {
	if !p.cfg.AntiWindup || p.cfg.Kp <= 0 || p.cfg.OutMax <= 0 {
		return
	}
	lim := p.cfg.OutMax / p.cfg.Kp
	p.integral = clamp(p.integral, -lim, lim)
}

// Reset clears integral, previous error and previous output.
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.prevOut = 0
	p.started = false
}

// Diagnostics is a snapshot of the controller state, reported with each run
// result.
type Diagnostics struct {
	Error      float64 `json:"error"`
	Integral   float64 `json:"integral"`
	LastOutput float64 `json:"last_output"`
}

func (p *PID) Diagnostics() Diagnostics {
	return Diagnostics{
		Error:      p.prevErr,
		Integral:   p.integral,
		LastOutput: p.prevOut,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	if v < lo {
		return lo
	}
	return v
}
