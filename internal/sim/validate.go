package sim

import "math"

func validate(p *Params) error {
	scalars := []struct {
		name string
		v    float64
	}{
		{"setpoint", p.Setpoint},
		{"initial", p.Initial},
		{"ambient", p.Ambient},
		{"dt", p.Dt},
		{"duration", p.Duration},
	}
	for _, f := range scalars {
		if !finite(f.v) {
			return configErr(f.name, "must be finite, got %v", f.v)
		}
	}

	if p.Dt <= 0 {
		return configErr("dt", "must be positive, got %g", p.Dt)
	}
	if p.Duration <= 0 {
		return configErr("duration", "must be positive, got %g", p.Duration)
	}
	if p.Duration < p.Dt {
		return configErr("duration", "%g is shorter than one timestep %g", p.Duration, p.Dt)
	}
	if n := p.Duration / p.Dt; n > MaxSteps {
		return configErr("duration", "%.0f steps exceeds the limit of %d", n, MaxSteps)
	}

	if err := p.Model.Validate(); err != nil {
		return &ConfigError{Field: "model", Reason: err.Error(), Err: err}
	}

	for i, w := range p.Windows {
		if !finite(w.Start) || !finite(w.End) {
			return configErr("windows", "window %d is not finite", i)
		}
		if w.Start > w.End {
			return configErr("windows", "window %d starts at %g after it ends at %g", i, w.Start, w.End)
		}
	}
	for i, s := range p.Schedule {
		if !finite(s.At) || !finite(s.Setpoint) {
			return configErr("schedule", "step %d is not finite", i)
		}
	}
	if ro := p.RandomOpenings; ro != nil {
		if ro.Count < 0 {
			return configErr("random_openings", "count must be >= 0, got %d", ro.Count)
		}
		if ro.Length < 0 || !finite(ro.Length) {
			return configErr("random_openings", "length must be >= 0, got %g", ro.Length)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
