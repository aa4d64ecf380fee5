package sim

import (
	"math"
	"math/rand"
	"sort"

	"github.com/san-kum/thermsim/internal/control"
)

// MaxSteps bounds a single run.
const MaxSteps = 5_000_000

type Simulator struct {
	metrics []Metric
}

func New() *Simulator {
	return &Simulator{metrics: make([]Metric, 0)}
}

func (s *Simulator) AddMetric(m Metric) { s.metrics = append(s.metrics, m) }

// Run is New().Run(p) without metrics.
func Run(p Params) (*Result, error) {
	return New().Run(p)
}

// Run integrates the heat balance with explicit Euler steps of p.Dt. It owns
// a fresh controller and shares nothing with other runs.
func (s *Simulator) Run(p Params) (*Result, error) {
	if err := validate(&p); err != nil {
		return nil, err
	}

	pid, err := control.New(controllerConfig(&p))
	if err != nil {
		return nil, &ConfigError{Field: "controller", Reason: err.Error(), Err: err}
	}

	windows := disturbanceWindows(&p)
	steps := stepCount(p.Duration, p.Dt)
	capacitance := p.Model.Capacitance()
	lo, hi := p.Model.ActuatorBounds()

	result := &Result{
		Samples: make([]Sample, 0, steps),
		Metrics: make(map[string]float64),
		Windows: windows,
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	temp := p.Initial
	for i := 0; i < steps; i++ {
		t := float64(i) * p.Dt
		open := p.Open || inAny(windows, t)
		sp := p.SetpointAt(t)

		u := clamp(pid.Update(sp, temp), lo, hi)
		loss := p.Model.HeatLoss(temp, p.Ambient, open).Total()

		sample := Sample{
			Time:        t,
			Temperature: temp,
			Setpoint:    sp,
			Power:       u,
			Loss:        loss,
			Open:        open,
		}
		for _, m := range s.metrics {
			m.Observe(sample, p.Dt)
		}
		result.Samples = append(result.Samples, sample)

		temp += (u - loss + p.Model.HeatGain) / capacitance * p.Dt
	}

	result.Final = temp
	result.Controller = pid.Diagnostics()
	result.Overshoot = overshoot(result.Samples, p.Setpoint)

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// controllerConfig ties the controller to the run's timestep and, when no
// bounds are given, to the actuator's physical range.
func controllerConfig(p *Params) control.Config {
	cfg := p.Controller
	cfg.Tp = p.Dt
	if cfg.OutMin == 0 && cfg.OutMax == 0 {
		cfg.OutMin, cfg.OutMax = p.Model.ActuatorBounds()
	}
	return cfg
}

func stepCount(duration, dt float64) int {
	return int(math.Floor(duration/dt + 1e-9))
}

func disturbanceWindows(p *Params) []Window {
	windows := append([]Window(nil), p.Windows...)
	if ro := p.RandomOpenings; ro != nil && ro.Count > 0 {
		windows = append(windows, drawOpenings(*ro, p.Duration)...)
	}
	sort.SliceStable(windows, func(i, j int) bool { return windows[i].Start < windows[j].Start })
	return windows
}

func drawOpenings(ro RandomOpenings, duration float64) []Window {
	rng := rand.New(rand.NewSource(ro.Seed))
	span := math.Max(duration-ro.Length, 0)

	out := make([]Window, ro.Count)
	for i := range out {
		start := rng.Float64() * span
		out[i] = Window{Start: start, End: start + ro.Length}
	}
	return out
}

func inAny(windows []Window, t float64) bool {
	for _, w := range windows {
		if w.Contains(t) {
			return true
		}
	}
	return false
}

// overshoot is the peak excursion above setpoint in percent. It is 0 for a
// zero setpoint.
func overshoot(samples []Sample, setpoint float64) float64 {
	if setpoint == 0 || len(samples) == 0 {
		return 0
	}
	peak := math.Inf(-1)
	for _, s := range samples {
		peak = math.Max(peak, s.Temperature)
	}
	return (peak - setpoint) / setpoint * 100
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
