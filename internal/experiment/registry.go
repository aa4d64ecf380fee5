package experiment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/san-kum/thermsim/internal/metrics"
	"github.com/san-kum/thermsim/internal/sim"
	"github.com/san-kum/thermsim/internal/thermal"
)

var (
	ErrUnknownModel  = errors.New("experiment: unknown model")
	ErrUnknownMetric = errors.New("experiment: unknown metric")
)

// Registry maps names to plant models and metric constructors.
type Registry struct {
	models  map[string]func() thermal.Model
	metrics map[string]func() sim.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		models:  make(map[string]func() thermal.Model),
		metrics: make(map[string]func() sim.Metric),
	}

	r.models["room"] = func() thermal.Model {
		m := thermal.Room(4, 4, 2.5)
		m.MaxPower = 2000
		return m
	}
	r.models["enclosure"] = func() thermal.Model {
		return thermal.Model{
			Name:     "enclosure",
			Media:    []thermal.Medium{thermal.Air(0.25)},
			Surfaces: []thermal.Surface{{Name: "walls", U: 1.6, Area: 2.5}},
			MaxPower: 2000,
		}
	}
	r.models["aquarium"] = func() thermal.Model {
		return thermal.Model{
			Name:  "aquarium",
			Media: []thermal.Medium{thermal.WaterTank(200, 80, 60)},
			Surfaces: []thermal.Surface{
				{Name: "glass", U: 4, Area: 1},
				{Name: "lid", U: 1, Area: 1, Aperture: true},
			},
			MaxPower: 300,
		}
	}
	r.models["office"] = func() thermal.Model {
		m := thermal.Room(5, 4, 3)
		m.Name = "office"
		m.VentilationFlow = 0.02
		m.HeatGain = 400
		m.Opening = &thermal.Opening{Height: 1.2, Area: 0.6}
		m.MaxPower = 3500
		m.Cooling = true
		return m
	}

	r.metrics["iae"] = func() sim.Metric { return metrics.NewIAE() }
	r.metrics["settling_time"] = func() sim.Metric { return metrics.NewSettling(metrics.DefaultSettlingBand) }
	r.metrics["max_above_setpoint"] = func() sim.Metric { return metrics.NewMaxDeviation() }
	r.metrics["energy_kwh"] = func() sim.Metric { return metrics.NewEnergy() }
	r.metrics["peak_power"] = func() sim.Metric { return metrics.NewPeakPower() }
	r.metrics["mean_power"] = func() sim.Metric { return metrics.NewControlEffort() }

	return r
}

func (r *Registry) GetModel(name string) (thermal.Model, error) {
	fn, ok := r.models[name]
	if !ok {
		return thermal.Model{}, fmt.Errorf("%w: %s", ErrUnknownModel, name)
	}
	return fn(), nil
}

func (r *Registry) GetMetric(name string) (sim.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	return fn(), nil
}

func (r *Registry) ListModels() []string {
	return sortedKeys(r.models)
}

func (r *Registry) ListMetrics() []string {
	return sortedKeys(r.metrics)
}

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
