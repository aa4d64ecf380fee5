// Package experiment wires a parameter set, a fresh simulator and its metrics
// into a single run.
package experiment

import (
	"context"

	"github.com/san-kum/thermsim/internal/metrics"
	"github.com/san-kum/thermsim/internal/sim"
)

type Experiment struct {
	params  sim.Params
	metrics []sim.Metric
}

// New uses metrics.Default unless Setup supplies others.
func New(p sim.Params) *Experiment {
	return &Experiment{params: p, metrics: metrics.Default()}
}

func (e *Experiment) Setup(ms []sim.Metric) {
	e.metrics = ms
}

func (e *Experiment) Params() sim.Params { return e.params }

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := sim.New()
	for _, m := range e.metrics {
		s.AddMetric(m)
	}
	return s.Run(e.params)
}

// Run is the core entry point used by every front end.
func Run(p sim.Params) (*sim.Result, error) {
	return New(p).Run(context.Background())
}

// NewSimulator returns a simulator carrying a fresh default metric set, for
// use with sim.NewBatch.
func NewSimulator() *sim.Simulator {
	s := sim.New()
	for _, m := range metrics.Default() {
		s.AddMetric(m)
	}
	return s
}
