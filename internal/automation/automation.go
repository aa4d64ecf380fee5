package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/experiment"
	"github.com/san-kum/thermsim/internal/sim"
)

// Scenario is a scripted batch of runs read from YAML.
type Scenario struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Steps       []ScenarioStep `yaml:"steps"`
}

// ScenarioStep starts from a preset (or the default config), applies named
// parameter overrides and optional windows, and runs once.
type ScenarioStep struct {
	Name    string             `yaml:"name"`
	Preset  string             `yaml:"preset"`
	Params  map[string]float64 `yaml:"params"`
	Windows []sim.Window       `yaml:"windows"`
	SaveAs  string             `yaml:"save_as"`
}

type StepResult struct {
	Name   string
	SaveAs string
	Config *config.Config
	Result *sim.Result
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(scenario.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	return &scenario, nil
}

// Config resolves the step into a full configuration.
func (s ScenarioStep) Config() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if s.Preset != "" {
		var err error
		if cfg, err = config.GetPreset(s.Preset); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(s.Params))
	for k := range s.Params {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		if err := cfg.Set(k, s.Params[k]); err != nil {
			return nil, err
		}
	}
	if len(s.Windows) > 0 {
		cfg.Run.Windows = append([]sim.Window(nil), s.Windows...)
	}
	return cfg, nil
}

// RunScenario executes all steps in order and stops at the first failure,
// returning the results so far.
func RunScenario(ctx context.Context, scenario *Scenario, log *slog.Logger) ([]StepResult, error) {
	results := make([]StepResult, 0, len(scenario.Steps))

	for i, step := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		name := step.Name
		if name == "" {
			name = fmt.Sprintf("step%d", i+1)
		}
		log.Info("scenario_step", "scenario", scenario.Name, "step", i+1, "of", len(scenario.Steps), "name", name)

		cfg, err := step.Config()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		params, err := cfg.Params()
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}
		result, err := experiment.New(params).Run(ctx)
		if err != nil {
			return results, fmt.Errorf("step %d run: %w", i+1, err)
		}

		log.Debug("scenario_step_finished", "name", name, "final", result.Final,
			"integral", result.Controller.Integral, "output", result.Controller.LastOutput)
		results = append(results, StepResult{Name: name, SaveAs: step.SaveAs, Config: cfg, Result: result})
	}

	return results, nil
}

// ParameterSweep runs the base config with one parameter stepped linearly
// from Min to Max.
type ParameterSweep struct {
	Base    *config.Config
	Param   string
	Min     float64
	Max     float64
	Steps   int
	Workers int
}

type SweepResult struct {
	Value     float64
	Final     float64
	Overshoot float64
	Metrics   map[string]float64
}

func (s *ParameterSweep) Values() []float64 {
	if s.Steps <= 1 {
		return []float64{s.Min}
	}
	step := (s.Max - s.Min) / float64(s.Steps-1)
	out := make([]float64, s.Steps)
	for i := range out {
		out[i] = s.Min + float64(i)*step
	}
	return out
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, log *slog.Logger) ([]SweepResult, error) {
	values := sweep.Values()
	params := make([]sim.Params, len(values))
	for i, v := range values {
		cfg := sweep.Base.Clone()
		if err := cfg.Set(sweep.Param, v); err != nil {
			return nil, err
		}
		p, err := cfg.Params()
		if err != nil {
			return nil, err
		}
		params[i] = p
	}

	log.Info("sweep_started", "param", sweep.Param, "min", sweep.Min, "max", sweep.Max, "runs", len(values))
	runs, err := sim.NewBatch(experiment.NewSimulator, sweep.Workers).Run(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]SweepResult, len(runs))
	for i, r := range runs {
		results[i] = SweepResult{
			Value:     values[i],
			Final:     r.Final,
			Overshoot: r.Overshoot,
			Metrics:   r.Metrics,
		}
		log.Debug("sweep_run", "param", sweep.Param, "value", values[i], "final", r.Final)
	}
	return results, nil
}

// MonteCarloConfig randomizes disturbances and ambient temperature around a
// base config. Trial i draws its openings with seed Seed+i, so the whole
// batch is reproducible.
type MonteCarloConfig struct {
	Base          *config.Config
	Trials        int
	Seed          int64
	Openings      int
	OpeningLength float64
	AmbientJitter float64
	Workers       int
}

type MonteCarloResult struct {
	Trial     int
	Seed      int64
	Ambient   float64
	Final     float64
	Overshoot float64
	Metrics   map[string]float64
	Windows   []sim.Window
}

// RunMonteCarlo executes the trials concurrently; results keep trial order.
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, log *slog.Logger) ([]MonteCarloResult, error) {
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("monte carlo needs at least one trial, got %d", cfg.Trials)
	}

	base, err := cfg.Base.Params()
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	params := make([]sim.Params, cfg.Trials)
	seeds := make([]int64, cfg.Trials)
	for i := range params {
		p := base
		p.Windows = append([]sim.Window(nil), base.Windows...)
		p.Ambient = base.Ambient + (rng.Float64()*2-1)*cfg.AmbientJitter
		seeds[i] = cfg.Seed + int64(i)
		if cfg.Openings > 0 {
			p.RandomOpenings = &sim.RandomOpenings{Count: cfg.Openings, Length: cfg.OpeningLength, Seed: seeds[i]}
		}
		params[i] = p
	}

	log.Info("montecarlo_started", "trials", cfg.Trials, "seed", cfg.Seed, "openings", cfg.Openings)
	runs, err := sim.NewBatch(experiment.NewSimulator, cfg.Workers).Run(ctx, params)
	if err != nil {
		return nil, err
	}

	results := make([]MonteCarloResult, len(runs))
	for i, r := range runs {
		results[i] = MonteCarloResult{
			Trial:     i,
			Seed:      seeds[i],
			Ambient:   params[i].Ambient,
			Final:     r.Final,
			Overshoot: r.Overshoot,
			Metrics:   r.Metrics,
			Windows:   r.Windows,
		}
	}
	return results, nil
}

type Stats struct {
	Mean, Std, Min, Max float64
}

// MonteCarloStats summarizes one value over all trials.
func MonteCarloStats(results []MonteCarloResult, value func(MonteCarloResult) float64) Stats {
	if len(results) == 0 {
		return Stats{}
	}
	s := Stats{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, r := range results {
		v := value(r)
		s.Mean += v
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	s.Mean /= float64(len(results))
	for _, r := range results {
		d := value(r) - s.Mean
		s.Std += d * d
	}
	s.Std = math.Sqrt(s.Std / float64(len(results)))
	return s
}
