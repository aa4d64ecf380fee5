// Package optim tunes controller gains by exhaustive search.
package optim

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"

	"github.com/san-kum/thermsim/internal/config"
	"github.com/san-kum/thermsim/internal/experiment"
	"github.com/san-kum/thermsim/internal/metrics"
)

var ErrNoCandidate = errors.New("optim: no candidate produced the metric")

// BuildFunc turns one grid point into a runnable experiment.
type BuildFunc func(params map[string]float64) (*experiment.Experiment, error)

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) != len(ranges) {
		return nil, fmt.Errorf("optim: %d params but %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("optim: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Linspace returns n evenly spaced values from lo to hi inclusive.
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 1 {
		return []float64{lo}
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = lo + (hi-lo)*float64(i)/float64(n-1)
	}
	return out
}

// Size is the number of grid points.
func (g *GridSearch) Size() int {
	n := 1
	for _, r := range g.ranges {
		n *= len(r)
	}
	return n
}

// FromConfig builds each grid point by applying the params to a copy of base.
func FromConfig(base *config.Config) BuildFunc {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base.Clone()
		for name, v := range params {
			if err := cfg.Set(name, v); err != nil {
				return nil, err
			}
		}
		p, err := cfg.Params()
		if err != nil {
			return nil, err
		}
		return experiment.New(p), nil
	}
}

// Search returns the grid point with the lowest value of metricName. Points
// whose run fails or whose value cannot be ranked are skipped; build errors
// and cancellation abort.
func (g *GridSearch) Search(ctx context.Context, build BuildFunc, metricName string) (map[string]float64, float64, error) {
	best := math.Inf(1)
	var bestParams map[string]float64

	err := g.searchRecursive(ctx, 0, make(map[string]float64), build, metricName, &best, &bestParams)
	if err != nil {
		return nil, 0, err
	}
	if bestParams == nil {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoCandidate, metricName)
	}
	return bestParams, best, nil
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	build BuildFunc,
	metricName string,
	best *float64,
	bestParams *map[string]float64,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		exp, err := build(current)
		if err != nil {
			return err
		}

		result, err := exp.Run(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return nil
		}

		val, ok := result.Metrics[metricName]
		if ok && metrics.Rankable(metricName, val) && val < *best {
			*best = val
			*bestParams = maps.Clone(current)
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		next := maps.Clone(current)
		next[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, next, build, metricName, best, bestParams); err != nil {
			return err
		}
	}
	return nil
}
