package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Batch runs independent parameter sets concurrently. Each run gets its own
// Simulator from newSim so metric state is never shared.
type Batch struct {
	newSim  func() *Simulator
	workers int
}

func NewBatch(newSim func() *Simulator, workers int) *Batch {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if newSim == nil {
		newSim = New
	}
	return &Batch{newSim: newSim, workers: workers}
}

// Run returns results in the order of params. The first failing run cancels
// the runs not yet started.
func (b *Batch) Run(ctx context.Context, params []Params) ([]*Result, error) {
	results := make([]*Result, len(params))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)

	for i := range params {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := b.newSim().Run(params[i])
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
