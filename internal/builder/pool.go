package builder

import (
	"context"
	"time"

	"github.com/radixdlt/mtps/pkg/crypto"
	"golang.org/x/sync/errgroup"
)

// Pool builds the items of one block in parallel.
type Pool struct {
	kh      crypto.KeyHandler
	workers int
}

// NewPool creates a pool running at most workers builds at a time.
func NewPool(kh crypto.KeyHandler, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{kh: kh, workers: workers}
}

// BuildAll builds every item in parallel, then hands them to emit one by
// one in the order of items. BuildAll returns after every item was emitted,
// or on the first error.
func (p *Pool) BuildAll(ctx context.Context, items []*Item, emit func(*Item) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, it := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			start := time.Now()
			if _, err := it.Build(p.kh); err != nil {
				return err
			}
			prometheusBuilderBuild.Observe(time.Since(start).Seconds())
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, it := range items {
		if err := emit(it); err != nil {
			return err
		}
	}
	return nil
}
