package dynamo

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool is a fixed-size set of workers. A Run over n indices uses
// min(n, Size) workers, each identified by a worker index in [0, Size), so
// callers can keep per-worker scratch state such as robot model clones.
type Pool struct {
	workers int
}

func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers}
}

func (p *Pool) Size() int { return p.workers }

// Run calls fn for every index in [0, n) and blocks until all calls
// returned. The first non-nil error is returned; remaining indices are
// still drained so no partial factorization is left behind.
func (p *Pool) Run(n int, fn func(worker, i int) error) error {
	if n <= 0 {
		return nil
	}
	workers := p.workers
	if n < workers {
		workers = n
	}
	if workers == 1 {
		var first error
		for i := 0; i < n; i++ {
			if err := fn(0, i); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var next atomic.Int64
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		worker := w
		g.Go(func() error {
			var first error
			for {
				i := int(next.Add(1) - 1)
				if i >= n {
					return first
				}
				if err := fn(worker, i); err != nil && first == nil {
					first = err
				}
			}
		})
	}
	return g.Wait()
}
