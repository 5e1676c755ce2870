// Package workpool provides the bounded worker pool the Step Scheduler
// and Quick Filter use to fan work out across goroutines, each backed by
// its own cloned SAT solver.
package workpool

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Pool runs a fixed number of concurrent jobs, each with an index in
// [0, Size) identifying which worker slot it occupies. Unlike a dynamic
// worker pool, Size never changes for the lifetime of a Run call: the
// Step Scheduler's determinism guarantee (Testable Property P4) depends
// on the same worker count producing the same Step Record sequence.
type Pool struct {
	size int
}

// New creates a Pool with the given fixed size. A size of 0 or less
// defaults to runtime.NumCPU().
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{size: size}
}

// Size returns the pool's fixed worker count.
func (p *Pool) Size() int { return p.size }

// Job is one unit of work submitted to the pool. workerID identifies
// the fixed worker slot running this call, in [0, Pool.Size), so a
// caller can keep one long-lived resource (e.g. a cloned solver) per
// slot instead of allocating one per job.
type Job func(ctx context.Context, workerID int) error

// Run executes jobs across p.Size workers and waits for every job to
// finish or for the first error/ctx cancellation. Jobs are pulled from
// a shared queue, so workers that finish early pick up more jobs rather
// than sitting idle; the fixed worker count (not job count) is what
// participates in the determinism contract, since the MUS Engine and
// Quick Filter assign jobs to workers by completion order rather than
// by pinned index.
func Run(ctx context.Context, p *Pool, jobs []Job) error {
	g, ctx := errgroup.WithContext(ctx)
	queue := make(chan Job)

	g.Go(func() error {
		defer close(queue)
		for _, j := range jobs {
			select {
			case queue <- j:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < p.size; w++ {
		workerID := w
		g.Go(func() error {
			for {
				select {
				case j, ok := <-queue:
					if !ok {
						return nil
					}
					if err := j(ctx, workerID); err != nil {
						return err
					}
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	}

	return g.Wait()
}
