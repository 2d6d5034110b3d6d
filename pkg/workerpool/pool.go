// Package workerpool runs pipeline units of work under a bounded number of
// workers. Units that resolve to the same external id are serialized so the
// merge engine never races its own collision fallback on one subject.
package workerpool

import (
	"context"
	"sync"

	"github.com/Gobusters/ectologger"
	"golang.org/x/sync/errgroup"
)

// Task is one unit of work: a single row or page. Key carries the strongest
// external identity the unit resolves to; tasks sharing a Key never run
// concurrently.
type Task struct {
	Key string
	Run func(ctx context.Context) error
}

// Pool is a bounded worker pool over a shared task channel.
type Pool struct {
	workers int
	logger  ectologger.Logger
	guard   *keyedGuard

	// OnError observes per-task failures. A task failure never aborts the
	// pool; only context cancellation does.
	OnError func(task Task, err error)
}

func New(workers int, logger ectologger.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		logger:  logger,
		guard:   newKeyedGuard(),
	}
}

// Run consumes tasks until the channel closes or ctx is cancelled.
// Cancellation is cooperative: in-flight tasks finish to a terminal outcome;
// no new tasks are dispatched.
func (p *Pool) Run(ctx context.Context, tasks <-chan Task) error {
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < p.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case task, ok := <-tasks:
					if !ok {
						return nil
					}
					p.runTask(gctx, task)
				}
			}
		})
	}

	return g.Wait()
}

func (p *Pool) runTask(ctx context.Context, task Task) {
	if task.Key != "" {
		unlock := p.guard.lock(task.Key)
		defer unlock()
	}

	if err := task.Run(ctx); err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"task_key": task.Key,
		}).Warn("Task failed")
		if p.OnError != nil {
			p.OnError(task, err)
		}
	}
}

// keyedGuard serializes work per key. Entries are reference counted so the map
// does not grow with the total number of subjects seen.
type keyedGuard struct {
	mu      sync.Mutex
	entries map[string]*guardEntry
}

type guardEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedGuard() *keyedGuard {
	return &keyedGuard{entries: make(map[string]*guardEntry)}
}

func (g *keyedGuard) lock(key string) func() {
	g.mu.Lock()
	e, ok := g.entries[key]
	if !ok {
		e = &guardEntry{}
		g.entries[key] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		g.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(g.entries, key)
		}
		g.mu.Unlock()
	}
}
