package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/crtreco/internal/crt/event"
	"github.com/banshee-data/crtreco/internal/monitoring"
)

// Sink receives reconstructed events. Runner serialises calls to
// WriteEvent.
type Sink interface {
	WriteEvent(ctx context.Context, res *EventResult) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res *EventResult) error

// WriteEvent implements Sink.
func (f SinkFunc) WriteEvent(ctx context.Context, res *EventResult) error {
	return f(ctx, res)
}

// RunStats counts what a Run did.
type RunStats struct {
	Events   int
	Hits     int
	Clusters int
}

// Runner processes batches of events on a bounded number of workers.
type Runner struct {
	proc    *Processor
	workers int
}

// NewRunner creates a Runner. workers below one is treated as one.
func NewRunner(proc *Processor, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{proc: proc, workers: workers}
}

// Run processes events and hands each result to sink. With one worker
// results reach the sink in input order; with more they arrive in
// completion order. The first processing or sink error cancels the
// remaining work and is returned; a cancelled ctx returns its error.
func (r *Runner) Run(ctx context.Context, events []*event.Event, sink Sink) (RunStats, error) {
	var (
		mu    sync.Mutex
		stats RunStats
	)

	parent := ctx
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := r.proc.Process(ev)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if err := sink.WriteEvent(ctx, res); err != nil {
				return fmt.Errorf("write event %s: %w", res.ID(), err)
			}
			stats.Events++
			stats.Hits += res.Summary.NHits
			stats.Clusters += res.Summary.NClusters
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		monitoring.Logf("run aborted after %d events: %v", stats.Events, err)
		return stats, err
	}
	return stats, parent.Err()
}
