// Package warmup runs the aggregators' precomputation passes concurrently.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/Veraticus/spice-dash/internal/common"
	"github.com/Veraticus/spice-dash/internal/metrics"
	"github.com/alitto/pond/v2"
	"github.com/jonboulle/clockwork"
)

// Task is one independent initialization pass.
type Task struct {
	Run  func(ctx context.Context) error
	Name string
}

// Result reports how a task finished.
type Result struct {
	Err      error
	Name     string
	Duration time.Duration
}

// Config configures an Orchestrator.
type Config struct {
	Clock  clockwork.Clock
	Logger *slog.Logger
	// OnDone is called after each task finishes, from the worker goroutine.
	OnDone func(Result)
	// Workers bounds how many tasks run at once. Defaults to GOMAXPROCS.
	Workers int
	// BatchWorkers bounds the inner pool used by Batch. Defaults to GOMAXPROCS.
	BatchWorkers int
}

// Validate fills defaults.
func (c *Config) Validate() error {
	if c.Workers < 0 || c.BatchWorkers < 0 {
		return fmt.Errorf("%w: negative worker count", common.ErrInvalidConfig)
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	if c.BatchWorkers == 0 {
		c.BatchWorkers = runtime.GOMAXPROCS(0)
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	c.Logger = common.OrDefault(c.Logger)
	return nil
}

// Orchestrator owns two bounded pools: one for top-level tasks and one for
// the batched loops those tasks run. Batch work never shares the task pool,
// so a task waiting on its batches cannot starve them of workers.
type Orchestrator struct {
	tasks pond.Pool
	batch pond.Pool
	cfg   Config
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		cfg:   cfg,
		tasks: pond.NewPool(cfg.Workers),
		batch: pond.NewPool(cfg.BatchWorkers),
	}, nil
}

// BatchPool is the pool aggregators hand to Batch.
func (o *Orchestrator) BatchPool() pond.Pool {
	return o.batch
}

// Close stops both pools after running queued work.
func (o *Orchestrator) Close() {
	o.tasks.StopAndWait()
	o.batch.StopAndWait()
}

// Run submits every task and blocks until all of them finish. A failing or
// panicking task does not stop the others; its error is in its Result.
func (o *Orchestrator) Run(ctx context.Context, tasks ...Task) []Result {
	results := make([]Result, len(tasks))
	group := o.tasks.NewGroup()

	for i, task := range tasks {
		group.Submit(func() {
			start := o.cfg.Clock.Now()
			err := runIsolated(ctx, task)
			res := Result{Name: task.Name, Err: err, Duration: o.cfg.Clock.Since(start)}
			results[i] = res

			status := "ok"
			if err != nil {
				status = "error"
				o.cfg.Logger.Error("warm-up task failed", "task", task.Name, "error", err, "duration", res.Duration)
			} else {
				o.cfg.Logger.Info("warm-up task finished", "task", task.Name, "duration", res.Duration.Round(time.Millisecond))
			}
			metrics.WarmupDuration.WithLabelValues(task.Name, status).Observe(res.Duration.Seconds())
			if o.cfg.OnDone != nil {
				o.cfg.OnDone(res)
			}
		})
	}
	_ = group.Wait()
	return results
}

func runIsolated(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", task.Name, r)
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return task.Run(ctx)
}

// Join aggregates the failures of results, or returns nil when all succeeded.
func Join(results []Result) error {
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	return errors.Join(errs...)
}

// BatchSize is the number of items Batch runs concurrently per round.
func BatchSize() int {
	return max(runtime.GOMAXPROCS(0), 1)
}

// Batch runs fn for every item on pool, BatchSize items per round, and
// returns the joined errors of all items. Later rounds are skipped once ctx
// is done. A nil pool runs items sequentially on the caller.
func Batch[T any](ctx context.Context, pool pond.Pool, items []T, fn func(context.Context, T) error) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}
	}

	size := BatchSize()
	for start := 0; start < len(items); start += size {
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		end := min(start+size, len(items))
		if pool == nil {
			for _, item := range items[start:end] {
				record(fn(ctx, item))
			}
			continue
		}
		group := pool.NewGroup()
		for _, item := range items[start:end] {
			group.Submit(func() {
				record(fn(ctx, item))
			})
		}
		if err := group.Wait(); err != nil {
			record(err)
		}
	}
	return errors.Join(errs...)
}
