// Package runner executes discovered tests in parallel.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/715d/golit/pkg/lit"
	"github.com/715d/golit/pkg/shtest"
)

// Options configures a run.
type Options struct {
	// Workers is the number of tests run at once. Defaults to the number of CPUs.
	Workers int

	// Timeout is the per-test time limit. It overrides the suite config when set.
	Timeout time.Duration

	// MaxFailures stops scheduling new tests after this many failures.
	// Tests not started are marked SKIPPED. Zero means no limit.
	MaxFailures int

	// Progress is called after each executed test. Calls are serialised.
	Progress func(t *lit.Test)
}

// DefaultWorkers returns the worker count used when none is configured.
func DefaultWorkers() int {
	return goruntime.NumCPU()
}

// Run executes every test without a result. Tests that already carry a
// result, such as excluded ones, are left untouched. Run returns when all
// tests have a result or ctx is done.
func Run(ctx context.Context, tests []*lit.Test, opts Options) error {
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}

	r := &run{opts: opts}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, t := range tests {
		if t.Result != nil {
			continue
		}
		if r.stopped() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if r.stopped() || ctx.Err() != nil {
				return nil
			}
			r.execute(ctx, t)
			return nil
		})
	}
	_ = g.Wait()

	reason := "Skipped because of --max-failures\n"
	if ctx.Err() != nil {
		reason = lit.InterruptedOutput
	}
	for _, t := range tests {
		if t.Result == nil {
			t.Result = lit.NewResult(lit.Skipped, reason)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

type run struct {
	opts     Options
	failures atomic.Int64

	// mu serialises progress reporting.
	mu sync.Mutex
}

func (r *run) stopped() bool {
	return r.opts.MaxFailures > 0 && r.failures.Load() >= int64(r.opts.MaxFailures)
}

func (r *run) execute(ctx context.Context, t *lit.Test) {
	if timeout := r.timeoutFor(t); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res := FormatFor(t.Config).Execute(ctx, t)
	res.Elapsed = time.Since(start)
	t.Result = res

	slog.Debug("test finished", "test", t.FullName(), "code", res.Code, "elapsed", res.Elapsed)

	if res.Code.IsFailure() {
		r.failures.Add(1)
	}

	if r.opts.Progress != nil {
		r.mu.Lock()
		r.opts.Progress(t)
		r.mu.Unlock()
	}
}

func (r *run) timeoutFor(t *lit.Test) time.Duration {
	if r.opts.Timeout > 0 {
		return r.opts.Timeout
	}
	if t.Config != nil && t.Config.Timeout > 0 {
		return time.Duration(t.Config.Timeout) * time.Second
	}
	return 0
}

// FormatFor returns the test format selected by the config.
func FormatFor(cfg *lit.Config) lit.Format {
	if cfg != nil && cfg.Format == lit.FormatExecutable {
		return shtest.Executable{}
	}
	return shtest.ShTest{}
}
