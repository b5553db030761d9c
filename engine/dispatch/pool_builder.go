package dispatch

import (
	"time"

	"github.com/Carmen-Shannon/oxy-ssbo/engine/profiler"
)

// PoolBuilderOption is a functional option for configuring a Pool.
// Use the With* functions to create options.
type PoolBuilderOption func(p *Pool)

// WithWorkers sets the number of worker goroutines. Defaults to runtime.NumCPU().
//
// Parameters:
//   - n: the number of workers (minimum 1)
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithWorkers(n int) PoolBuilderOption {
	return func(p *Pool) {
		p.workers = max(n, 1)
	}
}

// WithMinChunk sets the smallest number of indices handed to one task. Phases with fewer
// indices than this run as a single task. Defaults to DefaultMinChunk.
//
// Parameters:
//   - n: the minimum chunk length (minimum 1)
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithMinChunk(n int) PoolBuilderOption {
	return func(p *Pool) {
		p.minChunk = max(n, 1)
	}
}

// WithQueueSize sets the task queue capacity of the underlying worker pool.
//
// Parameters:
//   - n: the queue capacity
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithQueueSize(n int) PoolBuilderOption {
	return func(p *Pool) {
		p.queueSize = max(n, 1)
	}
}

// WithIdleTimeout sets the idle timeout passed to the underlying worker pool.
//
// Parameters:
//   - d: the idle timeout
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithIdleTimeout(d time.Duration) PoolBuilderOption {
	return func(p *Pool) {
		p.idleTimeout = d
	}
}

// WithProfiler records the duration of every dispatch under its label.
//
// Parameters:
//   - prof: the profiler to report to
//
// Returns:
//   - PoolBuilderOption: option function to apply
func WithProfiler(prof *profiler.Profiler) PoolBuilderOption {
	return func(p *Pool) {
		p.profiler = prof
	}
}
