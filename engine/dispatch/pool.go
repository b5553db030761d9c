// Package dispatch runs spatial protocol phases across a worker pool.
package dispatch

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"go.uber.org/zap"

	"github.com/Carmen-Shannon/oxy-ssbo/common"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/errors"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/logger"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/profiler"
	"github.com/Carmen-Shannon/oxy-ssbo/engine/spatial"
)

// DefaultMinChunk is the default smallest number of indices one task processes.
const DefaultMinChunk = 256

// Pool is a spatial.Executor that splits a phase into contiguous index chunks and runs them
// on a worker pool. Dispatch returns only after every submitted chunk has finished.
type Pool struct {
	pool        worker.DynamicWorkerPool
	workers     int
	queueSize   int
	minChunk    int
	idleTimeout time.Duration
	profiler    *profiler.Profiler
	log         *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ spatial.Executor = (*Pool)(nil)

// NewPool creates a Pool and starts its workers.
//
// Parameters:
//   - options: functional options
//
// Returns:
//   - *Pool: the pool, to be released with Close
func NewPool(options ...PoolBuilderOption) *Pool {
	p := &Pool{
		workers:     runtime.NumCPU(),
		minChunk:    DefaultMinChunk,
		idleTimeout: time.Second,
		log:         logger.Named("dispatch"),
	}
	for _, option := range options {
		option(p)
	}
	if p.queueSize == 0 {
		p.queueSize = p.workers * 4
	}

	p.pool = worker.NewDynamicWorkerPool(p.workers, p.queueSize, p.idleTimeout)
	return p
}

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// chunks splits n indices into contiguous [lo, hi) ranges, about four per worker and none
// shorter than minChunk except the last.
func (p *Pool) chunks(n int) [][2]int {
	size := max(int(common.CeilDiv(uint64(n), uint64(p.workers*4))), p.minChunk)
	out := make([][2]int, 0, common.CeilDiv(uint64(n), uint64(size)))
	for lo := 0; lo < n; lo += size {
		out = append(out, [2]int{lo, min(lo+size, n)})
	}
	return out
}

// Dispatch runs kernel for every index in [0, n) and waits for all of them. A panicking
// kernel is recovered and reported as an error; the first one observed is returned after the
// barrier. Cancelling ctx stops submission of further chunks.
//
// Parameters:
//   - ctx: cancels submission
//   - label: the phase name used for logging and profiling
//   - n: the number of indices
//   - kernel: the per-index function, must be safe to call concurrently for distinct indices
//
// Returns:
//   - error: ctx.Err() if cancelled, a pipeline error if a kernel panicked, or a
//     configuration error if the pool is closed
func (p *Pool) Dispatch(ctx context.Context, label string, n int, kernel func(i int)) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errors.Configuration(errors.PhasePipeline, "dispatch %q on a closed pool", label)
	}
	if n <= 0 {
		return ctx.Err()
	}
	if p.profiler != nil {
		defer p.profiler.Time(label)()
	}

	chunks := p.chunks(n)
	p.log.Debug("dispatch", zap.String("label", label), zap.Int("n", n), zap.Int("chunks", len(chunks)))

	var (
		wg       sync.WaitGroup
		errMu    sync.Mutex
		firstErr error
	)
	record := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
	}

	for id, c := range chunks {
		if err := ctx.Err(); err != nil {
			record(err)
			break
		}
		wg.Add(1)
		p.pool.SubmitTask(worker.Task{
			ID:      id,
			Payload: c,
			Do: func() (result any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						err = errors.New(errors.PhasePipeline, errors.KindInvalidInput).
							Path(label).
							Value(r).
							Detail("kernel panicked in chunk [%d, %d): %v", c[0], c[1], r).
							Build()
						record(err)
					}
				}()
				for i := c[0]; i < c[1]; i++ {
					kernel(i)
				}
				return nil, nil
			},
		})
	}
	wg.Wait()

	if firstErr != nil {
		p.log.Debug("dispatch failed", zap.String("label", label), zap.Error(firstErr))
	}
	return firstErr
}

// Close stops the workers. Dispatch on a closed pool returns an error.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.pool.Stop()
}

// String describes the pool for logs.
func (p *Pool) String() string {
	return fmt.Sprintf("dispatch.Pool(workers=%d, minChunk=%d)", p.workers, p.minChunk)
}
