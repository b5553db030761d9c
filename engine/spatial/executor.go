package spatial

import "context"

// Executor runs one phase of the protocol: kernel is invoked once for every index in [0, n),
// in any order and possibly in parallel. Dispatch must not return until every invocation has
// finished, which is the barrier between phases.
type Executor interface {
	Dispatch(ctx context.Context, label string, n int, kernel func(i int)) error
}

// Sequential runs kernels one index at a time on the calling goroutine.
type Sequential struct{}

var _ Executor = Sequential{}

// Dispatch runs kernel for every index in order, checking ctx between blocks of indices.
func (Sequential) Dispatch(ctx context.Context, _ string, n int, kernel func(i int)) error {
	for i := range n {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		kernel(i)
	}
	return nil
}
