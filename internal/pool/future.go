package pool

import (
	"context"
	"sync"

	"firestige.xyz/tracekit/internal/core"
)

// Future is the pending result of a submitted task. It is resolved exactly once.
type Future struct {
	taskID string
	done   chan struct{}
	once   sync.Once
	result *core.TaskResult
	err    error
}

func newFuture(taskID string) *Future {
	return &Future{taskID: taskID, done: make(chan struct{})}
}

func (f *Future) resolve(res *core.TaskResult, err error) {
	f.once.Do(func() {
		f.result, f.err = res, err
		close(f.done)
	})
}

// TaskID returns the ID of the task this future belongs to.
func (f *Future) TaskID() string {
	return f.taskID
}

// Done is closed once the future is resolved.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the task finishes or ctx is done. Cancelling ctx does not stop
// the task itself.
func (f *Future) Wait(ctx context.Context) (*core.TaskResult, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
