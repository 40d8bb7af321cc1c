// Package executor provides the bounded background worker pool that the
// coordinator dispatches its remote work onto (tone analysis, suggestion
// requests, communicator observe calls), keeping the coordinator's own
// goroutine free to keep reading host input (§5). The analytics queue
// flushes on its own goroutines, not through this pool.
package executor

import (
	"context"
	"fmt"

	"github.com/panjf2000/ants/v2"

	"github.com/unsaid-inc/tonecoach-core/log"
)

// DefaultPoolSize bounds how many background jobs can run concurrently.
// A software keyboard extension runs under a tight memory ceiling, so this
// stays small regardless of host CPU count.
const DefaultPoolSize = 8

// Pool runs fire-and-forget jobs off the caller's goroutine. The zero value
// is not usable; construct one with New.
type Pool struct {
	inner *ants.Pool
}

// New creates a Pool with size workers. size <= 0 uses DefaultPoolSize.
func New(size int) (*Pool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	inner, err := ants.NewPool(size, ants.WithNonblocking(false))
	if err != nil {
		return nil, fmt.Errorf("executor: create pool: %w", err)
	}
	return &Pool{inner: inner}, nil
}

// Submit runs fn on a pool worker. A panic inside fn is recovered and
// logged rather than crashing the host process — a misbehaving analytics
// flush must never take down the keyboard.
func (p *Pool) Submit(ctx context.Context, label string, fn func(ctx context.Context)) error {
	return p.inner.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorfContext(ctx, "executor job %q panicked: %v", label, r)
			}
		}()
		fn(ctx)
	})
}

// Running reports the number of jobs currently executing.
func (p *Pool) Running() int {
	return p.inner.Running()
}

// Release tears the pool down; it does not wait for jobs that are already
// running. The coordinator calls this from its own shutdown path.
func (p *Pool) Release() {
	p.inner.Release()
}
