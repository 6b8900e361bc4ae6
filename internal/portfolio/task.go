package portfolio

import (
	"context"
	"time"
)

// Task runs a function periodically until cancelled.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Every runs fn immediately and then on every tick of interval until ctx is
// done or the task is cancelled.
func Every(ctx context.Context, interval time.Duration, fn func(context.Context)) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		fn(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
	return t
}

// Cancel stops the task and waits for a running fn to return.
func (t *Task) Cancel() {
	t.cancel()
	<-t.done
}
