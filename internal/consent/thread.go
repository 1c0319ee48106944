package consent

import (
	"context"
	"errors"
	"sync"
)

// ErrThreadClosed is returned when work is submitted to a stopped QueueThread.
var ErrThreadClosed = errors.New("ui thread closed")

// UIThread runs UI work on whichever goroutine owns the UI. RunSync blocks
// until fn has returned.
type UIThread interface {
	RunSync(ctx context.Context, fn func(ctx context.Context)) error
}

// InlineThread runs work on the calling goroutine.
type InlineThread struct{}

// RunSync implements UIThread.
func (InlineThread) RunSync(ctx context.Context, fn func(ctx context.Context)) error {
	fn(ctx)
	return nil
}

type threadKey struct{}

type uiJob struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	done chan struct{}
}

// QueueThread hands work to a single owner goroutine running Run. Work
// submitted from inside a job already on that goroutine runs in place.
type QueueThread struct {
	jobs    chan uiJob
	stopped chan struct{}
	once    sync.Once
}

// NewQueueThread creates an idle queue. Call Run on the goroutine that owns
// the UI.
func NewQueueThread() *QueueThread {
	return &QueueThread{
		jobs:    make(chan uiJob),
		stopped: make(chan struct{}),
	}
}

// Run executes submitted work until ctx is done or Close is called.
func (q *QueueThread) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopped:
			return
		case job := <-q.jobs:
			job.fn(context.WithValue(job.ctx, threadKey{}, q))
			close(job.done)
		}
	}
}

// Close stops Run. Pending and future RunSync calls fail with ErrThreadClosed.
func (q *QueueThread) Close() {
	q.once.Do(func() { close(q.stopped) })
}

// RunSync implements UIThread.
func (q *QueueThread) RunSync(ctx context.Context, fn func(ctx context.Context)) error {
	if owner, ok := ctx.Value(threadKey{}).(*QueueThread); ok && owner == q {
		fn(ctx)
		return nil
	}

	job := uiJob{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case q.jobs <- job:
	case <-q.stopped:
		return ErrThreadClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once accepted, the job runs to completion.
	<-job.done
	return nil
}
