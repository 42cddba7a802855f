// Package eventloop provides a cooperative FIFO executor.
//
// Callbacks that the host hands back to DataSources (storage reads, bus
// replies, inbound message handlers) are run on a Loop so that, per
// component, they execute one at a time and in the order they were posted.
// Posting never blocks: the queue is unbounded, which lets a callback post
// follow-up work without deadlocking the loop it runs on.
package eventloop

import (
	"log/slog"
	"sync"
)

// Loop runs posted tasks sequentially on a single goroutine.
type Loop struct {
	name string

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	done chan struct{}
}

// New creates a Loop and starts its worker goroutine. The name is only used
// in log records.
func New(name string) *Loop {
	l := &Loop{
		name: name,
		done: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post enqueues fn. It returns false if the loop has been closed, in which
// case fn is never run.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
	return true
}

// Close stops accepting tasks, runs everything already queued, and waits
// for the worker to exit. Close must not be called from a task running on
// the same loop.
func (l *Loop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Signal()
	}
	l.mu.Unlock()
	<-l.done
}

// Done is closed once the worker has exited.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.invoke(task)
	}
}

// invoke runs a single task, keeping the loop alive if it panics.
func (l *Loop) invoke(task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in event loop task", "loop", l.name, "panic", r)
		}
	}()
	task()
}
