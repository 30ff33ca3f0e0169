// Package scheduler provides the timer facility behind tcache instances: a
// small Scheduler abstraction over one-shot and recurring callbacks with
// cancellable handles, plus a deterministic manual implementation for tests.
//
// Cache instances never reach for ambient timers; a Scheduler is always
// injected so virtual-time implementations can be swapped in.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dlshle/gommon/async"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// Handle refers to a scheduled callback.
type Handle interface {
	// Cancel stops the callback from firing (again). It reports whether this
	// call is the one that stopped it; false means the callback already fired
	// or was already cancelled.
	Cancel() bool
}

// Scheduler schedules callbacks and acts as the time source for its users.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time

	// Once runs fn a single time after d has elapsed.
	Once(d time.Duration, fn func()) Handle

	// Every runs fn every d until the returned handle is cancelled.
	Every(d time.Duration, fn func()) Handle
}

type Option func(*scheduler)

// WithExecutor dispatches fired callbacks through the given executor (an
// async.AsyncPool, typically) instead of the scheduler's waiting goroutine.
func WithExecutor(executor async.Executor) Option {
	return func(s *scheduler) {
		s.executor = executor
	}
}

type scheduler struct {
	clock    clock.Clock
	executor async.Executor
}

// New returns a Scheduler driven by the given clock. With a
// clock.DefaultClock it schedules in real time; a clock.TestClock makes
// one-shot callbacks fire under test control.
func New(c clock.Clock, opts ...Option) Scheduler {
	s := &scheduler{clock: c}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewDefault returns a real-time Scheduler.
func NewDefault(opts ...Option) Scheduler {
	return New(clock.NewDefaultClock(), opts...)
}

func (s *scheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *scheduler) dispatch(fn func()) {
	if s.executor != nil {
		s.executor.Execute(fn)
		return
	}
	fn()
}

const (
	onceArmed = iota
	onceFired
	onceCancelled
)

type onceHandle struct {
	state int32
	done  chan struct{}
}

func (h *onceHandle) Cancel() bool {
	if atomic.CompareAndSwapInt32(&h.state, onceArmed, onceCancelled) {
		close(h.done)
		return true
	}
	return false
}

func (s *scheduler) Once(d time.Duration, fn func()) Handle {
	h := &onceHandle{done: make(chan struct{})}
	tick := s.clock.TickAfter(d)
	go func() {
		select {
		case <-tick:
			if atomic.CompareAndSwapInt32(&h.state, onceArmed, onceFired) {
				s.dispatch(fn)
			}
		case <-h.done:
		}
	}()
	return h
}

type everyHandle struct {
	ticker ticker.Ticker
	done   chan struct{}
	once   sync.Once
}

func (h *everyHandle) Cancel() bool {
	cancelled := false
	h.once.Do(func() {
		close(h.done)
		h.ticker.Stop()
		cancelled = true
	})
	return cancelled
}

func (s *scheduler) Every(d time.Duration, fn func()) Handle {
	t := ticker.New(d)
	t.Resume()
	h := &everyHandle{ticker: t, done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-t.Ticks():
				s.dispatch(fn)
			case <-h.done:
				return
			}
		}
	}()
	return h
}
