package tick

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRate is the server tick rate (ticks per second).
const DefaultRate = 20

// Loop is the single-threaded tick loop. Exactly one goroutine drives it,
// either Start or Advance; all tick-loop callbacks run on that goroutine.
type Loop struct {
	rate int

	tick atomic.Uint64 // ticks completed

	mu       sync.Mutex
	queued   []func() // RunOnTickLoop
	incoming []*task  // scheduled since the last tick

	tasks []*task // owned by the loop goroutine

	offload  func(fn func())
	inflight sync.WaitGroup

	stopCh   chan struct{}
	stopOnce sync.Once
}

// Option configures a Loop.
type Option func(*Loop)

// WithRate sets ticks per second for Start.
func WithRate(rate int) Option {
	return func(l *Loop) {
		if rate > 0 {
			l.rate = rate
		}
	}
}

// WithOffload replaces the off-loop executor. The default starts one goroutine
// per task (an unbounded pool).
func WithOffload(run func(fn func())) Option {
	return func(l *Loop) {
		l.offload = run
	}
}

// NewLoop creates a stopped tick loop.
func NewLoop(opts ...Option) *Loop {
	l := &Loop{
		rate:   DefaultRate,
		stopCh: make(chan struct{}),
	}
	l.offload = l.spawn
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rate returns ticks per second.
func (l *Loop) Rate() int {
	return l.rate
}

// Tick returns the number of ticks run so far.
func (l *Loop) Tick() uint64 {
	return l.tick.Load()
}

// Start runs the loop at the configured rate until ctx is canceled or Stop is
// called (blocks).
func (l *Loop) Start(ctx context.Context) error {
	interval := time.Second / time.Duration(l.rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("tick loop started", "rate", l.rate, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("tick loop stopping")
			return ctx.Err()

		case <-l.stopCh:
			slog.Info("tick loop stopped")
			return nil

		case <-ticker.C:
			l.step()
		}
	}
}

// Stop stops a running Start.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Advance runs n ticks synchronously on the calling goroutine.
// Must not be used while Start is running.
func (l *Loop) Advance(n int) {
	for range n {
		l.step()
	}
}

// Wait blocks until all off-loop work started through the default executor
// has finished.
func (l *Loop) Wait() {
	l.inflight.Wait()
}

// ScheduleRecurring implements Clock.
func (l *Loop) ScheduleRecurring(delay, period uint64, fn func()) Handle {
	if period == 0 {
		period = 1
	}
	return l.schedule(delay, period, fn)
}

// ScheduleOnce implements Clock.
func (l *Loop) ScheduleOnce(delay uint64, fn func()) Handle {
	return l.schedule(delay, 0, fn)
}

// RunOnTickLoop implements Clock.
func (l *Loop) RunOnTickLoop(fn func()) {
	l.mu.Lock()
	l.queued = append(l.queued, fn)
	l.mu.Unlock()
}

// RunOffTickLoop implements Clock.
func (l *Loop) RunOffTickLoop(fn func()) {
	l.offload(fn)
}

func (l *Loop) schedule(delay, period uint64, fn func()) *task {
	t := &task{
		due:    l.tick.Load() + delay,
		period: period,
		fn:     fn,
	}
	l.mu.Lock()
	l.incoming = append(l.incoming, t)
	l.mu.Unlock()
	return t
}

func (l *Loop) spawn(fn func()) {
	l.inflight.Add(1)
	go func() {
		defer l.inflight.Done()
		run("off-loop task", fn)
	}()
}

// step runs one tick: queued callbacks first, then every due job.
func (l *Loop) step() {
	now := l.tick.Add(1)

	l.mu.Lock()
	queued := l.queued
	l.queued = nil
	l.mu.Unlock()

	for _, fn := range queued {
		run("tick callback", fn)
	}

	l.mu.Lock()
	l.tasks = append(l.tasks, l.incoming...)
	l.incoming = nil
	l.mu.Unlock()

	live := l.tasks[:0]
	for _, t := range l.tasks {
		if t.Cancelled() {
			continue
		}
		if t.due <= now {
			run("scheduled task", t.fn)
			if t.period == 0 {
				t.Cancel()
			} else {
				t.due = now + t.period
			}
		}
		if !t.Cancelled() {
			live = append(live, t)
		}
	}
	clear(l.tasks[len(live):])
	l.tasks = live
}

// Pending returns the number of live scheduled jobs. Loop goroutine only.
func (l *Loop) Pending() int {
	l.mu.Lock()
	n := len(l.incoming)
	l.mu.Unlock()
	for _, t := range l.tasks {
		if !t.Cancelled() {
			n++
		}
	}
	return n
}

type task struct {
	due       uint64
	period    uint64 // 0 = one-shot
	fn        func()
	cancelled atomic.Bool
}

func (t *task) Cancel() {
	t.cancelled.Store(true)
}

func (t *task) Cancelled() bool {
	return t.cancelled.Load()
}

// run executes fn and logs a panic instead of killing the loop.
func run(what string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic", "in", what, "panic", r)
		}
	}()
	fn()
}
