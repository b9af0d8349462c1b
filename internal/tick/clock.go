// Package tick provides the cooperative tick loop that owns all rendering and
// player-state access, plus an off-loop executor for expensive work.
package tick

// Clock is the scheduling capability the visualization core is written against.
// Delays and periods are measured in ticks.
type Clock interface {
	// ScheduleRecurring runs fn on the tick loop every period ticks, the first
	// time after delay ticks. A zero delay runs it on the current or next tick.
	ScheduleRecurring(delay, period uint64, fn func()) Handle
	// ScheduleOnce runs fn on the tick loop once after delay ticks.
	ScheduleOnce(delay uint64, fn func()) Handle
	// RunOnTickLoop queues fn to run at the start of the next tick.
	RunOnTickLoop(fn func())
	// RunOffTickLoop runs fn outside the tick loop. It never blocks the caller.
	RunOffTickLoop(fn func())
}

// Handle cancels a scheduled job. Cancel is idempotent and may be called from
// any goroutine, including from inside the job itself. Cancelling stops future
// invocations; it does not interrupt one already running.
type Handle interface {
	Cancel()
	Cancelled() bool
}
