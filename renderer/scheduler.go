package renderer

import "time"

// DelayScheduler runs deferred work after a fixed settle delay.
type DelayScheduler struct {
	Delay time.Duration
}

// AfterPaint schedules fn after the delay.
func (s DelayScheduler) AfterPaint(fn func()) {
	if s.Delay <= 0 {
		go fn()
		return
	}
	time.AfterFunc(s.Delay, fn)
}

// SchedulerFunc adapts a function to core.Scheduler.
type SchedulerFunc func(fn func())

// AfterPaint calls f(fn).
func (f SchedulerFunc) AfterPaint(fn func()) { f(fn) }
