package hfsm

import "time"

// Timer measures the time elapsed since it was last reset
type Timer struct {
	clock Clock
	start time.Time
	end   time.Duration
}

// NewTimer creates a timer started now. A nil clock means SystemClock.
func NewTimer(clock Clock) *Timer {
	if clock == nil {
		clock = SystemClock
	}
	return &Timer{
		clock: clock,
		start: clock.Now(),
	}
}

// setClock switches the time source and restarts the timer
func (t *Timer) setClock(clock Clock) {
	t.clock = clock
	t.start = t.now()
}

// bindTo makes the timer follow the clock of the given machine, even if
// that machine's clock changes after binding
func (t *Timer) bindTo(clocked interface{ Clock() Clock }) {
	if clocked == nil {
		return
	}
	t.setClock(ClockFunc(func() time.Time {
		return clocked.Clock().Now()
	}))
}

func (t *Timer) now() time.Time {
	if t.clock == nil {
		return SystemClock.Now()
	}
	return t.clock.Now()
}

// Reset restarts the timer and clears the end duration
func (t *Timer) Reset() {
	t.ResetFor(0)
}

// ResetFor restarts the timer and records end as the reference duration
// checked by IsEnd
func (t *Timer) ResetFor(end time.Duration) {
	t.start = t.now()
	t.end = end
}

// Elapsed returns the time since the last reset. Never negative.
func (t *Timer) Elapsed() time.Duration {
	d := t.now().Sub(t.start)
	if d < 0 {
		return 0
	}
	return d
}

// End returns the duration recorded by ResetFor
func (t *Timer) End() time.Duration {
	return t.end
}

// IsEnd reports whether the end duration has been reached
func (t *Timer) IsEnd() bool {
	return t.Elapsed() >= t.end
}

// GreaterThan reports whether elapsed > d
func (t *Timer) GreaterThan(d time.Duration) bool {
	return t.Elapsed() > d
}

// LessThan reports whether elapsed < d
func (t *Timer) LessThan(d time.Duration) bool {
	return t.Elapsed() < d
}

// GreaterOrEqual reports whether elapsed >= d
func (t *Timer) GreaterOrEqual(d time.Duration) bool {
	return t.Elapsed() >= d
}

// LessOrEqual reports whether elapsed <= d
func (t *Timer) LessOrEqual(d time.Duration) bool {
	return t.Elapsed() <= d
}
