// Package clock abstracts time for components built around timers, so tests
// can drive debounce and timeout logic deterministically with a fake clock.
package clock

import "time"

// Clock provides the time operations the timer-driven components need.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that delivers the time after d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run after d and returns a Timer that can
	// stop or reset the pending call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer controls a pending AfterFunc call.
type Timer interface {
	// Stop cancels the pending call. Reports whether it was still pending.
	Stop() bool

	// Reset reschedules the call for d from now. Reports whether it was
	// still pending.
	Reset(d time.Duration) bool
}

// System returns a Clock backed by the time package.
func System() Clock {
	return systemClock{}
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{time.AfterFunc(d, f)}
}

type systemTimer struct {
	t *time.Timer
}

func (st systemTimer) Stop() bool {
	return st.t.Stop()
}

func (st systemTimer) Reset(d time.Duration) bool {
	return st.t.Reset(d)
}
