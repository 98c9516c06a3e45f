package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Timers only fire inside
// Advance, in deadline order, with the fake's notion of now set to each
// timer's deadline as it fires.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
	fn       func()
	fired    bool
	stopped  bool
}

// NewFake creates a fake clock starting at an arbitrary fixed time.
func NewFake() *Fake {
	return &Fake{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the fake's current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After returns a channel that receives once Advance moves past d.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
	}
	f.waiters = append(f.waiters, w)
	return w.ch
}

// AfterFunc schedules fn to run when Advance moves past d. The call runs
// synchronously inside Advance.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := &fakeWaiter{
		deadline: f.now.Add(d),
		fn:       fn,
	}
	f.waiters = append(f.waiters, w)
	return &fakeTimer{clock: f, waiter: w}
}

// Advance moves the fake time forward by d, firing due timers in deadline
// order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)

	for {
		due := f.dueLocked(target)
		if due == nil {
			break
		}
		f.now = due.deadline
		due.fired = true
		fn := due.fn
		ch := due.ch
		now := f.now
		f.mu.Unlock()

		if fn != nil {
			fn()
		}
		if ch != nil {
			ch <- now
		}
		f.mu.Lock()
	}

	f.now = target
	f.mu.Unlock()
}

// dueLocked returns the earliest unfired waiter at or before target.
func (f *Fake) dueLocked(target time.Time) *fakeWaiter {
	var candidates []*fakeWaiter
	for _, w := range f.waiters {
		if !w.fired && !w.stopped && !w.deadline.After(target) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].deadline.Before(candidates[j].deadline)
	})
	return candidates[0]
}

type fakeTimer struct {
	clock  *Fake
	waiter *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	pending := !t.waiter.fired && !t.waiter.stopped
	t.waiter.stopped = true
	return pending
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	pending := !t.waiter.fired && !t.waiter.stopped
	t.waiter.fired = false
	t.waiter.stopped = false
	t.waiter.deadline = t.clock.now.Add(d)
	return pending
}

// Verify Fake implements Clock at compile time.
var _ Clock = (*Fake)(nil)
