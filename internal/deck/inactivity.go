package deck

import (
	"time"
)

// Tracker is the per-session inactivity state machine: IDLE when no
// return-to-home timer is scheduled, ARMED while one is pending.
//
// Cancellation races are resolved with a monotonically increasing arm
// generation: every Arm or Disarm bumps the generation, and a fire
// callback first proves it is still the latest generation (under the
// controller mutex) before acting. A fire in flight when a cancel
// arrives therefore suppresses itself without a lock held across the
// wait.
//
// All methods must be called with the controller mutex held.
type Tracker struct {
	homePage string
	duration time.Duration

	gen      uint64
	timer    *time.Timer
	armed    bool
	deadline time.Time
}

// newTracker builds a tracker. A zero duration or empty page name leaves
// the tracker permanently IDLE: return-to-home is disabled globally.
func newTracker(homePage string, duration time.Duration) *Tracker {
	return &Tracker{homePage: homePage, duration: duration}
}

// Enabled reports whether return-to-home is configured at all.
func (t *Tracker) Enabled() bool {
	return t.homePage != "" && t.duration > 0
}

// Armed reports whether a fire is currently scheduled.
func (t *Tracker) Armed() bool {
	return t.armed
}

// Deadline returns the scheduled fire time; zero when IDLE.
func (t *Tracker) Deadline() time.Time {
	if !t.armed {
		return time.Time{}
	}
	return t.deadline
}

// Arm schedules fire at now + duration, replacing (never stacking) any
// pending timer. fire runs on a timer goroutine and receives the arm
// generation; it must re-acquire the controller mutex and call Latest
// before mutating anything.
func (t *Tracker) Arm(fire func(gen uint64)) {
	if !t.Enabled() {
		return
	}

	t.gen++
	gen := t.gen
	if t.timer != nil {
		t.timer.Stop()
	}
	t.deadline = time.Now().Add(t.duration)
	t.timer = time.AfterFunc(t.duration, func() {
		fire(gen)
	})
	t.armed = true
}

// Latest reports whether gen is still the most recent arming. A stale
// fire observes false and must do nothing.
func (t *Tracker) Latest(gen uint64) bool {
	return t.armed && gen == t.gen
}

// Settle moves the tracker back to IDLE after a fire has acted.
func (t *Tracker) Settle() {
	t.armed = false
	t.timer = nil
}

// Disarm cancels any pending fire and moves to IDLE. A fire already past
// its timer but not yet through Latest sees a newer generation and
// suppresses itself.
func (t *Tracker) Disarm() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.armed = false
}
