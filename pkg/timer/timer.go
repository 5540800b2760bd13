// Package timer provides a frame-driven countdown used by towers to pace their fire and by
// projectiles to measure how long they have existed.
//
// A Timer never reads the wall clock. It only advances when Tick is called with the frame delta,
// which keeps simulations deterministic for a given sequence of deltas.
package timer

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidDuration is returned when a timer is constructed with a non-positive duration.
var ErrInvalidDuration = eris.New("timer duration must be positive")

// Mode determines what a timer does once its accumulator reaches the duration.
type Mode uint8

const (
	// Once stops at the duration and stays finished until Reset.
	Once Mode = iota
	// Repeating wraps the accumulator modulo the duration and keeps running.
	Repeating
)

func (m Mode) String() string {
	switch m {
	case Once:
		return "once"
	case Repeating:
		return "repeating"
	default:
		return "unknown"
	}
}

// Timer accumulates frame time and reports when it crosses its duration.
//
// The zero value is not usable; construct timers with New.
type Timer struct {
	duration      time.Duration
	elapsed       time.Duration
	mode          Mode
	finished      bool
	justFinished  bool
	timesThisTick uint32
}

// New returns a timer of the given duration and mode.
func New(duration time.Duration, mode Mode) (Timer, error) {
	if duration <= 0 {
		return Timer{}, eris.Wrapf(ErrInvalidDuration, "got %s", duration)
	}
	if mode != Once && mode != Repeating {
		return Timer{}, eris.Errorf("unknown timer mode %d", mode)
	}
	return Timer{duration: duration, mode: mode}, nil
}

// MustNew is like New but panics on error. Intended for package-level constants and tests.
func MustNew(duration time.Duration, mode Mode) Timer {
	t, err := New(duration, mode)
	if err != nil {
		panic(err)
	}
	return t
}

// Tick advances the timer by delta. Negative deltas are treated as zero.
//
// In Repeating mode a single tick reports at most one firing through JustFinished even if delta
// spans several durations; the accumulator keeps only the remainder. TimesFinishedThisTick
// reports how many boundaries were actually covered.
func (t *Timer) Tick(delta time.Duration) {
	t.justFinished = false
	t.timesThisTick = 0

	if t.duration <= 0 {
		return
	}
	delta = max(delta, 0)

	switch t.mode {
	case Once:
		if t.finished {
			return
		}
		t.elapsed = min(t.elapsed+delta, t.duration)
		if t.elapsed >= t.duration {
			t.finished = true
			t.justFinished = true
			t.timesThisTick = 1
		}
	case Repeating:
		t.elapsed += delta
		if t.elapsed >= t.duration {
			t.timesThisTick = uint32(t.elapsed / t.duration) //nolint:gosec // bounded by delta/duration
			t.elapsed %= t.duration
			t.finished = true
			t.justFinished = true
		} else {
			t.finished = false
		}
	}
}

// JustFinished reports whether the most recent Tick crossed the duration.
func (t *Timer) JustFinished() bool {
	return t.justFinished
}

// Finished reports whether the timer has reached its duration. A Once timer stays finished until
// Reset; a Repeating timer is only finished on the tick it wrapped.
func (t *Timer) Finished() bool {
	return t.finished
}

// TimesFinishedThisTick returns how many whole durations the most recent Tick covered.
func (t *Timer) TimesFinishedThisTick() uint32 {
	return t.timesThisTick
}

// Reset rewinds the accumulator to zero and clears the finished state.
func (t *Timer) Reset() {
	t.elapsed = 0
	t.finished = false
	t.justFinished = false
	t.timesThisTick = 0
}

func (t *Timer) Elapsed() time.Duration  { return t.elapsed }
func (t *Timer) Duration() time.Duration { return t.duration }
func (t *Timer) Mode() Mode              { return t.mode }

// Remaining returns the time left until the next firing.
func (t *Timer) Remaining() time.Duration {
	return t.duration - t.elapsed
}

// Fraction returns elapsed/duration in [0, 1].
func (t *Timer) Fraction() float64 {
	if t.duration <= 0 {
		return 0
	}
	return float64(t.elapsed) / float64(t.duration)
}
