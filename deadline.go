package loom

import "time"

// Deadline is a monotonic absolute point in time after which a blocking
// operation must give up. It is derived from time.Now(), which on all
// platforms loom targets reports monotonic readings suitable for
// duration comparisons.
type Deadline time.Time

// Never is the sentinel deadline meaning "no effective timeout": a
// blocking operation armed with Never waits indefinitely for its event.
var Never = Deadline(time.Unix(1<<62, 0))

// Immediate is the sentinel deadline meaning "poll without waiting": a
// blocking operation armed with Immediate still performs the one
// required scheduling handoff (see Coroutine.WakeUp). On resumption a
// Send, Receive or Poll whose event has not occurred fails with
// ErrTimeout; a Poll on a descriptor that is already ready succeeds,
// and WakeUp simply returns.
var Immediate = Deadline(time.Time{})

// Duration is a signed delta used to compute a Deadline relative to now.
type Duration time.Duration

// FromNow returns the Deadline reached by adding d to the current time.
func (d Duration) FromNow() Deadline {
	return Deadline(time.Now().Add(time.Duration(d)))
}

// Time returns the Deadline as a time.Time, for interop with the
// standard library (e.g. constructing a context.Context or time.Timer).
func (d Deadline) Time() time.Time {
	return time.Time(d)
}

// After reports whether the deadline lies after now, that is, whether it
// is still in the future.
func (d Deadline) After(now time.Time) bool {
	return time.Time(d).After(now)
}

// remaining returns the non-negative duration until d, or 0 if d has
// already passed. Never reports a duration large enough that no
// practical timer loop observes it as finite.
func (d Deadline) remaining(now time.Time) time.Duration {
	if d == Never {
		return time.Duration(1<<63 - 1)
	}
	rem := time.Time(d).Sub(now)
	if rem < 0 {
		return 0
	}
	return rem
}
