// Package clock supplies the single monotonic time source Stat and the
// rest of memkeys build timestamps from.
package clock

import "time"

// Now returns a monotonic instant suitable for first_seen/last_seen and
// elapsed-time math. time.Now() already carries a monotonic reading on
// every supported platform; we wrap it so call sites read as intent
// ("clock.Now()") rather than a bare stdlib call, and so tests can swap in
// a fake source later without touching every call site.
func Now() time.Time {
	return time.Now()
}

// ElapsedSeconds returns the seconds (fractional) between since and now,
// floored at 1 so rate/bandwidth division never divides by zero for a key seen
// only an instant ago.
func ElapsedSeconds(since, now time.Time) float64 {
	elapsed := now.Sub(since).Seconds()
	if elapsed < 1 {
		return 1
	}
	return elapsed
}
