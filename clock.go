package sqlitekv

import "time"

// Clock supplies the current time. The cache variant depends on it for
// expiry computation and read filtering; injecting a pinned clock makes
// expiry deterministic in tests without global state, so concurrent tests
// cannot interfere with each other's notion of "now".
//
// The clock is re-evaluated on every invocation, never captured once at
// statement compile time.
type Clock func() time.Time

// systemClock is the production clock.
func systemClock() time.Time {
	return time.Now()
}
