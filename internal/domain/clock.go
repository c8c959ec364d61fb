package domain

import "time"

// Clock supplies the reference "now". Injected wherever date arithmetic is
// relative to today so that past-due detection and projections stay
// deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's time.
func (f ClockFunc) Now() time.Time {
	return f()
}

// FixedClock returns a Clock pinned to t. Used in tests and anywhere a scan
// must be reproducible for a given reference day.
func FixedClock(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}
