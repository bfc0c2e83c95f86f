package clock

import "time"

// Clock is the source of "now" for the scheduling rules.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System returns a Clock backed by time.Now.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// Fixed always reports the same instant. Useful in tests and simulations.
type Fixed time.Time

func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// StartOfHour zeroes minutes, seconds and nanoseconds of t in its own location.
func StartOfHour(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
