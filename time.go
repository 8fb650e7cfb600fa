package auth

import "time"

// Clock abstracts time.Now so stores and commands can be tested against
// fixed instants.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// SystemClock returns the wall clock
func SystemClock() Clock {
	return systemClock{}
}

// FixedClock always reports the same instant
type FixedClock struct {
	Instant time.Time
}

func (c FixedClock) Now() time.Time {
	return c.Instant
}
