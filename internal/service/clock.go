package service

import "time"

// Clock is the engine's single source of time. Hold deadlines and expiry
// decisions all go through it so tests can drive time deterministically;
// client-supplied timestamps are never trusted for expiry.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }
