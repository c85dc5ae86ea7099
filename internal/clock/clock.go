package clock

import "time"

// Clock abstracts time.Now so services and the timer store can be tested
// against a controllable time source.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }
