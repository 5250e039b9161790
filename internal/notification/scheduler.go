package notification

import "time"

type Timer interface {
	Stop() bool
}

// Scheduler runs delayed callbacks. Tests swap in a manual clock.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type SystemScheduler struct{}

func (SystemScheduler) Now() time.Time {
	return time.Now()
}

func (SystemScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
