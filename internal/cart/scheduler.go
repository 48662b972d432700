package cart

import "time"

// Scheduler runs delayed callbacks. The cart uses it for the add animation and
// the delayed panel open; tests swap in a manual scheduler.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
