package clockx

import "time"

// Timer is the stoppable handle returned by AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock abstracts the time source so timestamps and assignment timeouts
// can be driven manually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
