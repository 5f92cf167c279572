package engine

import "time"

// Timer is a cancellable deferred callback. Stop reports whether the
// callback was prevented from running.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules fn to run once after d. Tests inject fakes so
// deferred merges and saves fire deterministically.
type TimerFactory func(d time.Duration, fn func()) Timer

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Stop() bool { return r.t.Stop() }

func afterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}
