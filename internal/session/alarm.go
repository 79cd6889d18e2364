package session

import (
	"sync"
	"time"
)

// Alarm is the scheduling port the poller arms timers through.
//
// Schedule supersedes any pending timer: at most one callback is outstanding.
// Cancel drops the pending timer, if any.
type Alarm interface {
	Schedule(d time.Duration, fn func())
	Cancel()
}

// TimerAlarm implements [Alarm] with [time.AfterFunc]. Callbacks run on their own goroutine.
type TimerAlarm struct {
	mu    sync.Mutex
	timer *time.Timer
}

func NewTimerAlarm() *TimerAlarm {
	return &TimerAlarm{}
}

func (a *TimerAlarm) Schedule(d time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(d, fn)
}

func (a *TimerAlarm) Cancel() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
