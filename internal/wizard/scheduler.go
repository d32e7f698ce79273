package wizard

import (
	"time"

	"github.com/pintegram/toolbot/internal/domain"
)

// Scheduler schedules delayed callbacks. The wizard owns three kinds of
// timers through it: auto-approve, notice cleanup and abort-notice
// cleanup. Tests substitute a manual implementation so timer behavior is
// checked without wall-clock sleeps.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) domain.TimerHandle
}

type clockScheduler struct{}

// NewScheduler returns the production scheduler backed by time.AfterFunc.
func NewScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) AfterFunc(d time.Duration, f func()) domain.TimerHandle {
	return time.AfterFunc(d, f)
}
