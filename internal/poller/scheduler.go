package poller

import (
	"context"
	"time"
)

// Scheduler decides how the loop waits between cycles, so tests can drive
// cycles without real time passing.
type Scheduler interface {
	// Wait blocks for the given duration or until ctx is done, in which case
	// it returns ctx's error.
	Wait(ctx context.Context, d time.Duration) error
}

// IntervalScheduler waits in real time.
type IntervalScheduler struct{}

func (IntervalScheduler) Wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
