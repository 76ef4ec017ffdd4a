// Package schedule runs a task repeatedly at a fixed interval.
package schedule

import (
	"context"
	"time"
)

// Task is one unit of periodic work. Returning an error stops the schedule.
type Task func(ctx context.Context) error

// Scheduler drives a Task until it fails or ctx is done.
type Scheduler interface {
	Run(ctx context.Context, task Task) error
}

// Ticker invokes a task every Interval. Ticks that arrive while the task is
// still running are dropped, so invocations never overlap. A zero Interval
// runs the task back to back.
type Ticker struct {
	Interval time.Duration
}

// Every returns a Ticker for d.
func Every(d time.Duration) Ticker {
	return Ticker{Interval: d}
}

// Run calls task immediately and then once per tick. It returns the task's
// error, or ctx.Err() once the context is cancelled.
func (t Ticker) Run(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := task(ctx); err != nil {
		return err
	}

	if t.Interval <= 0 {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := task(ctx); err != nil {
				return err
			}
		}
	}

	tick := time.NewTicker(t.Interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if err := task(ctx); err != nil {
				return err
			}
		}
	}
}
