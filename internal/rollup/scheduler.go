package rollup

import (
	"context"
	"log"
	"time"

	"github.com/echodiary/echodiary/internal/config"
)

// Scheduler fires the rollup jobs on fixed calendar triggers: the daily
// rollup at a configured time of day, the monthly rollup on a configured day
// of month at the same time.
//
// It is an explicitly owned instance with a Start/Stop lifecycle — construct
// it during application initialization and stop it on shutdown. A single
// goroutine drives both triggers, so jobs never run concurrently with each
// other; the request-triggered on-demand rollups may, which is what the
// Runner's per-key locking is for.
type Scheduler struct {
	runner     *Runner
	dailyAt    config.TimeOfDay
	monthlyDay int
	loc        *time.Location

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(runner *Runner, dailyAt config.TimeOfDay, monthlyDay int, loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		runner:     runner,
		dailyAt:    dailyAt,
		monthlyDay: monthlyDay,
		loc:        loc,
	}
}

// Start launches the trigger loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)
	log.Printf("[SCHEDULER] Started: daily at %02d:%02d, monthly on day %d (%s)",
		s.dailyAt.Hour, s.dailyAt.Minute, s.monthlyDay, s.loc)
}

// Stop halts the trigger loop and waits for it to exit. A job already in
// flight finishes first.
func (s *Scheduler) Stop() {
	if s.done == nil {
		return
	}
	s.cancel()
	<-s.done
	s.done = nil
	log.Printf("[SCHEDULER] Stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	for {
		now := time.Now().In(s.loc)
		nextDaily := s.nextDaily(now)
		nextMonthly := s.nextMonthly(now)

		next := nextDaily
		if nextMonthly.Before(next) {
			next = nextMonthly
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case fired := <-timer.C:
			fired = fired.In(s.loc)
			// Jobs run sequentially; when both triggers coincide the
			// daily rollup goes first so the monthly one sees its output.
			if !nextDaily.After(fired) {
				day := nextDaily.AddDate(0, 0, -1)
				log.Printf("[SCHEDULER] Daily rollup trigger for %s", day.Format("2006-01-02"))
				s.runner.RunDailyAll(ctx, day)
			}
			if !nextMonthly.After(fired) {
				month := nextMonthly.AddDate(0, -1, 0)
				log.Printf("[SCHEDULER] Monthly rollup trigger for %s", month.Format("2006-01"))
				s.runner.RunMonthlyAll(ctx, month)
			}
		}
	}
}

// nextDaily returns the next daily trigger strictly after now. The run it
// fires targets the calendar day that just completed.
func (s *Scheduler) nextDaily(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), s.dailyAt.Hour, s.dailyAt.Minute, 0, 0, s.loc)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// nextMonthly returns the next monthly trigger strictly after now. The run
// it fires targets the previous month.
func (s *Scheduler) nextMonthly(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), s.monthlyDay, s.dailyAt.Hour, s.dailyAt.Minute, 0, 0, s.loc)
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month()+1, s.monthlyDay, s.dailyAt.Hour, s.dailyAt.Minute, 0, 0, s.loc)
	}
	return next
}
