// Package rollup aggregates conversation memory into diary entries: turns
// into daily summaries, daily summaries into monthly ones.
//
// Both jobs are idempotent upserts keyed by (user, period). The scheduled
// runs and the on-demand API share the exact same per-user code path; they
// differ only in trigger source and in which users get processed.
package rollup

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/echodiary/echodiary/internal/convstore"
	"github.com/echodiary/echodiary/internal/diary"
)

// TurnSource reads conversation turns for a time window.
type TurnSource interface {
	TurnsInRange(ctx context.Context, userID string, start, end time.Time) ([]convstore.Turn, error)
}

// Summarizer condenses rollup input. Implementations degrade internally and
// never fail.
type Summarizer interface {
	SummarizeDaily(ctx context.Context, userID, text string) string
	SummarizeMonthly(ctx context.Context, userID, text string) string
}

// Config tunes batch execution.
type Config struct {
	// Concurrency bounds how many users are processed in parallel during
	// an all-users run. 1 means strictly sequential.
	Concurrency int

	// PerUserTimeout caps one user's summarize-and-persist work so a hung
	// model call fails that user instead of stalling the whole batch.
	PerUserTimeout time.Duration

	// Location defines calendar-day boundaries.
	Location *time.Location
}

// Runner executes daily and monthly rollups.
type Runner struct {
	turns      TurnSource
	summarizer Summarizer
	store      diary.Store
	cfg        Config

	locks keyedLocks
}

// NewRunner creates a Runner.
func NewRunner(turns TurnSource, summarizer Summarizer, store diary.Store, cfg Config) *Runner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PerUserTimeout <= 0 {
		cfg.PerUserTimeout = 2 * time.Minute
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Runner{
		turns:      turns,
		summarizer: summarizer,
		store:      store,
		cfg:        cfg,
	}
}

// Report is the outcome of an all-users run. One user's failure never
// aborts the others; it lands in Errors and the batch moves on.
type Report struct {
	Processed int
	Skipped   int
	Errors    map[string]error
}

func newReport() Report {
	return Report{Errors: make(map[string]error)}
}

// RunDaily rolls one user's turns for one calendar day into a daily entry.
// A day with no turns is skipped: no entry written, no error.
func (r *Runner) RunDaily(ctx context.Context, userID string, day time.Time) error {
	_, err := r.dailyForUser(ctx, userID, day)
	return err
}

// RunDailyAll runs the daily rollup for every known user.
func (r *Runner) RunDailyAll(ctx context.Context, day time.Time) Report {
	return r.runAll(ctx, "daily", func(ctx context.Context, userID string) (bool, error) {
		return r.dailyForUser(ctx, userID, day)
	})
}

// RunMonthly rolls one user's daily entries for one month into a monthly
// entry. A month with no daily entries is skipped.
func (r *Runner) RunMonthly(ctx context.Context, userID string, month time.Time) error {
	_, err := r.monthlyForUser(ctx, userID, month)
	return err
}

// RunMonthlyAll runs the monthly rollup for every known user.
func (r *Runner) RunMonthlyAll(ctx context.Context, month time.Time) Report {
	return r.runAll(ctx, "monthly", func(ctx context.Context, userID string) (bool, error) {
		return r.monthlyForUser(ctx, userID, month)
	})
}

// runAll iterates all known users with bounded parallelism. The worker
// functions never return an error to the group — per-user failures are
// recorded in the report so siblings keep running.
func (r *Runner) runAll(ctx context.Context, kind string, fn func(ctx context.Context, userID string) (bool, error)) Report {
	report := newReport()

	users, err := r.store.ListUserIDs(ctx)
	if err != nil {
		log.Printf("[ROLLUP] %s rollup aborted, cannot list users: %v", kind, err)
		report.Errors["*"] = err
		return report
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for _, userID := range users {
		userID := userID
		g.Go(func() error {
			written, err := fn(gctx, userID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Errors[userID] = err
				log.Printf("[ROLLUP] %s rollup failed for user=%s: %v", kind, userID, err)
			case written:
				report.Processed++
			default:
				report.Skipped++
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[ROLLUP] %s rollup done: processed=%d skipped=%d failed=%d",
		kind, report.Processed, report.Skipped, len(report.Errors))
	return report
}

// dailyForUser is the shared per-user daily path. Returns whether an entry
// was written.
func (r *Runner) dailyForUser(ctx context.Context, userID string, day time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PerUserTimeout)
	defer cancel()

	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, r.cfg.Location)
	end := start.AddDate(0, 0, 1)

	turns, err := r.turns.TurnsInRange(ctx, userID, start, end)
	if err != nil {
		return false, fmt.Errorf("load turns: %w", err)
	}
	if len(turns) == 0 {
		return false, nil
	}

	texts := make([]string, len(turns))
	for i, t := range turns {
		texts[i] = t.Text
	}
	summaryText := r.summarizer.SummarizeDaily(ctx, userID, strings.Join(texts, "\n"))

	date := start.Format(diary.DateLayout)
	unlock := r.locks.lock(userID + "|" + date)
	defer unlock()

	if err := r.store.UpsertDaily(ctx, userID, date, summaryText); err != nil {
		return false, fmt.Errorf("upsert daily entry: %w", err)
	}
	return true, nil
}

// monthlyForUser is the shared per-user monthly path.
func (r *Runner) monthlyForUser(ctx context.Context, userID string, month time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.PerUserTimeout)
	defer cancel()

	monthKey := month.Format(diary.MonthLayout)

	entries, err := r.store.DailyInMonth(ctx, userID, monthKey)
	if err != nil {
		return false, fmt.Errorf("load daily entries: %w", err)
	}
	if len(entries) == 0 {
		return false, nil
	}

	// DailyInMonth orders by date ascending, so the concatenation is
	// chronological.
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.DailySummary
	}
	summaryText := r.summarizer.SummarizeMonthly(ctx, userID, strings.Join(texts, "\n"))

	unlock := r.locks.lock(userID + "|" + monthKey)
	defer unlock()

	if err := r.store.UpsertMonthly(ctx, userID, monthKey, summaryText); err != nil {
		return false, fmt.Errorf("upsert monthly entry: %w", err)
	}
	return true, nil
}

// keyedLocks serializes upserts per (user, period) so a scheduled run and an
// on-demand run for the same key cannot interleave their read-modify-write.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedLocks) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
