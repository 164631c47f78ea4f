package rollup_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echodiary/echodiary/internal/convstore"
	"github.com/echodiary/echodiary/internal/diary"
	"github.com/echodiary/echodiary/internal/rollup"
)

// fakeTurnSource serves canned turns per user.
type fakeTurnSource struct {
	mu      sync.Mutex
	turns   map[string][]convstore.Turn
	failFor map[string]error
}

func newFakeTurnSource() *fakeTurnSource {
	return &fakeTurnSource{
		turns:   make(map[string][]convstore.Turn),
		failFor: make(map[string]error),
	}
}

func (f *fakeTurnSource) add(userID, text string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[userID] = append(f.turns[userID], convstore.Turn{
		ID:        fmt.Sprintf("t%d", len(f.turns[userID])+1),
		UserID:    userID,
		Text:      text,
		CreatedAt: at,
	})
}

func (f *fakeTurnSource) TurnsInRange(ctx context.Context, userID string, start, end time.Time) ([]convstore.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor[userID]; err != nil {
		return nil, err
	}
	var out []convstore.Turn
	for _, t := range f.turns[userID] {
		if !t.CreatedAt.Before(start) && t.CreatedAt.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

// recordingSummarizer tags output and records the last input per method.
type recordingSummarizer struct {
	mu           sync.Mutex
	tag          string
	dailyInput   string
	monthlyInput string
}

func (r *recordingSummarizer) SummarizeDaily(ctx context.Context, userID, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dailyInput = text
	return r.tag + text
}

func (r *recordingSummarizer) SummarizeMonthly(ctx context.Context, userID, text string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.monthlyInput = text
	return r.tag + text
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDailyRollupUpsertsSingleEntry(t *testing.T) {
	ctx := context.Background()
	turns := newFakeTurnSource()
	store := diary.NewMemStore()
	sum := &recordingSummarizer{tag: "v1:"}
	runner := rollup.NewRunner(turns, sum, store, rollup.Config{})

	turns.add("user1", "上午的总结", at("2026-08-27T09:00:00Z"))
	turns.add("user1", "晚上的总结", at("2026-08-27T21:00:00Z"))

	require.NoError(t, runner.RunDaily(ctx, "user1", day("2026-08-27")))

	entry, err := store.DailyByDate(ctx, "user1", "2026-08-27")
	require.NoError(t, err)
	assert.Equal(t, "v1:上午的总结\n晚上的总结", entry.DailySummary)

	// Re-running overwrites the same entry rather than duplicating it.
	sum.tag = "v2:"
	require.NoError(t, runner.RunDaily(ctx, "user1", day("2026-08-27")))

	all, err := store.ListDaily(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "v2:上午的总结\n晚上的总结", all[0].DailySummary)
}

func TestDailyRollupSkipsDayWithoutTurns(t *testing.T) {
	ctx := context.Background()
	turns := newFakeTurnSource()
	store := diary.NewMemStore()
	runner := rollup.NewRunner(turns, &recordingSummarizer{}, store, rollup.Config{})

	require.NoError(t, store.EnsureUser(ctx, "user1"))

	report := runner.RunDailyAll(ctx, day("2026-08-27"))
	assert.Equal(t, 0, report.Processed)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, report.Errors)

	_, err := store.DailyByDate(ctx, "user1", "2026-08-27")
	assert.ErrorIs(t, err, diary.ErrNotFound)
}

func TestDailyRollupScopesToCalendarDay(t *testing.T) {
	ctx := context.Background()
	turns := newFakeTurnSource()
	store := diary.NewMemStore()
	sum := &recordingSummarizer{}
	runner := rollup.NewRunner(turns, sum, store, rollup.Config{})

	turns.add("user1", "二十六号的对话", at("2026-08-26T23:59:00Z"))
	turns.add("user1", "二十七号的对话", at("2026-08-27T00:00:00Z"))
	turns.add("user1", "二十八号的对话", at("2026-08-28T00:00:00Z"))

	require.NoError(t, runner.RunDaily(ctx, "user1", day("2026-08-27")))
	assert.Equal(t, "二十七号的对话", sum.dailyInput)
}

func TestDailyRollupIsolatesUserFailures(t *testing.T) {
	ctx := context.Background()
	turns := newFakeTurnSource()
	store := diary.NewMemStore()
	runner := rollup.NewRunner(turns, &recordingSummarizer{}, store, rollup.Config{})

	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, store.EnsureUser(ctx, u))
		turns.add(u, "对话", at("2026-08-27T12:00:00Z"))
	}
	turns.failFor["b"] = errors.New("vector store unreachable")

	report := runner.RunDailyAll(ctx, day("2026-08-27"))
	assert.Equal(t, 2, report.Processed)
	assert.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors, "b")

	for _, u := range []string{"a", "c"} {
		_, err := store.DailyByDate(ctx, u, "2026-08-27")
		assert.NoError(t, err, "user %s should have an entry", u)
	}
	_, err := store.DailyByDate(ctx, "b", "2026-08-27")
	assert.ErrorIs(t, err, diary.ErrNotFound)
}

func TestMonthlyRollupConcatenatesChronologically(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	sum := &recordingSummarizer{tag: "月度:"}
	runner := rollup.NewRunner(newFakeTurnSource(), sum, store, rollup.Config{})

	// Inserted out of order; the rollup must still read them date-ascending.
	require.NoError(t, store.UpsertDaily(ctx, "user1", "2026-08-02", "略有波动"))
	require.NoError(t, store.UpsertDaily(ctx, "user1", "2026-08-01", "稳定进步"))

	require.NoError(t, runner.RunMonthly(ctx, "user1", day("2026-08-01")))
	assert.Equal(t, "稳定进步\n略有波动", sum.monthlyInput)

	all, err := store.ListMonthly(ctx, "user1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2026-08", all[0].Month)
	assert.Equal(t, "月度:稳定进步\n略有波动", all[0].MonthlySummary)
}

func TestMonthlyRollupSkipsEmptyMonth(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	runner := rollup.NewRunner(newFakeTurnSource(), &recordingSummarizer{}, store, rollup.Config{})

	require.NoError(t, store.EnsureUser(ctx, "user1"))

	report := runner.RunMonthlyAll(ctx, day("2026-08-01"))
	assert.Equal(t, 1, report.Skipped)

	all, err := store.ListMonthly(ctx, "user1")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentMonthlyRollupsProduceOneEntry(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	runner := rollup.NewRunner(newFakeTurnSource(), &recordingSummarizer{}, store, rollup.Config{})

	require.NoError(t, store.UpsertDaily(ctx, "user1", "2026-08-01", "稳定进步"))

	// Scheduled and on-demand runs racing for the same (user, month).
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = runner.RunMonthly(ctx, "user1", day("2026-08-01"))
		}()
	}
	wg.Wait()

	all, err := store.ListMonthly(ctx, "user1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRunAllWithConcurrency(t *testing.T) {
	ctx := context.Background()
	turns := newFakeTurnSource()
	store := diary.NewMemStore()
	runner := rollup.NewRunner(turns, &recordingSummarizer{}, store, rollup.Config{Concurrency: 4})

	for i := 0; i < 10; i++ {
		u := fmt.Sprintf("user%d", i)
		require.NoError(t, store.EnsureUser(ctx, u))
		turns.add(u, "对话", at("2026-08-27T12:00:00Z"))
	}

	report := runner.RunDailyAll(ctx, day("2026-08-27"))
	assert.Equal(t, 10, report.Processed)
	assert.Empty(t, report.Errors)
}
