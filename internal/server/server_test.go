package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/echodiary/echodiary/internal/chat"
	"github.com/echodiary/echodiary/internal/convstore"
	"github.com/echodiary/echodiary/internal/diary"
	"github.com/echodiary/echodiary/internal/llm"
	"github.com/echodiary/echodiary/internal/pipeline"
	"github.com/echodiary/echodiary/internal/rollup"
	"github.com/echodiary/echodiary/internal/server"
)

type fakeLLM struct {
	reply string
}

func (f *fakeLLM) Complete(ctx context.Context, msgs []llm.Message, opts llm.Options) (string, error) {
	return f.reply, nil
}

func (f *fakeLLM) Stream(ctx context.Context, msgs []llm.Message, opts llm.Options, fn func(string)) (string, error) {
	fn(f.reply)
	return f.reply, nil
}

type fakeTurns struct {
	mu    sync.Mutex
	turns map[string][]convstore.Turn
}

func newFakeTurns() *fakeTurns {
	return &fakeTurns{turns: make(map[string][]convstore.Turn)}
}

func (f *fakeTurns) Append(ctx context.Context, userID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns[userID] = append(f.turns[userID], convstore.Turn{
		UserID:    userID,
		Text:      text,
		CreatedAt: time.Now(),
	})
	return "id", nil
}

func (f *fakeTurns) Latest(ctx context.Context, userID string) (convstore.Turn, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.turns[userID]
	if len(ts) == 0 {
		return convstore.Turn{}, false, nil
	}
	return ts[len(ts)-1], true, nil
}

func (f *fakeTurns) TurnsInRange(ctx context.Context, userID string, start, end time.Time) ([]convstore.Turn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []convstore.Turn
	for _, t := range f.turns[userID] {
		if !t.CreatedAt.Before(start) && t.CreatedAt.Before(end) {
			out = append(out, t)
		}
	}
	return out, nil
}

type passthroughSummarizer struct{}

func (passthroughSummarizer) Summarize(ctx context.Context, userID, text, prior string) string {
	return text
}

func (passthroughSummarizer) SummarizeDaily(ctx context.Context, userID, text string) string {
	return text
}

func (passthroughSummarizer) SummarizeMonthly(ctx context.Context, userID, text string) string {
	return text
}

func newTestServer(t *testing.T, store diary.Store, turns *fakeTurns) http.Handler {
	t.Helper()
	pipe, err := pipeline.New(turns, passthroughSummarizer{}, store)
	require.NoError(t, err)

	return server.NewRouter(&server.Server{
		Chat:     chat.New(&fakeLLM{reply: "好的，我在听。"}, 0),
		Pipeline: pipe,
		Diaries:  store,
		Rollups:  rollup.NewRunner(turns, passthroughSummarizer{}, store, rollup.Config{}),
	}, nil)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, diary.NewMemStore(), newFakeTurns())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestConversationRespondsAndValidates(t *testing.T) {
	h := newTestServer(t, diary.NewMemStore(), newFakeTurns())

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"user_id":"u1","message":"今天过得不错"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/conversation", body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "好的，我在听。")

	// A missing message is rejected before any model call.
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/conversation", strings.NewReader(`{"user_id":"u1"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConversationMintsIdentityWhenAbsent(t *testing.T) {
	h := newTestServer(t, diary.NewMemStore(), newFakeTurns())

	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"message":"你好"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/conversation", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.UserID)
}

func TestDiaryByDate(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	require.NoError(t, store.UpsertDaily(ctx, "u1", "2026-08-27", "平静的一天"))
	h := newTestServer(t, store, newFakeTurns())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diaries?user_id=u1&date=2026-08-27", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "平静的一天")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diaries?user_id=u1&date=2026-08-28", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diaries?user_id=u1&date=not-a-date", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiariesListsDailyAndMonthly(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	require.NoError(t, store.UpsertDaily(ctx, "u1", "2026-08-27", "白天的记录"))
	require.NoError(t, store.UpsertMonthly(ctx, "u1", "2026-07", "七月的总结"))
	h := newTestServer(t, store, newFakeTurns())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/diaries?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "白天的记录")
	assert.Contains(t, rec.Body.String(), "七月的总结")
}

func TestMonthlyDiariesAcceptsBothParamStyles(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	require.NoError(t, store.UpsertDaily(ctx, "u1", "2026-08-02", "第二天"))
	h := newTestServer(t, store, newFakeTurns())

	for _, q := range []string{
		"user_id=u1&month=2026-08",
		"user_id=u1&year=2026&month=8",
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/monthly-diaries?"+q, nil))
		require.Equal(t, http.StatusOK, rec.Code, q)
		assert.Contains(t, rec.Body.String(), "第二天", q)
	}
}

func TestYearlyMonthlyDiaries(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	require.NoError(t, store.UpsertMonthly(ctx, "u1", "2026-07", "七月"))
	require.NoError(t, store.UpsertMonthly(ctx, "u1", "2025-12", "去年十二月"))
	h := newTestServer(t, store, newFakeTurns())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/yearly-monthly-diaries?user_id=u1&year=2026", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "七月")
	assert.NotContains(t, rec.Body.String(), "去年十二月")
}

func TestOnDemandDailyRollup(t *testing.T) {
	ctx := context.Background()
	store := diary.NewMemStore()
	turns := newFakeTurns()
	require.NoError(t, store.EnsureUser(ctx, "u1"))
	_, err := turns.Append(ctx, "u1", "今天的对话摘要")
	require.NoError(t, err)

	h := newTestServer(t, store, turns)

	today := time.Now().UTC().Format(diary.DateLayout)
	rec := httptest.NewRecorder()
	body := strings.NewReader(`{"user_id":"u1","date":"` + today + `"}`)
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/rollups/daily", body))
	require.Equal(t, http.StatusOK, rec.Code)

	entry, err := store.DailyByDate(ctx, "u1", today)
	require.NoError(t, err)
	assert.Equal(t, "今天的对话摘要", entry.DailySummary)
}

func TestRecentSummary(t *testing.T) {
	ctx := context.Background()
	turns := newFakeTurns()
	h := newTestServer(t, diary.NewMemStore(), turns)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recent-summary?user_id=u1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, err := turns.Append(ctx, "u1", "最近一次的摘要")
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recent-summary?user_id=u1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "最近一次的摘要")
}
