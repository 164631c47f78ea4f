package diary

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-memory Store. It backs the rollup and pipeline tests and
// is handy for running the service without a database.
type MemStore struct {
	mu      sync.Mutex
	users   map[string]bool
	daily   map[string]DailyEntry   // key: userID + "|" + date
	monthly map[string]MonthlyEntry // key: userID + "|" + month
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:   make(map[string]bool),
		daily:   make(map[string]DailyEntry),
		monthly: make(map[string]MonthlyEntry),
	}
}

func (s *MemStore) EnsureUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = true
	return nil
}

func (s *MemStore) ListUserIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemStore) UpsertDaily(ctx context.Context, userID, date, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + date
	entry, exists := s.daily[key]
	if !exists {
		entry = DailyEntry{
			ID:        uint64(len(s.daily) + 1),
			UserID:    userID,
			Date:      date,
			CreatedAt: time.Now(),
		}
	}
	entry.DailySummary = summary
	entry.UpdatedAt = time.Now()
	s.daily[key] = entry
	return nil
}

func (s *MemStore) UpsertMonthly(ctx context.Context, userID, month, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + month
	entry, exists := s.monthly[key]
	if !exists {
		entry = MonthlyEntry{
			ID:        uint64(len(s.monthly) + 1),
			UserID:    userID,
			Month:     month,
			CreatedAt: time.Now(),
		}
	}
	entry.MonthlySummary = summary
	entry.UpdatedAt = time.Now()
	s.monthly[key] = entry
	return nil
}

func (s *MemStore) DailyByDate(ctx context.Context, userID, date string) (DailyEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.daily[userID+"|"+date]
	if !ok {
		return DailyEntry{}, ErrNotFound
	}
	return entry, nil
}

func (s *MemStore) DailyInMonth(ctx context.Context, userID, month string) ([]DailyEntry, error) {
	return s.filterDaily(userID, month+"-"), nil
}

func (s *MemStore) ListDaily(ctx context.Context, userID string) ([]DailyEntry, error) {
	return s.filterDaily(userID, ""), nil
}

func (s *MemStore) ListMonthly(ctx context.Context, userID string) ([]MonthlyEntry, error) {
	return s.filterMonthly(userID, ""), nil
}

func (s *MemStore) MonthlyInYear(ctx context.Context, userID, year string) ([]MonthlyEntry, error) {
	return s.filterMonthly(userID, year+"-"), nil
}

func (s *MemStore) filterDaily(userID, datePrefix string) []DailyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DailyEntry
	for _, e := range s.daily {
		if e.UserID == userID && strings.HasPrefix(e.Date, datePrefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (s *MemStore) filterMonthly(userID, monthPrefix string) []MonthlyEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MonthlyEntry
	for _, e := range s.monthly {
		if e.UserID == userID && strings.HasPrefix(e.Month, monthPrefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
