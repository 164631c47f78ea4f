package diary

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by point reads when no entry exists for the
// requested period. Missing data is an expected condition, not a failure.
var ErrNotFound = errors.New("diary: entry not found")

// Store is the diary persistence boundary. The production implementation is
// Postgres via gorm; tests use MemStore.
type Store interface {
	// EnsureUser creates the user row if it does not exist yet.
	EnsureUser(ctx context.Context, userID string) error

	// ListUserIDs returns every known user, for the all-users rollups.
	ListUserIDs(ctx context.Context) ([]string, error)

	// UpsertDaily writes the daily summary for (userID, date), overwriting
	// any existing entry for that day.
	UpsertDaily(ctx context.Context, userID, date, summary string) error

	// UpsertMonthly writes the monthly summary for (userID, month),
	// overwriting any existing entry for that month.
	UpsertMonthly(ctx context.Context, userID, month, summary string) error

	// DailyByDate returns the entry for one day, or ErrNotFound.
	DailyByDate(ctx context.Context, userID, date string) (DailyEntry, error)

	// DailyInMonth returns the daily entries whose date falls in the given
	// month ("2006-01"), ordered by date ascending.
	DailyInMonth(ctx context.Context, userID, month string) ([]DailyEntry, error)

	// ListDaily returns all daily entries for a user, date ascending.
	ListDaily(ctx context.Context, userID string) ([]DailyEntry, error)

	// ListMonthly returns all monthly entries for a user, month ascending.
	ListMonthly(ctx context.Context, userID string) ([]MonthlyEntry, error)

	// MonthlyInYear returns the monthly entries for a year ("2006"),
	// ordered by month ascending.
	MonthlyInYear(ctx context.Context, userID, year string) ([]MonthlyEntry, error)
}

// GormStore implements Store on a gorm-managed database.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) EnsureUser(ctx context.Context, userID string) error {
	user := User{UserID: userID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&user).Error
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}
	return nil
}

func (s *GormStore) ListUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).
		Model(&User{}).
		Order("user_id asc").
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

func (s *GormStore) UpsertDaily(ctx context.Context, userID, date, summary string) error {
	entry := DailyEntry{
		UserID:       userID,
		Date:         date,
		DailySummary: summary,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"daily_summary", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert daily entry: %w", err)
	}
	return nil
}

func (s *GormStore) UpsertMonthly(ctx context.Context, userID, month, summary string) error {
	entry := MonthlyEntry{
		UserID:         userID,
		Month:          month,
		MonthlySummary: summary,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"monthly_summary", "updated_at"}),
		}).
		Create(&entry).Error
	if err != nil {
		return fmt.Errorf("upsert monthly entry: %w", err)
	}
	return nil
}

func (s *GormStore) DailyByDate(ctx context.Context, userID, date string) (DailyEntry, error) {
	var entry DailyEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date = ?", userID, date).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DailyEntry{}, ErrNotFound
	}
	if err != nil {
		return DailyEntry{}, fmt.Errorf("read daily entry: %w", err)
	}
	return entry, nil
}

func (s *GormStore) DailyInMonth(ctx context.Context, userID, month string) ([]DailyEntry, error) {
	var entries []DailyEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND date LIKE ?", userID, month+"-%").
		Order("date asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list daily entries for month: %w", err)
	}
	return entries, nil
}

func (s *GormStore) ListDaily(ctx context.Context, userID string) ([]DailyEntry, error) {
	var entries []DailyEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list daily entries: %w", err)
	}
	return entries, nil
}

func (s *GormStore) ListMonthly(ctx context.Context, userID string) ([]MonthlyEntry, error) {
	var entries []MonthlyEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("month asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list monthly entries: %w", err)
	}
	return entries, nil
}

func (s *GormStore) MonthlyInYear(ctx context.Context, userID, year string) ([]MonthlyEntry, error) {
	var entries []MonthlyEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND month LIKE ?", userID, year+"-%").
		Order("month asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("list monthly entries for year: %w", err)
	}
	return entries, nil
}
