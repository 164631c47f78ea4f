// Package diary holds the relational side of the system: users and the
// daily/monthly diary entries produced by the rollup jobs.
package diary

import "time"

// Date layouts used throughout the diary tables.
const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

// User is a registered diary user. Account management lives outside this
// service; rows appear here the first time a user converses.
type User struct {
	UserID    string `gorm:"primaryKey;size:36"`
	Username  string `gorm:"size:80"`
	CreatedAt time.Time
}

// DailyEntry is one user's diary for one calendar day. At most one row per
// (user_id, date); rollups upsert, never duplicate.
type DailyEntry struct {
	ID           uint64    `gorm:"primaryKey" json:"-"`
	UserID       string    `gorm:"size:36;not null;index" json:"user_id"`
	Date         string    `gorm:"size:10;not null" json:"date"`
	DailySummary string    `gorm:"type:text" json:"daily_summary"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// MonthlyEntry is one user's diary for one calendar month. At most one row
// per (user_id, month).
type MonthlyEntry struct {
	ID             uint64    `gorm:"primaryKey" json:"-"`
	UserID         string    `gorm:"size:36;not null;index" json:"user_id"`
	Month          string    `gorm:"size:7;not null" json:"month"`
	MonthlySummary string    `gorm:"type:text" json:"monthly_summary"`
	CreatedAt      time.Time `json:"-"`
	UpdatedAt      time.Time `json:"-"`
}
