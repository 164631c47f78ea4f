// Package db opens the relational store and applies schema migrations.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/echodiary/echodiary/internal/diary"
)

// Connect opens a Postgres connection. An unreachable database is a startup
// failure; nothing in the service can mask it.
func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return gdb, nil
}

// AutoMigrateAndIndexes creates tables and the uniqueness constraints the
// rollup upserts rely on: one daily entry per (user, date), one monthly
// entry per (user, month).
func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(
		&diary.User{},
		&diary.DailyEntry{},
		&diary.MonthlyEntry{},
	); err != nil {
		return err
	}

	stmts := []string{
		`create unique index if not exists uq_daily_entries_user_date on daily_entries(user_id, date);`,
		`create unique index if not exists uq_monthly_entries_user_month on monthly_entries(user_id, month);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}
	return nil
}
