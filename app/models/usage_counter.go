package models

import (
	"time"
)

// UsageCounter holds the per-user generation count for one calendar day.
// Exactly one row exists per (user, date); the date is a YYYY-MM-DD string so
// the unique index works the same on MySQL and SQLite.
type UsageCounter struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	UserID          uint      `gorm:"uniqueIndex:idx_usage_user_date;not null" json:"user_id"`
	Date            string    `gorm:"uniqueIndex:idx_usage_user_date;type:varchar(10);not null" json:"date"`
	GenerationCount int       `gorm:"default:0;not null" json:"generation_count"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"-"`
}

// UsageDate formats t as the counter key for its calendar day.
func UsageDate(t time.Time) string {
	return t.Format("2006-01-02")
}
