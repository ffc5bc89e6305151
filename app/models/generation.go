package models

import (
	"time"
)

// Generation is an append-only log entry per produced image. It is history
// and audit only; quota decisions read UsageCounter, never this table.
type Generation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Prompt    string    `gorm:"type:text" json:"prompt"`
	Style     string    `gorm:"type:varchar(100)" json:"style,omitempty"`
	Model     string    `gorm:"type:varchar(100)" json:"model,omitempty"`
	ImagePath string    `gorm:"type:text" json:"image_path,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
