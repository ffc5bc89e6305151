package models

import (
	"time"
)

// Announcement is an operator-published notice shown to all users.
type Announcement struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(200);not null" json:"title" validate:"required,max=200"`
	Body        string    `gorm:"type:text" json:"body"`
	IsPublished bool      `gorm:"default:false;index" json:"is_published"`
	CreatedBy   uint      `gorm:"index" json:"created_by"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
