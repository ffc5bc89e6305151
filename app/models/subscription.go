package models

import (
	"time"
)

const (
	SUB_STATUS_ACTIVE    = "active"
	SUB_STATUS_CANCELLED = "cancelled"
	SUB_STATUS_EXPIRED   = "expired"
)

// Subscription is one plan period for a user. A user accumulates historical
// rows over time; at most one row per user is in status active.
type Subscription struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	Plan       string    `gorm:"type:varchar(50);not null" json:"plan"`
	Status     string    `gorm:"type:varchar(20);default:'active';index" json:"status"`
	StartedAt  time.Time `gorm:"not null" json:"started_at"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`
	PaymentKey string    `gorm:"type:varchar(200)" json:"payment_key,omitempty"`
	OrderID    string    `gorm:"type:varchar(100)" json:"order_id,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

// IsExpired reports whether the period has lapsed at the given instant.
func (s *Subscription) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
