package models

import (
	"time"
)

const (
	PAYMENT_STATUS_PENDING   = "pending"
	PAYMENT_STATUS_APPROVED  = "approved"
	PAYMENT_STATUS_FAILED    = "failed"
	PAYMENT_STATUS_CANCELLED = "cancelled"
	PAYMENT_STATUS_EXPIRED   = "expired"
)

// Payment is one checkout attempt against the payment gateway. Status moves
// strictly forward: pending -> approved|failed|expired, approved -> cancelled.
type Payment struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	OrderID    string     `gorm:"uniqueIndex;type:varchar(100);not null" json:"order_id"`
	PaymentKey string     `gorm:"type:varchar(200);index" json:"payment_key,omitempty"`
	Plan       string     `gorm:"type:varchar(50);not null" json:"plan"`
	Amount     int64      `gorm:"not null" json:"amount"`
	Status     string     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	FailReason string     `gorm:"type:text" json:"fail_reason,omitempty"`
	ApprovedAt *time.Time `gorm:"type:timestamp;default:null" json:"approved_at,omitempty"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"-"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
