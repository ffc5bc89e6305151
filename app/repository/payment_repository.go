package repository

import (
	"time"

	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a new payment row
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByOrderID retrieves a payment by its order identifier
func (r *paymentRepository) GetByOrderID(orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("order_id = ?", orderID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByPaymentKey retrieves a payment by the gateway's payment key
func (r *paymentRepository) GetByPaymentKey(paymentKey string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("payment_key = ?", paymentKey).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Approve performs the pending->approved transition as one conditional
// update. Duplicate confirmations for the same order see zero affected rows.
func (r *paymentRepository) Approve(orderID, paymentKey string) (bool, error) {
	now := time.Now()
	res := r.db.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PAYMENT_STATUS_PENDING).
		Updates(map[string]interface{}{
			"status":      models.PAYMENT_STATUS_APPROVED,
			"payment_key": paymentKey,
			"approved_at": &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkFailed records a gateway failure for the pending order
func (r *paymentRepository) MarkFailed(orderID, reason string) error {
	return r.db.Model(&models.Payment{}).
		Where("order_id = ? AND status = ?", orderID, models.PAYMENT_STATUS_PENDING).
		Updates(map[string]interface{}{
			"status":      models.PAYMENT_STATUS_FAILED,
			"fail_reason": reason,
		}).Error
}

// TransitionByPaymentKey applies status only from one of the allowedFrom
// states, making webhook replays a no-op.
func (r *paymentRepository) TransitionByPaymentKey(paymentKey, status string, allowedFrom ...string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("payment_key = ? AND status IN ?", paymentKey, allowedFrom).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// TransitionByOrderID applies status only from one of the allowedFrom
// states, keyed by order identifier.
func (r *paymentRepository) TransitionByOrderID(orderID, status string, allowedFrom ...string) (bool, error) {
	res := r.db.Model(&models.Payment{}).
		Where("order_id = ? AND status IN ?", orderID, allowedFrom).
		Update("status", status)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListByUserID returns the user's payments, newest first
func (r *paymentRepository) ListByUserID(userID uint, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&payments).Error
	return payments, err
}

// List retrieves a paginated list of all payments
func (r *paymentRepository) List(offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&payments).Error
	return payments, err
}

// Count returns the total number of payments
func (r *paymentRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Count(&count).Error
	return count, err
}
