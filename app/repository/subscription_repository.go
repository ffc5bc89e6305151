package repository

import (
	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Create inserts a new subscription row
func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

// GetLatestActive returns the most recent active subscription for the user
func (r *subscriptionRepository) GetLatestActive(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ? AND status = ?", userID, models.SUB_STATUS_ACTIVE).
		Order("started_at DESC").First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// MarkActiveAs moves all of the user's active rows into the given status
func (r *subscriptionRepository) MarkActiveAs(userID uint, status string) error {
	return r.db.Model(&models.Subscription{}).
		Where("user_id = ? AND status = ?", userID, models.SUB_STATUS_ACTIVE).
		Update("status", status).Error
}

// MarkExpired flips a single row to expired
func (r *subscriptionRepository) MarkExpired(id uint) error {
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).
		Update("status", models.SUB_STATUS_EXPIRED).Error
}

// ListByUserID returns the user's subscription history, newest first
func (r *subscriptionRepository) ListByUserID(userID uint, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).
		Order("started_at DESC").Limit(limit).Find(&subs).Error
	return subs, err
}
