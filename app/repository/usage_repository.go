package repository

import (
	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// usageRepository implements the UsageRepository interface
type usageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository instance
func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

// EnsureRow inserts a zeroed counter for (userID, date) if none exists yet
func (r *usageRepository) EnsureRow(userID uint, date string) error {
	counter := models.UsageCounter{UserID: userID, Date: date}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoNothing: true,
	}).Create(&counter).Error
}

// GetDay returns the counter row for (userID, date); a missing row reads as
// a zero count instead of an error.
func (r *usageRepository) GetDay(userID uint, date string) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := r.db.Where("user_id = ? AND date = ?", userID, date).First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		return &models.UsageCounter{UserID: userID, Date: date}, nil
	}
	if err != nil {
		return nil, err
	}
	return &counter, nil
}

// TotalGenerated returns the all-time generation count for the user
func (r *usageRepository) TotalGenerated(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Generation{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// ConsumeDaily is the only write path for quota consumption. The increment
// carries its own limit guard inside the UPDATE, so two concurrent requests
// for the last slot serialize on the row and exactly one of them wins.
func (r *usageRepository) ConsumeDaily(userID uint, date string, limit int, gen *models.Generation) (bool, error) {
	allowed := false
	err := r.db.Transaction(func(tx *gorm.DB) error {
		counter := models.UsageCounter{UserID: userID, Date: date}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoNothing: true,
		}).Create(&counter).Error; err != nil {
			return err
		}

		res := tx.Model(&models.UsageCounter{}).
			Where("user_id = ? AND date = ? AND (? < 0 OR generation_count < ?)", userID, date, limit, limit).
			Update("generation_count", gorm.Expr("generation_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}

		allowed = true
		if gen != nil {
			if err := tx.Create(gen).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return allowed, nil
}
