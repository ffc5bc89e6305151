package repository

import (
	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// adminLogRepository implements the AdminLogRepository interface
type adminLogRepository struct {
	db *gorm.DB
}

// NewAdminLogRepository creates a new admin log repository instance
func NewAdminLogRepository(db *gorm.DB) AdminLogRepository {
	return &adminLogRepository{db: db}
}

// Create appends an audit log entry
func (r *adminLogRepository) Create(entry *models.AdminLog) error {
	return r.db.Create(entry).Error
}

// List retrieves a paginated list of audit entries, newest first
func (r *adminLogRepository) List(offset, limit int) ([]models.AdminLog, error) {
	var entries []models.AdminLog
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&entries).Error
	return entries, err
}

// Count returns the total number of audit entries
func (r *adminLogRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.AdminLog{}).Count(&count).Error
	return count, err
}
