package repository

import (
	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// announcementRepository implements the AnnouncementRepository interface
type announcementRepository struct {
	db *gorm.DB
}

// NewAnnouncementRepository creates a new announcement repository instance
func NewAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &announcementRepository{db: db}
}

// Create inserts a new announcement
func (r *announcementRepository) Create(a *models.Announcement) error {
	return r.db.Create(a).Error
}

// GetByID retrieves an announcement by its ID
func (r *announcementRepository) GetByID(id uint) (*models.Announcement, error) {
	var a models.Announcement
	err := r.db.First(&a, id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Update updates an existing announcement
func (r *announcementRepository) Update(a *models.Announcement) error {
	return r.db.Save(a).Error
}

// Delete removes an announcement
func (r *announcementRepository) Delete(id uint) error {
	return r.db.Delete(&models.Announcement{}, id).Error
}

// ListPublished returns published announcements, newest first
func (r *announcementRepository) ListPublished() ([]models.Announcement, error) {
	var items []models.Announcement
	err := r.db.Where("is_published = ?", true).
		Order("created_at DESC").Find(&items).Error
	return items, err
}

// ListAll retrieves a paginated list of all announcements
func (r *announcementRepository) ListAll(offset, limit int) ([]models.Announcement, error) {
	var items []models.Announcement
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error
	return items, err
}
