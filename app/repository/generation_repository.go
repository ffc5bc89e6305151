package repository

import (
	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// generationRepository implements the GenerationRepository interface
type generationRepository struct {
	db *gorm.DB
}

// NewGenerationRepository creates a new generation repository instance
func NewGenerationRepository(db *gorm.DB) GenerationRepository {
	return &generationRepository{db: db}
}

// Create appends a generation log entry
func (r *generationRepository) Create(gen *models.Generation) error {
	return r.db.Create(gen).Error
}

// CountByUserID returns the number of generations logged for the user
func (r *generationRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Generation{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

// ListByUserID returns the user's generation history, newest first
func (r *generationRepository) ListByUserID(userID uint, offset, limit int) ([]models.Generation, error) {
	var gens []models.Generation
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&gens).Error
	return gens, err
}

// List retrieves a paginated list of all generations
func (r *generationRepository) List(offset, limit int) ([]models.Generation, error) {
	var gens []models.Generation
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&gens).Error
	return gens, err
}

// Count returns the total number of generation log entries
func (r *generationRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Generation{}).Count(&count).Error
	return count, err
}
