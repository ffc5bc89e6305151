package repository

import (
	"strings"
	"time"

	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdatePlan sets only the plan column for the given user
func (r *userRepository) UpdatePlan(userID uint, plan string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("plan", plan).Error
}

// UpdateLastLogin stamps the last_login_at column with the current time
func (r *userRepository) UpdateLastLogin(userID uint) error {
	now := time.Now()
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("last_login_at", &now).Error
}

// SetActive flips the active flag for the given user
func (r *userRepository) SetActive(userID uint, active bool) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("is_active", active).Error
}

// SetAdmin flips the admin flag for the given user
func (r *userRepository) SetAdmin(userID uint, admin bool) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("is_admin", admin).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// Search searches for users by name or email
func (r *userRepository) Search(query string) ([]models.User, error) {
	var users []models.User
	searchPattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.Where("name LIKE ? OR email LIKE ?", searchPattern, searchPattern).Find(&users).Error
	return users, err
}
