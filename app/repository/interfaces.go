package repository

import (
	"github.com/kampai-studio/kampai/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	UpdatePlan(userID uint, plan string) error
	UpdateLastLogin(userID uint) error
	SetActive(userID uint, active bool) error
	SetAdmin(userID uint, admin bool) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
	Search(query string) ([]models.User, error)
}

// UsageRepository defines the interface for daily usage counter operations
type UsageRepository interface {
	EnsureRow(userID uint, date string) error
	GetDay(userID uint, date string) (*models.UsageCounter, error)
	TotalGenerated(userID uint) (int64, error)
	// ConsumeDaily atomically increments the counter for (userID, date) and
	// appends gen, but only while the count is below limit (a negative limit
	// means unlimited). Returns false when the limit is already reached; in
	// that case nothing is written.
	ConsumeDaily(userID uint, date string, limit int, gen *models.Generation) (bool, error)
}

// SubscriptionRepository defines the interface for subscription rows
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetLatestActive(userID uint) (*models.Subscription, error)
	MarkActiveAs(userID uint, status string) error
	MarkExpired(id uint) error
	ListByUserID(userID uint, limit int) ([]models.Subscription, error)
}

// PaymentRepository defines the interface for payment rows
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByOrderID(orderID string) (*models.Payment, error)
	GetByPaymentKey(paymentKey string) (*models.Payment, error)
	// Approve moves the order from pending to approved and stamps the payment
	// key and approval time in one conditional update. Returns false when the
	// order was not pending, so concurrent confirmations have one winner.
	Approve(orderID, paymentKey string) (bool, error)
	MarkFailed(orderID, reason string) error
	// TransitionByPaymentKey applies status to the payment identified by
	// paymentKey only when its current status is one of allowedFrom. Replayed
	// events find no matching row and report false without error.
	TransitionByPaymentKey(paymentKey, status string, allowedFrom ...string) (bool, error)
	// TransitionByOrderID is the same conditional transition keyed by order
	// identifier, for webhook events on rows that have no payment key yet.
	TransitionByOrderID(orderID, status string, allowedFrom ...string) (bool, error)
	ListByUserID(userID uint, limit int) ([]models.Payment, error)
	List(offset, limit int) ([]models.Payment, error)
	Count() (int64, error)
}

// GenerationRepository defines the interface for the generation log
type GenerationRepository interface {
	Create(gen *models.Generation) error
	CountByUserID(userID uint) (int64, error)
	ListByUserID(userID uint, offset, limit int) ([]models.Generation, error)
	List(offset, limit int) ([]models.Generation, error)
	Count() (int64, error)
}

// AnnouncementRepository defines the interface for announcements
type AnnouncementRepository interface {
	Create(a *models.Announcement) error
	GetByID(id uint) (*models.Announcement, error)
	Update(a *models.Announcement) error
	Delete(id uint) error
	ListPublished() ([]models.Announcement, error)
	ListAll(offset, limit int) ([]models.Announcement, error)
}

// AdminLogRepository defines the interface for the admin audit trail
type AdminLogRepository interface {
	Create(entry *models.AdminLog) error
	List(offset, limit int) ([]models.AdminLog, error)
	Count() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Usage        UsageRepository
	Subscription SubscriptionRepository
	Payment      PaymentRepository
	Generation   GenerationRepository
	Announcement AnnouncementRepository
	AdminLog     AdminLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Usage:        NewUsageRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Payment:      NewPaymentRepository(db),
		Generation:   NewGenerationRepository(db),
		Announcement: NewAnnouncementRepository(db),
		AdminLog:     NewAdminLogRepository(db),
	}
}
