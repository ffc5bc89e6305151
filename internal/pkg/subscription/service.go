package subscription

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
)

// PeriodDays is the length of one paid subscription period.
const PeriodDays = 30

var (
	ErrAlreadyFree = errors.New("already on the free plan")
	ErrUnknownPlan = errors.New("unknown plan")
)

// Status is the read-side view of a user's subscription state.
type Status struct {
	Active    bool       `json:"active"`
	Plan      string     `json:"plan"`
	Status    string     `json:"status,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsExpired bool       `json:"is_expired"`
}

// Service owns subscription rows and the plan column on the user row.
type Service struct {
	users repository.UserRepository
	subs  repository.SubscriptionRepository
	now   func() time.Time
}

func NewService(users repository.UserRepository, subs repository.SubscriptionRepository) *Service {
	return &Service{users: users, subs: subs, now: time.Now}
}

// SetClock overrides the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Upgrade records a paid plan change. Any previously active row is retired
// first so at most one active subscription exists per user.
func (s *Service) Upgrade(userID uint, plan, paymentKey, orderID string) (*models.Subscription, error) {
	if !entitlements.Known(plan) || plan == string(entitlements.PlanFree) {
		return nil, ErrUnknownPlan
	}

	if err := s.subs.MarkActiveAs(userID, models.SUB_STATUS_EXPIRED); err != nil {
		return nil, err
	}

	now := s.now()
	sub := &models.Subscription{
		UserID:     userID,
		Plan:       plan,
		Status:     models.SUB_STATUS_ACTIVE,
		StartedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, PeriodDays),
		PaymentKey: paymentKey,
		OrderID:    orderID,
	}
	if err := s.subs.Create(sub); err != nil {
		return nil, err
	}

	if err := s.users.UpdatePlan(userID, plan); err != nil {
		return nil, err
	}

	log.Infof("[Subscription] User %d upgraded to %s until %s", userID, plan, sub.ExpiresAt.Format(time.RFC3339))
	return sub, nil
}

// CurrentStatus reports the user's most recent active subscription; without
// one the free tier is reported as active with no expiry.
func (s *Service) CurrentStatus(userID uint) (Status, error) {
	sub, err := s.subs.GetLatestActive(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Status{Active: false, Plan: string(entitlements.PlanFree)}, nil
		}
		return Status{}, err
	}

	return Status{
		Active:    true,
		Plan:      sub.Plan,
		Status:    sub.Status,
		StartedAt: &sub.StartedAt,
		ExpiresAt: &sub.ExpiresAt,
		IsExpired: sub.IsExpired(s.now()),
	}, nil
}

// EffectivePlan is the single source of truth for entitlement reads. Expiry
// is reconciled lazily here: a lapsed subscription is flipped to expired and
// the user downgraded the first time anyone asks.
func (s *Service) EffectivePlan(userID uint) (string, error) {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return "", err
	}

	sub, err := s.subs.GetLatestActive(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.Plan, nil
		}
		return "", err
	}

	if sub.IsExpired(s.now()) {
		if err := s.subs.MarkExpired(sub.ID); err != nil {
			return "", err
		}
		if err := s.users.UpdatePlan(userID, string(entitlements.PlanFree)); err != nil {
			return "", err
		}
		log.Infof("[Subscription] User %d plan %s expired, downgraded to free", userID, sub.Plan)
		return string(entitlements.PlanFree), nil
	}

	return user.Plan, nil
}

// Cancel is the user-initiated downgrade. Cancelling while already free is a
// conflict rather than a no-op so the client can tell the difference.
func (s *Service) Cancel(userID uint) error {
	user, err := s.users.GetByID(userID)
	if err != nil {
		return err
	}
	if user.Plan == string(entitlements.PlanFree) {
		return ErrAlreadyFree
	}

	return s.Downgrade(userID)
}

// Downgrade cancels all active rows and resets the plan to free. Used by
// Cancel and by payment cancellation, where already-free is not an error.
func (s *Service) Downgrade(userID uint) error {
	if err := s.subs.MarkActiveAs(userID, models.SUB_STATUS_CANCELLED); err != nil {
		return err
	}
	return s.users.UpdatePlan(userID, string(entitlements.PlanFree))
}

// History returns the user's subscription rows, newest first.
func (s *Service) History(userID uint, limit int) ([]models.Subscription, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.subs.ListByUserID(userID, limit)
}
