package usage

import (
	"fmt"
	"time"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
)

// PlanResolver yields the user's plan with expiry already reconciled.
type PlanResolver interface {
	EffectivePlan(userID uint) (string, error)
}

// QuotaExceededError is returned when the day's generation allowance is spent.
// The message names the numeric limit so clients can show it directly.
type QuotaExceededError struct {
	Limit int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit of %d generations reached", e.Limit)
}

// Snapshot is the read-side view of a user's quota standing.
type Snapshot struct {
	Plan           string `json:"plan"`
	TodayCount     int    `json:"today_count"`
	DailyLimit     int    `json:"daily_limit"`
	Remaining      int    `json:"remaining"`
	TotalGenerated int64  `json:"total_generated"`
	CanGenerate    bool   `json:"can_generate"`
}

// Metadata describes one produced image for the generation log.
type Metadata struct {
	Prompt    string
	Style     string
	Model     string
	ImagePath string
}

// Service owns the daily usage counters and the generation log.
type Service struct {
	usage repository.UsageRepository
	plans PlanResolver
	now   func() time.Time
}

func NewService(usage repository.UsageRepository, plans PlanResolver) *Service {
	return &Service{usage: usage, plans: plans, now: time.Now}
}

// SetClock overrides the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) today() string {
	return models.UsageDate(s.now())
}

// SeedToday creates a zeroed counter for the current day. Called at
// registration so the first snapshot never misses.
func (s *Service) SeedToday(userID uint) error {
	return s.usage.EnsureRow(userID, s.today())
}

// TodayCount returns the generations consumed so far today.
func (s *Service) TodayCount(userID uint) (int, error) {
	counter, err := s.usage.GetDay(userID, s.today())
	if err != nil {
		return 0, err
	}
	return counter.GenerationCount, nil
}

// GetSnapshot reads the user's quota standing. Reading never mutates the
// counter; repeated calls return the same numbers.
func (s *Service) GetSnapshot(userID uint) (Snapshot, error) {
	plan, err := s.plans.EffectivePlan(userID)
	if err != nil {
		return Snapshot{}, err
	}
	info := entitlements.Info(plan)

	counter, err := s.usage.GetDay(userID, s.today())
	if err != nil {
		return Snapshot{}, err
	}
	total, err := s.usage.TotalGenerated(userID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Plan:           string(info.Tag),
		TodayCount:     counter.GenerationCount,
		DailyLimit:     info.DailyLimit,
		TotalGenerated: total,
	}
	if info.DailyLimit < 0 {
		snap.Remaining = entitlements.UnlimitedDaily
		snap.CanGenerate = true
		return snap, nil
	}

	snap.Remaining = info.DailyLimit - counter.GenerationCount
	if snap.Remaining < 0 {
		snap.Remaining = 0
	}
	snap.CanGenerate = counter.GenerationCount < info.DailyLimit
	return snap, nil
}

// CheckCanGenerate reads the snapshot and converts an exhausted quota into
// a QuotaExceededError naming the limit.
func (s *Service) CheckCanGenerate(userID uint) (Snapshot, error) {
	snap, err := s.GetSnapshot(userID)
	if err != nil {
		return Snapshot{}, err
	}
	if !snap.CanGenerate {
		return snap, &QuotaExceededError{Limit: snap.DailyLimit}
	}
	return snap, nil
}

// Increment consumes one generation and appends the log entry. The limit is
// enforced inside the storage write itself, so two concurrent requests for
// the last remaining slot cannot both succeed.
func (s *Service) Increment(userID uint, meta Metadata) error {
	plan, err := s.plans.EffectivePlan(userID)
	if err != nil {
		return err
	}
	limit := entitlements.Info(plan).DailyLimit

	gen := &models.Generation{
		UserID:    userID,
		Prompt:    meta.Prompt,
		Style:     meta.Style,
		Model:     meta.Model,
		ImagePath: meta.ImagePath,
	}

	ok, err := s.usage.ConsumeDaily(userID, s.today(), limit, gen)
	if err != nil {
		return err
	}
	if !ok {
		return &QuotaExceededError{Limit: limit}
	}
	return nil
}
