package subscription

import (
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/models"
)

type fakeUserRepo struct {
	users map[uint]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[uint]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(user *models.User) error {
	user.ID = uint(len(r.users) + 1)
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *models.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) UpdatePlan(userID uint, plan string) error {
	u, ok := r.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.Plan = plan
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(userID uint) error {
	now := time.Now()
	r.users[userID].LastLoginAt = &now
	return nil
}

func (r *fakeUserRepo) SetActive(userID uint, active bool) error {
	r.users[userID].IsActive = active
	return nil
}

func (r *fakeUserRepo) SetAdmin(userID uint, admin bool) error {
	r.users[userID].IsAdmin = admin
	return nil
}

func (r *fakeUserRepo) List(offset, limit int) ([]models.User, error) { return nil, nil }
func (r *fakeUserRepo) Count() (int64, error)                         { return int64(len(r.users)), nil }
func (r *fakeUserRepo) Search(query string) ([]models.User, error)    { return nil, nil }

type fakeSubRepo struct {
	subs   []*models.Subscription
	nextID uint
}

func (r *fakeSubRepo) Create(sub *models.Subscription) error {
	r.nextID++
	sub.ID = r.nextID
	r.subs = append(r.subs, sub)
	return nil
}

func (r *fakeSubRepo) GetLatestActive(userID uint) (*models.Subscription, error) {
	var latest *models.Subscription
	for _, sub := range r.subs {
		if sub.UserID != userID || sub.Status != models.SUB_STATUS_ACTIVE {
			continue
		}
		if latest == nil || sub.StartedAt.After(latest.StartedAt) {
			latest = sub
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (r *fakeSubRepo) MarkActiveAs(userID uint, status string) error {
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.Status == models.SUB_STATUS_ACTIVE {
			sub.Status = status
		}
	}
	return nil
}

func (r *fakeSubRepo) MarkExpired(id uint) error {
	for _, sub := range r.subs {
		if sub.ID == id {
			sub.Status = models.SUB_STATUS_EXPIRED
		}
	}
	return nil
}

func (r *fakeSubRepo) ListByUserID(userID uint, limit int) ([]models.Subscription, error) {
	var out []models.Subscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func newTestService(user *models.User) (*Service, *fakeUserRepo, *fakeSubRepo) {
	users := newFakeUserRepo(user)
	subs := &fakeSubRepo{}
	return NewService(users, subs), users, subs
}

func TestUpgradeSetsExpiryThirtyDaysOut(t *testing.T) {
	user := &models.User{ID: 1, Plan: models.PLAN_FREE, IsActive: true}
	svc, users, _ := newTestService(user)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return base })

	sub, err := svc.Upgrade(1, "pro", "pay_key_1", "KAMPAI_1_pro_20260801120000")
	if err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if want := base.AddDate(0, 0, 30); !sub.ExpiresAt.Equal(want) {
		t.Fatalf("expires at %v, want %v", sub.ExpiresAt, want)
	}
	if users.users[1].Plan != "pro" {
		t.Fatalf("user plan = %q, want pro", users.users[1].Plan)
	}

	status, err := svc.CurrentStatus(1)
	if err != nil {
		t.Fatalf("CurrentStatus failed: %v", err)
	}
	if !status.Active || status.Plan != "pro" || status.IsExpired {
		t.Fatalf("status after upgrade = %+v", status)
	}
}

func TestUpgradeRejectsFreeAndUnknownPlans(t *testing.T) {
	svc, _, _ := newTestService(&models.User{ID: 1, Plan: models.PLAN_FREE})

	for _, plan := range []string{"free", "platinum", ""} {
		if _, err := svc.Upgrade(1, plan, "key", "order"); !errors.Is(err, ErrUnknownPlan) {
			t.Fatalf("Upgrade(%q) = %v, want ErrUnknownPlan", plan, err)
		}
	}
}

func TestUpgradeRetiresPriorActiveRow(t *testing.T) {
	svc, _, subs := newTestService(&models.User{ID: 1, Plan: models.PLAN_FREE})

	if _, err := svc.Upgrade(1, "basic", "key1", "order1"); err != nil {
		t.Fatalf("first upgrade failed: %v", err)
	}
	if _, err := svc.Upgrade(1, "pro", "key2", "order2"); err != nil {
		t.Fatalf("second upgrade failed: %v", err)
	}

	active := 0
	for _, sub := range subs.subs {
		if sub.Status == models.SUB_STATUS_ACTIVE {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active rows after two upgrades = %d, want 1", active)
	}
}

func TestStatusWithoutSubscriptionIsFree(t *testing.T) {
	svc, _, _ := newTestService(&models.User{ID: 1, Plan: models.PLAN_FREE})

	status, err := svc.CurrentStatus(1)
	if err != nil {
		t.Fatalf("CurrentStatus failed: %v", err)
	}
	if status.Active || status.Plan != "free" || status.ExpiresAt != nil {
		t.Fatalf("empty status = %+v, want inactive free with no expiry", status)
	}
}

func TestEffectivePlanLazyExpiry(t *testing.T) {
	user := &models.User{ID: 1, Plan: models.PLAN_FREE, IsActive: true}
	svc, users, subs := newTestService(user)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return base })

	if _, err := svc.Upgrade(1, "pro", "key", "order"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}

	plan, err := svc.EffectivePlan(1)
	if err != nil || plan != "pro" {
		t.Fatalf("EffectivePlan before expiry = %q, %v; want pro", plan, err)
	}

	// Jump past the period end; the next read must downgrade.
	svc.SetClock(func() time.Time { return base.AddDate(0, 0, 31) })
	plan, err = svc.EffectivePlan(1)
	if err != nil || plan != "free" {
		t.Fatalf("EffectivePlan after expiry = %q, %v; want free", plan, err)
	}
	if users.users[1].Plan != "free" {
		t.Fatalf("user plan not downgraded, still %q", users.users[1].Plan)
	}
	if sub, _ := subs.GetLatestActive(1); sub != nil {
		t.Fatalf("expired row still reads as active: %+v", sub)
	}
}

func TestCancelOnFreePlan(t *testing.T) {
	svc, _, _ := newTestService(&models.User{ID: 1, Plan: models.PLAN_FREE})

	if err := svc.Cancel(1); !errors.Is(err, ErrAlreadyFree) {
		t.Fatalf("Cancel on free = %v, want ErrAlreadyFree", err)
	}
}

func TestCancelDowngradesAndMarksRows(t *testing.T) {
	svc, users, subs := newTestService(&models.User{ID: 1, Plan: models.PLAN_FREE})

	if _, err := svc.Upgrade(1, "pro", "key", "order"); err != nil {
		t.Fatalf("Upgrade failed: %v", err)
	}
	if err := svc.Cancel(1); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if users.users[1].Plan != "free" {
		t.Fatalf("plan after cancel = %q, want free", users.users[1].Plan)
	}
	for _, sub := range subs.subs {
		if sub.Status == models.SUB_STATUS_ACTIVE {
			t.Fatalf("active row survived cancel: %+v", sub)
		}
	}
}
