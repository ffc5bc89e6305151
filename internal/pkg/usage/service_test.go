package usage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kampai-studio/kampai/app/models"
)

type fixedPlan string

func (p fixedPlan) EffectivePlan(userID uint) (string, error) {
	return string(p), nil
}

// fakeUsageRepo mirrors the storage contract, including the limit guard
// inside ConsumeDaily.
type fakeUsageRepo struct {
	counts map[string]int
	gens   []*models.Generation
}

func newFakeUsageRepo() *fakeUsageRepo {
	return &fakeUsageRepo{counts: map[string]int{}}
}

func key(userID uint, date string) string {
	return fmt.Sprintf("%d/%s", userID, date)
}

func (r *fakeUsageRepo) EnsureRow(userID uint, date string) error {
	if _, ok := r.counts[key(userID, date)]; !ok {
		r.counts[key(userID, date)] = 0
	}
	return nil
}

func (r *fakeUsageRepo) GetDay(userID uint, date string) (*models.UsageCounter, error) {
	return &models.UsageCounter{
		UserID:          userID,
		Date:            date,
		GenerationCount: r.counts[key(userID, date)],
	}, nil
}

func (r *fakeUsageRepo) TotalGenerated(userID uint) (int64, error) {
	var total int64
	for _, g := range r.gens {
		if g.UserID == userID {
			total++
		}
	}
	return total, nil
}

func (r *fakeUsageRepo) ConsumeDaily(userID uint, date string, limit int, gen *models.Generation) (bool, error) {
	k := key(userID, date)
	if limit >= 0 && r.counts[k] >= limit {
		return false, nil
	}
	r.counts[k]++
	if gen != nil {
		r.gens = append(r.gens, gen)
	}
	return true, nil
}

func TestQuotaBoundary(t *testing.T) {
	repo := newFakeUsageRepo()
	svc := NewService(repo, fixedPlan("free"))

	// The free tier allows 3 per day.
	for i := 0; i < 3; i++ {
		snap, err := svc.CheckCanGenerate(1)
		if err != nil {
			t.Fatalf("check %d failed: %v", i, err)
		}
		if !snap.CanGenerate {
			t.Fatalf("check %d denied before the limit", i)
		}
		if err := svc.Increment(1, Metadata{Prompt: "cat"}); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	snap, err := svc.CheckCanGenerate(1)
	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaExceededError after 3 increments, got %v", err)
	}
	if quotaErr.Limit != 3 || !strings.Contains(quotaErr.Error(), "3") {
		t.Fatalf("quota error should name the limit 3, got %q", quotaErr.Error())
	}
	if snap.CanGenerate || snap.Remaining != 0 {
		t.Fatalf("snapshot at limit = %+v", snap)
	}
}

func TestIncrementDeniedAtLimit(t *testing.T) {
	repo := newFakeUsageRepo()
	svc := NewService(repo, fixedPlan("free"))

	for i := 0; i < 3; i++ {
		if err := svc.Increment(1, Metadata{}); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	err := svc.Increment(1, Metadata{})
	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("fourth increment = %v, want QuotaExceededError", err)
	}
	if len(repo.gens) != 3 {
		t.Fatalf("denied increment still appended a log entry: %d entries", len(repo.gens))
	}
}

func TestSnapshotReadIsIdempotent(t *testing.T) {
	repo := newFakeUsageRepo()
	svc := NewService(repo, fixedPlan("basic"))

	if err := svc.Increment(1, Metadata{Prompt: "dog"}); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	first, err := svc.GetSnapshot(1)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := svc.GetSnapshot(1)
		if err != nil {
			t.Fatalf("repeated snapshot failed: %v", err)
		}
		if again != first {
			t.Fatalf("snapshot changed on read: %+v vs %+v", again, first)
		}
	}
	if first.TodayCount != 1 || first.Remaining != 29 {
		t.Fatalf("basic after one increment = %+v", first)
	}
}

func TestUnlimitedSentinel(t *testing.T) {
	repo := newFakeUsageRepo()

	// A negative limit disables the guard but still counts.
	for i := 0; i < 10; i++ {
		ok, err := repo.ConsumeDaily(2, "2026-08-23", -1, nil)
		if err != nil || !ok {
			t.Fatalf("unlimited consume %d = %v, %v", i, ok, err)
		}
	}
	if repo.counts[key(2, "2026-08-23")] != 10 {
		t.Fatalf("unlimited counter = %d, want 10", repo.counts[key(2, "2026-08-23")])
	}
}

func TestSnapshotCountsTotalGenerated(t *testing.T) {
	repo := newFakeUsageRepo()
	svc := NewService(repo, fixedPlan("pro"))

	for i := 0; i < 4; i++ {
		if err := svc.Increment(7, Metadata{Model: "qwen-image"}); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	snap, err := svc.GetSnapshot(7)
	if err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if snap.TotalGenerated != 4 {
		t.Fatalf("total generated = %d, want 4", snap.TotalGenerated)
	}
	if snap.Plan != "pro" || snap.DailyLimit != 100 {
		t.Fatalf("snapshot plan fields = %+v", snap)
	}
}
