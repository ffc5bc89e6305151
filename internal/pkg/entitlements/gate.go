package entitlements

import (
	"fmt"
)

// PlanResolver yields the user's current plan with expiry already applied.
type PlanResolver interface {
	EffectivePlan(userID uint) (string, error)
}

// UsageReader yields today's consumed generation count for a user.
type UsageReader interface {
	TodayCount(userID uint) (int, error)
}

// Decision is the single allow/deny answer for one generation request,
// including the model and resolution the caller is actually permitted to use.
type Decision struct {
	Allowed   bool   `json:"allowed"`
	Plan      string `json:"plan"`
	Model     string `json:"model"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Remaining int    `json:"remaining"`
	Watermark bool   `json:"watermark"`
	Reason    string `json:"reason,omitempty"`
}

// Gate composes the plan catalog, subscription state and usage counters into
// entitlement decisions.
type Gate struct {
	plans PlanResolver
	usage UsageReader
}

func NewGate(plans PlanResolver, usage UsageReader) *Gate {
	return &Gate{plans: plans, usage: usage}
}

// Decide answers whether the user may generate one more image right now and
// with which model and resolution. A disallowed model falls back to the
// plan's default instead of failing; width/height are clamped to the plan's
// ceiling. Denial happens only on quota exhaustion.
func (g *Gate) Decide(userID uint, requestedModel string, width, height int) (Decision, error) {
	plan, err := g.plans.EffectivePlan(userID)
	if err != nil {
		return Decision{}, err
	}
	info := Info(plan)

	count, err := g.usage.TodayCount(userID)
	if err != nil {
		return Decision{}, err
	}

	model := info.DefaultModel
	if requestedModel != "" && ModelAllowed(plan, requestedModel) {
		model = requestedModel
	}

	if width <= 0 {
		width = DefaultMaxResolution
	}
	if height <= 0 {
		height = DefaultMaxResolution
	}
	if width > info.MaxResolution {
		width = info.MaxResolution
	}
	if height > info.MaxResolution {
		height = info.MaxResolution
	}

	d := Decision{
		Plan:      string(info.Tag),
		Model:     model,
		Width:     width,
		Height:    height,
		Watermark: info.Watermark,
	}

	if info.DailyLimit < 0 {
		d.Allowed = true
		d.Remaining = UnlimitedDaily
		return d, nil
	}

	d.Remaining = info.DailyLimit - count
	if d.Remaining < 0 {
		d.Remaining = 0
	}
	if count >= info.DailyLimit {
		d.Reason = fmt.Sprintf("daily limit of %d generations reached", info.DailyLimit)
		return d, nil
	}

	d.Allowed = true
	return d, nil
}
