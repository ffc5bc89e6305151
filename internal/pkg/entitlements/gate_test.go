package entitlements

import (
	"strings"
	"testing"
)

type stubPlans struct {
	plan string
}

func (s stubPlans) EffectivePlan(userID uint) (string, error) {
	return s.plan, nil
}

type stubUsage struct {
	count int
}

func (s stubUsage) TodayCount(userID uint) (int, error) {
	return s.count, nil
}

func TestGateDeniesAtLimit(t *testing.T) {
	gate := NewGate(stubPlans{plan: "free"}, stubUsage{count: 3})

	d, err := gate.Decide(1, "", 0, 0)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected denial at the free daily limit")
	}
	if !strings.Contains(d.Reason, "3") {
		t.Fatalf("denial reason should name the limit, got %q", d.Reason)
	}
	if d.Remaining != 0 {
		t.Fatalf("remaining = %d, want 0", d.Remaining)
	}
}

func TestGateAllowsBelowLimit(t *testing.T) {
	gate := NewGate(stubPlans{plan: "free"}, stubUsage{count: 2})

	d, err := gate.Decide(1, "", 0, 0)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !d.Allowed {
		t.Fatalf("expected allowance below the limit, reason=%q", d.Reason)
	}
	if d.Remaining != 1 {
		t.Fatalf("remaining = %d, want 1", d.Remaining)
	}
	if !d.Watermark {
		t.Fatalf("free tier output should carry a watermark")
	}
}

func TestGateModelFallback(t *testing.T) {
	tests := []struct {
		plan      string
		requested string
		want      string
	}{
		{"free", "", ModelFluxSchnell},
		{"free", ModelQwenImage, ModelFluxSchnell},
		{"pro", ModelFlux2Pro, ModelFlux2Pro},
		{"pro", "made-up-model", ModelQwenImage},
		{"business", "", ModelQwenImage},
	}

	for _, tt := range tests {
		gate := NewGate(stubPlans{plan: tt.plan}, stubUsage{count: 0})
		d, err := gate.Decide(1, tt.requested, 512, 512)
		if err != nil {
			t.Fatalf("Decide(%s, %s) failed: %v", tt.plan, tt.requested, err)
		}
		if d.Model != tt.want {
			t.Fatalf("plan %s requesting %q got model %q, want %q", tt.plan, tt.requested, d.Model, tt.want)
		}
	}
}

func TestGateResolutionClamp(t *testing.T) {
	tests := []struct {
		plan   string
		w, h   int
		wantW  int
		wantH  int
	}{
		{"free", 4096, 4096, 1024, 1024},
		{"free", 0, 0, 1024, 1024},
		{"free", 800, 600, 800, 600},
		{"pro", 4096, 1024, 2048, 1024},
		{"business", 2048, 2048, 2048, 2048},
	}

	for _, tt := range tests {
		gate := NewGate(stubPlans{plan: tt.plan}, stubUsage{count: 0})
		d, err := gate.Decide(1, "", tt.w, tt.h)
		if err != nil {
			t.Fatalf("Decide failed: %v", err)
		}
		if d.Width != tt.wantW || d.Height != tt.wantH {
			t.Fatalf("plan %s %dx%d clamped to %dx%d, want %dx%d",
				tt.plan, tt.w, tt.h, d.Width, d.Height, tt.wantW, tt.wantH)
		}
	}
}

func TestGateBusinessNearLimit(t *testing.T) {
	gate := NewGate(stubPlans{plan: "business"}, stubUsage{count: 499})
	d, err := gate.Decide(1, "", 0, 0)
	if err != nil {
		t.Fatalf("Decide failed: %v", err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("business at 499/500 should allow with 1 remaining, got allowed=%v remaining=%d", d.Allowed, d.Remaining)
	}
}
