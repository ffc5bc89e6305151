package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/internal/pkg/subscription"
)

type fakePaymentRepo struct {
	payments []*models.Payment
	nextID   uint
}

func (r *fakePaymentRepo) Create(p *models.Payment) error {
	r.nextID++
	p.ID = r.nextID
	if p.Status == "" {
		p.Status = models.PAYMENT_STATUS_PENDING
	}
	p.CreatedAt = time.Now()
	r.payments = append(r.payments, p)
	return nil
}

func (r *fakePaymentRepo) GetByOrderID(orderID string) (*models.Payment, error) {
	for _, p := range r.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) GetByPaymentKey(paymentKey string) (*models.Payment, error) {
	for _, p := range r.payments {
		if p.PaymentKey == paymentKey {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakePaymentRepo) Approve(orderID, paymentKey string) (bool, error) {
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == models.PAYMENT_STATUS_PENDING {
			now := time.Now()
			p.Status = models.PAYMENT_STATUS_APPROVED
			p.PaymentKey = paymentKey
			p.ApprovedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *fakePaymentRepo) MarkFailed(orderID, reason string) error {
	for _, p := range r.payments {
		if p.OrderID == orderID && p.Status == models.PAYMENT_STATUS_PENDING {
			p.Status = models.PAYMENT_STATUS_FAILED
			p.FailReason = reason
		}
	}
	return nil
}

func (r *fakePaymentRepo) transition(match func(*models.Payment) bool, status string, allowedFrom []string) (bool, error) {
	won := false
	for _, p := range r.payments {
		if !match(p) {
			continue
		}
		for _, from := range allowedFrom {
			if p.Status == from {
				p.Status = status
				won = true
				break
			}
		}
	}
	return won, nil
}

func (r *fakePaymentRepo) TransitionByPaymentKey(paymentKey, status string, allowedFrom ...string) (bool, error) {
	return r.transition(func(p *models.Payment) bool { return p.PaymentKey == paymentKey }, status, allowedFrom)
}

func (r *fakePaymentRepo) TransitionByOrderID(orderID, status string, allowedFrom ...string) (bool, error) {
	return r.transition(func(p *models.Payment) bool { return p.OrderID == orderID }, status, allowedFrom)
}

func (r *fakePaymentRepo) ListByUserID(userID uint, limit int) ([]models.Payment, error) {
	var out []models.Payment
	for i := len(r.payments) - 1; i >= 0 && len(out) < limit; i-- {
		if r.payments[i].UserID == userID {
			out = append(out, *r.payments[i])
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) List(offset, limit int) ([]models.Payment, error) { return nil, nil }
func (r *fakePaymentRepo) Count() (int64, error)                            { return int64(len(r.payments)), nil }

type fakeGateway struct {
	confirmErr  error
	cancelErr   error
	confirmCall int
	cancelCall  int
}

func (g *fakeGateway) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) error {
	g.confirmCall++
	return g.confirmErr
}

func (g *fakeGateway) Cancel(ctx context.Context, paymentKey, reason string) error {
	g.cancelCall++
	return g.cancelErr
}

type fakeUserRepo struct {
	user *models.User
}

func (r *fakeUserRepo) Create(user *models.User) error { return nil }

func (r *fakeUserRepo) GetByID(id uint) (*models.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetByEmail(email string) (*models.User, error) {
	if r.user != nil && r.user.Email == email {
		return r.user, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) Update(user *models.User) error { return nil }

func (r *fakeUserRepo) UpdatePlan(userID uint, plan string) error {
	r.user.Plan = plan
	return nil
}

func (r *fakeUserRepo) UpdateLastLogin(userID uint) error          { return nil }
func (r *fakeUserRepo) SetActive(userID uint, active bool) error   { return nil }
func (r *fakeUserRepo) SetAdmin(userID uint, admin bool) error     { return nil }
func (r *fakeUserRepo) List(offset, limit int) ([]models.User, error) {
	return nil, nil
}
func (r *fakeUserRepo) Count() (int64, error)                      { return 1, nil }
func (r *fakeUserRepo) Search(query string) ([]models.User, error) { return nil, nil }

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
		if sub.UserID == userID && sub.Status == models.SUB_STATUS_ACTIVE {
			if latest == nil || sub.StartedAt.After(latest.StartedAt) {
				latest = sub
			}
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
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *fakePaymentRepo, *fakeGateway, *subscription.Service, *models.User) {
	t.Helper()
	user := &models.User{ID: 1, Email: "a@x.com", Plan: models.PLAN_FREE, IsActive: true}
	subs := subscription.NewService(&fakeUserRepo{user: user}, &fakeSubRepo{})
	payments := &fakePaymentRepo{}
	gateway := &fakeGateway{}
	return NewService(payments, subs, gateway), payments, gateway, subs, user
}

func TestCreateOrderAmountTable(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	tests := []struct {
		plan   string
		amount int64
	}{
		{"basic", 4900},
		{"pro", 19900},
		{"business", 99000},
	}

	for _, tt := range tests {
		order, err := svc.CreateOrder(1, tt.plan)
		if err != nil {
			t.Fatalf("CreateOrder(%s) failed: %v", tt.plan, err)
		}
		if order.Amount != tt.amount {
			t.Fatalf("%s order amount = %d, want %d", tt.plan, order.Amount, tt.amount)
		}
	}
}

func TestCreateOrderRejectsFreeAndUnknown(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	for _, plan := range []string{"free", "gold", ""} {
		if _, err := svc.CreateOrder(1, plan); !errors.Is(err, ErrUnknownPlan) {
			t.Fatalf("CreateOrder(%q) = %v, want ErrUnknownPlan", plan, err)
		}
	}
}

func TestConfirmTestMarkerShortCircuitsGateway(t *testing.T) {
	svc, _, gateway, subs, user := newTestService(t)

	order, err := svc.CreateOrder(1, "pro")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	p, err := svc.Confirm(context.Background(), "test_payment_abc", order.OrderID, 19900)
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if p.Status != models.PAYMENT_STATUS_APPROVED {
		t.Fatalf("payment status = %q, want approved", p.Status)
	}
	if gateway.confirmCall != 0 {
		t.Fatalf("test marker payment still called the gateway %d times", gateway.confirmCall)
	}
	if user.Plan != "pro" {
		t.Fatalf("plan after confirmation = %q, want pro", user.Plan)
	}

	status, err := subs.CurrentStatus(1)
	if err != nil {
		t.Fatalf("CurrentStatus failed: %v", err)
	}
	if !status.Active || status.Plan != "pro" {
		t.Fatalf("subscription after confirmation = %+v", status)
	}
	until := time.Until(*status.ExpiresAt)
	if until < 29*24*time.Hour || until > 31*24*time.Hour {
		t.Fatalf("expiry %v is not about 30 days out", status.ExpiresAt)
	}
}

func TestConfirmAcceptsVATAmount(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	order, err := svc.CreateOrder(1, "pro")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// 19900 + 10% = 21890
	if _, err := svc.Confirm(context.Background(), "test_payment_vat", order.OrderID, 21890); err != nil {
		t.Fatalf("Confirm with VAT amount failed: %v", err)
	}
}

func TestConfirmAmountMismatchLeavesPending(t *testing.T) {
	svc, payments, _, _, _ := newTestService(t)

	order, err := svc.CreateOrder(1, "pro")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	_, err = svc.Confirm(context.Background(), "test_payment_bad", order.OrderID, 1)
	var mismatch *AmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Confirm with wrong amount = %v, want AmountMismatchError", err)
	}
	if mismatch.Expected != 19900 || mismatch.Got != 1 {
		t.Fatalf("mismatch detail = %+v", mismatch)
	}

	p, _ := payments.GetByOrderID(order.OrderID)
	if p.Status != models.PAYMENT_STATUS_PENDING {
		t.Fatalf("payment status after mismatch = %q, want pending", p.Status)
	}
}

func TestConfirmUnknownOrder(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	if _, err := svc.Confirm(context.Background(), "test_payment_x", "KAMPAI_9_pro_20260101000000", 19900); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("Confirm on missing order = %v, want ErrOrderNotFound", err)
	}
}

func TestConfirmTwiceIsRejected(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	order, err := svc.CreateOrder(1, "basic")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), "test_payment_1", order.OrderID, 4900); err != nil {
		t.Fatalf("first Confirm failed: %v", err)
	}
	if _, err := svc.Confirm(context.Background(), "test_payment_1", order.OrderID, 4900); !errors.Is(err, ErrAlreadyProcessed) {
		t.Fatalf("second Confirm = %v, want ErrAlreadyProcessed", err)
	}
}

func TestConfirmGatewayFailureMarksFailed(t *testing.T) {
	svc, payments, gateway, _, user := newTestService(t)
	gateway.confirmErr = &GatewayError{Code: "REJECT_CARD_COMPANY", Message: "declined"}

	order, err := svc.CreateOrder(1, "pro")
	if err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	if _, err := svc.Confirm(context.Background(), "live_key_123", order.OrderID, 19900); err == nil {
		t.Fatalf("Confirm should surface the gateway failure")
	}

	p, _ := payments.GetByOrderID(order.OrderID)
	if p.Status != models.PAYMENT_STATUS_FAILED {
		t.Fatalf("payment status after gateway failure = %q, want failed", p.Status)
	}
	if user.Plan != "free" {
		t.Fatalf("plan changed despite gateway failure: %q", user.Plan)
	}
}

func TestCancelDowngradesOwner(t *testing.T) {
	svc, payments, _, _, user := newTestService(t)

	order, _ := svc.CreateOrder(1, "pro")
	if _, err := svc.Confirm(context.Background(), "test_payment_c", order.OrderID, 19900); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := svc.Cancel(context.Background(), "test_payment_c", "requested by user"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	p, _ := payments.GetByOrderID(order.OrderID)
	if p.Status != models.PAYMENT_STATUS_CANCELLED {
		t.Fatalf("payment status after cancel = %q, want cancelled", p.Status)
	}
	if user.Plan != "free" {
		t.Fatalf("plan after cancel = %q, want free", user.Plan)
	}
}

func TestWebhookReplayIsIdempotent(t *testing.T) {
	svc, payments, _, _, user := newTestService(t)

	order, _ := svc.CreateOrder(1, "basic")

	event := WebhookEvent{EventType: "PAYMENT_STATUS_CHANGED"}
	event.Data.OrderID = order.OrderID
	event.Data.PaymentKey = "hook_key_1"
	event.Data.Status = "DONE"

	if err := svc.HandleWebhook(event); err != nil {
		t.Fatalf("first webhook delivery failed: %v", err)
	}
	p, _ := payments.GetByOrderID(order.OrderID)
	statusAfterFirst := p.Status
	planAfterFirst := user.Plan

	// Duplicate delivery must not change anything.
	if err := svc.HandleWebhook(event); err != nil {
		t.Fatalf("replayed webhook failed: %v", err)
	}
	p, _ = payments.GetByOrderID(order.OrderID)
	if p.Status != statusAfterFirst || user.Plan != planAfterFirst {
		t.Fatalf("replay changed state: status %q->%q plan %q->%q",
			statusAfterFirst, p.Status, planAfterFirst, user.Plan)
	}
	if p.Status != models.PAYMENT_STATUS_APPROVED || user.Plan != "basic" {
		t.Fatalf("webhook DONE result = status %q plan %q", p.Status, user.Plan)
	}
}

func TestWebhookUnknownEventIgnored(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	event := WebhookEvent{EventType: "SOMETHING_ELSE"}
	if err := svc.HandleWebhook(event); err != nil {
		t.Fatalf("unknown event type should be accepted, got %v", err)
	}

	event = WebhookEvent{EventType: "PAYMENT_STATUS_CHANGED"}
	event.Data.OrderID = "KAMPAI_1_pro_20260101000000"
	event.Data.Status = "WAITING_FOR_DEPOSIT"
	if err := svc.HandleWebhook(event); err != nil {
		t.Fatalf("unknown status should be accepted, got %v", err)
	}
}

func TestWebhookExpiredOnlyFromPending(t *testing.T) {
	svc, payments, _, _, _ := newTestService(t)

	order, _ := svc.CreateOrder(1, "pro")
	if _, err := svc.Confirm(context.Background(), "test_payment_e", order.OrderID, 19900); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	event := WebhookEvent{EventType: "PAYMENT_STATUS_CHANGED"}
	event.Data.OrderID = order.OrderID
	event.Data.Status = "EXPIRED"
	if err := svc.HandleWebhook(event); err != nil {
		t.Fatalf("webhook failed: %v", err)
	}

	p, _ := payments.GetByOrderID(order.OrderID)
	if p.Status != models.PAYMENT_STATUS_APPROVED {
		t.Fatalf("EXPIRED moved an approved payment to %q", p.Status)
	}
}
