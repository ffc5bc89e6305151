package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/env"
	"github.com/kampai-studio/kampai/internal/pkg/subscription"
)

// TestPaymentPrefix marks payment keys that skip the live gateway entirely.
const TestPaymentPrefix = "test_payment_"

// vatPercent is the surcharge tolerated on top of the base price.
const vatPercent = 10

var (
	ErrUnknownPlan      = errors.New("unknown or unpriced plan")
	ErrOrderNotFound    = errors.New("order not found")
	ErrAlreadyProcessed = errors.New("payment already processed")
)

// AmountMismatchError reports a confirmation amount that matches neither the
// base price nor the price including VAT.
type AmountMismatchError struct {
	Expected int64
	Got      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %d (or %d with VAT), got %d",
		e.Expected, e.Expected+e.Expected*vatPercent/100, e.Got)
}

// Order is the client-facing result of creating a checkout.
type Order struct {
	OrderID   string `json:"order_id"`
	OrderName string `json:"order_name"`
	Plan      string `json:"plan"`
	Amount    int64  `json:"amount"`
	ClientKey string `json:"client_key"`
}

// WebhookEvent mirrors the gateway's pushed payment status notification.
type WebhookEvent struct {
	EventType string `json:"eventType"`
	Data      struct {
		PaymentKey string `json:"paymentKey"`
		OrderID    string `json:"orderId"`
		Status     string `json:"status"`
	} `json:"data"`
}

// Service reconciles gateway confirmations onto payments and subscriptions.
type Service struct {
	payments repository.PaymentRepository
	subs     *subscription.Service
	gateway  GatewayClient
	now      func() time.Time
}

func NewService(payments repository.PaymentRepository, subs *subscription.Service, gateway GatewayClient) *Service {
	return &Service{payments: payments, subs: subs, gateway: gateway, now: time.Now}
}

// SetClock overrides the time source; used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CreateOrder opens a pending payment for a paid plan. The order identifier
// embeds the user, plan and a second-resolution timestamp.
func (s *Service) CreateOrder(userID uint, plan string) (*Order, error) {
	plan = strings.ToLower(strings.TrimSpace(plan))
	if !entitlements.Known(plan) {
		return nil, ErrUnknownPlan
	}
	info := entitlements.Info(plan)
	if info.Price <= 0 {
		return nil, ErrUnknownPlan
	}

	orderID := fmt.Sprintf("KAMPAI_%d_%s_%s", userID, plan, s.now().Format("20060102150405"))
	p := &models.Payment{
		UserID:  userID,
		OrderID: orderID,
		Plan:    plan,
		Amount:  info.Price,
		Status:  models.PAYMENT_STATUS_PENDING,
	}
	if err := s.payments.Create(p); err != nil {
		return nil, err
	}

	log.Infof("[Payment] Order %s created for user %d (%s, %d KRW)", orderID, userID, plan, info.Price)
	return &Order{
		OrderID:   orderID,
		OrderName: info.Name + " Plan",
		Plan:      plan,
		Amount:    info.Price,
		ClientKey: env.GetEnv("TOSS_CLIENT_KEY", ""),
	}, nil
}

// amountAcceptable tolerates the bare plan price or the price plus VAT.
func amountAcceptable(expected, got int64) bool {
	return got == expected || got == expected+expected*vatPercent/100
}

// Confirm settles a pending order. The pending->approved transition is a
// single conditional update, so duplicate confirmations for the same order
// have exactly one winner and only that caller applies the plan upgrade.
func (s *Service) Confirm(ctx context.Context, paymentKey, orderID string, amount int64) (*models.Payment, error) {
	p, err := s.payments.GetByOrderID(orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if p.Status != models.PAYMENT_STATUS_PENDING {
		return nil, ErrAlreadyProcessed
	}

	if !amountAcceptable(p.Amount, amount) {
		return nil, &AmountMismatchError{Expected: p.Amount, Got: amount}
	}

	if !strings.HasPrefix(paymentKey, TestPaymentPrefix) {
		if err := s.gateway.Confirm(ctx, paymentKey, orderID, amount); err != nil {
			if markErr := s.payments.MarkFailed(orderID, err.Error()); markErr != nil {
				log.Errorf("[Payment] Failed to mark order %s failed: %v", orderID, markErr)
			}
			return nil, fmt.Errorf("gateway confirmation failed: %w", err)
		}
	}

	won, err := s.payments.Approve(orderID, paymentKey)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrAlreadyProcessed
	}

	if _, err := s.subs.Upgrade(p.UserID, p.Plan, paymentKey, orderID); err != nil {
		return nil, err
	}

	log.Infof("[Payment] Order %s approved, user %d moved to %s", orderID, p.UserID, p.Plan)
	return s.payments.GetByOrderID(orderID)
}

// Cancel voids an approved payment at the gateway and downgrades the owner.
func (s *Service) Cancel(ctx context.Context, paymentKey, reason string) error {
	p, err := s.payments.GetByPaymentKey(paymentKey)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		return err
	}

	if !strings.HasPrefix(paymentKey, TestPaymentPrefix) {
		if err := s.gateway.Cancel(ctx, paymentKey, reason); err != nil {
			return fmt.Errorf("gateway cancellation failed: %w", err)
		}
	}

	won, err := s.payments.TransitionByPaymentKey(paymentKey, models.PAYMENT_STATUS_CANCELLED,
		models.PAYMENT_STATUS_APPROVED, models.PAYMENT_STATUS_PENDING)
	if err != nil {
		return err
	}
	if !won {
		return ErrAlreadyProcessed
	}

	if err := s.subs.Downgrade(p.UserID); err != nil {
		return err
	}

	log.Infof("[Payment] Payment %s cancelled (%s), user %d downgraded", paymentKey, reason, p.UserID)
	return nil
}

// History returns the user's most recent payments, newest first.
func (s *Service) History(userID uint, limit int) ([]models.Payment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.payments.ListByUserID(userID, limit)
}

// HandleWebhook applies a gateway-pushed status change. Transitions are
// conditional on the current status, so duplicate deliveries of the same
// event are no-ops. Unknown event types and statuses are accepted silently.
// Pending rows have no payment key yet, so events are keyed by order id.
func (s *Service) HandleWebhook(event WebhookEvent) error {
	if event.EventType != "PAYMENT_STATUS_CHANGED" {
		return nil
	}
	orderID := event.Data.OrderID
	key := event.Data.PaymentKey
	if orderID == "" {
		return nil
	}

	switch event.Data.Status {
	case "DONE":
		won, err := s.payments.Approve(orderID, key)
		if err != nil {
			return err
		}
		if won {
			// The webhook beat the synchronous confirmation; finish the
			// upgrade it would have applied.
			if p, err := s.payments.GetByOrderID(orderID); err == nil {
				if _, err := s.subs.Upgrade(p.UserID, p.Plan, key, orderID); err != nil {
					return err
				}
			}
		}
	case "CANCELED":
		won, err := s.payments.TransitionByOrderID(orderID, models.PAYMENT_STATUS_CANCELLED,
			models.PAYMENT_STATUS_PENDING, models.PAYMENT_STATUS_APPROVED)
		if err != nil {
			return err
		}
		if won {
			if p, err := s.payments.GetByOrderID(orderID); err == nil {
				if err := s.subs.Downgrade(p.UserID); err != nil {
					return err
				}
			}
		}
	case "EXPIRED":
		if _, err := s.payments.TransitionByOrderID(orderID, models.PAYMENT_STATUS_EXPIRED,
			models.PAYMENT_STATUS_PENDING); err != nil {
			return err
		}
	default:
		log.Warnf("[Payment] Ignoring webhook status %q for order %s", event.Data.Status, orderID)
	}
	return nil
}
