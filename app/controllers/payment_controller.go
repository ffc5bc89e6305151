package controllers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/env"
	"github.com/kampai-studio/kampai/internal/pkg/payment"
	"github.com/kampai-studio/kampai/internal/pkg/usercontext"
)

type createOrderRequest struct {
	Plan string `json:"plan"`
}

type confirmRequest struct {
	PaymentKey string `json:"payment_key"`
	OrderID    string `json:"order_id"`
	Amount     int64  `json:"amount"`
}

type cancelPaymentRequest struct {
	PaymentKey string `json:"payment_key"`
	Reason     string `json:"reason"`
}

// HandlePlans returns the public plan catalog with the gateway client key.
func HandlePlans(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"plans":      entitlements.Plans(),
		"client_key": env.GetEnv("TOSS_CLIENT_KEY", ""),
	})
}

// HandleCreateOrder opens a pending payment for a plan upgrade.
func HandleCreateOrder(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}

	order, err := deps.Payments.CreateOrder(userCtx.UserID, req.Plan)
	if err != nil {
		return serviceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(order)
}

// HandleConfirmPayment settles a pending order and applies the upgrade.
func HandleConfirmPayment(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}
	if req.OrderID == "" || req.PaymentKey == "" {
		return fail(c, fiber.StatusBadRequest, "validation_error", "payment_key and order_id are required")
	}

	settled, err := deps.Payments.Confirm(c.Context(), req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"order_id":    settled.OrderID,
		"plan":        settled.Plan,
		"amount":      settled.Amount,
		"status":      settled.Status,
		"approved_at": formatTimePtr(settled.ApprovedAt),
	})
}

// HandleCancelPayment refunds a payment and downgrades the owner.
func HandleCancelPayment(c *fiber.Ctx) error {
	var req cancelPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}
	if req.PaymentKey == "" {
		return fail(c, fiber.StatusBadRequest, "validation_error", "payment_key is required")
	}
	if req.Reason == "" {
		req.Reason = "customer request"
	}

	if err := deps.Payments.Cancel(c.Context(), req.PaymentKey, req.Reason); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "cancelled"})
}

// HandlePaymentHistory lists the user's payments, newest first.
func HandlePaymentHistory(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	payments, err := deps.Payments.History(userCtx.UserID, c.QueryInt("limit", 20))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"payments": payments})
}

// HandlePaymentWebhook receives gateway status events. The endpoint always
// answers 200 once the payload parses so the gateway stops retrying.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	var event payment.WebhookEvent
	if err := c.BodyParser(&event); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid webhook payload")
	}

	if err := deps.Payments.HandleWebhook(event); err != nil {
		log.Errorf("[Payment] Webhook handling failed: %v", err)
		return fail(c, fiber.StatusInternalServerError, "internal_server_error", "webhook handling failed")
	}
	return c.JSON(fiber.Map{"received": true})
}
