package controllers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/generation"
	"github.com/kampai-studio/kampai/internal/pkg/jobqueue"
	"github.com/kampai-studio/kampai/internal/pkg/payment"
	"github.com/kampai-studio/kampai/internal/pkg/subscription"
	"github.com/kampai-studio/kampai/internal/pkg/usage"
)

// Deps bundles everything the handlers need. Wired once at startup.
type Deps struct {
	Repos         *repository.Repositories
	Subscriptions *subscription.Service
	Usage         *usage.Service
	Payments      *payment.Service
	Gate          *entitlements.Gate
	Selector      *generation.Selector
	Queue         *jobqueue.Queue
}

var deps *Deps

// Setup installs the shared dependency container for all handlers.
func Setup(d *Deps) {
	deps = d
}

// fail writes the error envelope used across the API.
func fail(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"error":   code,
		"message": message,
	})
}

// serviceError maps typed service errors onto HTTP statuses. Anything
// unexpected becomes a 500 with a generic message; details go to the log only.
func serviceError(c *fiber.Ctx, err error) error {
	var quotaErr *usage.QuotaExceededError
	var amountErr *payment.AmountMismatchError
	var gatewayErr *payment.GatewayError

	switch {
	case errors.As(err, &quotaErr):
		return fail(c, fiber.StatusTooManyRequests, "quota_exceeded", quotaErr.Error())
	case errors.As(err, &amountErr):
		return fail(c, fiber.StatusBadRequest, "amount_mismatch", amountErr.Error())
	case errors.As(err, &gatewayErr):
		return fail(c, fiber.StatusBadGateway, "gateway_error", gatewayErr.Error())
	case errors.Is(err, payment.ErrUnknownPlan), errors.Is(err, subscription.ErrUnknownPlan):
		return fail(c, fiber.StatusBadRequest, "unknown_plan", err.Error())
	case errors.Is(err, payment.ErrOrderNotFound):
		return fail(c, fiber.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, payment.ErrAlreadyProcessed):
		return fail(c, fiber.StatusConflict, "already_processed", err.Error())
	case errors.Is(err, subscription.ErrAlreadyFree):
		return fail(c, fiber.StatusConflict, "already_free", err.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fail(c, fiber.StatusNotFound, "not_found", "resource not found")
	default:
		log.Errorf("[API] Unexpected error on %s %s: %v", c.Method(), c.Path(), err)
		return fail(c, fiber.StatusInternalServerError, "internal_server_error", "something went wrong")
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// pagination reads offset/limit query params with sane bounds.
func pagination(c *fiber.Ctx, defaultLimit, maxLimit int) (int, int) {
	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return offset, limit
}
