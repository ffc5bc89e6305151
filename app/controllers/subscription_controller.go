package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/kampai-studio/kampai/internal/pkg/usercontext"
)

// HandleSubscription returns the user's current subscription standing.
func HandleSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	status, err := deps.Subscriptions.CurrentStatus(userCtx.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	history, err := deps.Subscriptions.History(userCtx.UserID, 10)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"subscription": status,
		"history":      history,
	})
}

// HandleSubscriptionCancel drops the user back to the free plan.
func HandleSubscriptionCancel(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	if err := deps.Subscriptions.Cancel(userCtx.UserID); err != nil {
		return serviceError(c, err)
	}
	return c.JSON(fiber.Map{"status": "cancelled", "plan": "free"})
}
