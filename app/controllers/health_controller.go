package controllers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/kampai-studio/kampai/internal/pkg/cache"
	"github.com/kampai-studio/kampai/internal/pkg/database"
)

// HandleHealth reports liveness of the database, the cache and the
// generation backends.
func HandleHealth(c *fiber.Ctx) error {
	dbOK := false
	if db := database.GetDB(); db != nil {
		if sqlDB, err := db.DB(); err == nil && sqlDB.Ping() == nil {
			dbOK = true
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	redisOK := cache.GetClient().Ping(ctx).Err() == nil

	status := "ok"
	code := fiber.StatusOK
	if !dbOK {
		status = "degraded"
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"database": dbOK,
		"redis":    redisOK,
		"backends": deps.Selector.Status(),
	})
}
