package controllers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/kampai-studio/kampai/app/models"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/security"
	"github.com/kampai-studio/kampai/internal/pkg/usercontext"
)

// credentialsMessage is shared between unknown email and wrong password so
// responses do not reveal which accounts exist.
const credentialsMessage = "invalid email or password"

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates an account on the free plan and returns a session
// token.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" {
		return fail(c, fiber.StatusBadRequest, "validation_error", "email is required")
	}
	if len(req.Password) < 8 {
		return fail(c, fiber.StatusBadRequest, "validation_error", "password must be at least 8 characters")
	}

	if _, err := deps.Repos.User.GetByEmail(req.Email); err == nil {
		return fail(c, fiber.StatusConflict, "email_taken", "an account with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return serviceError(c, err)
	}

	user, err := models.CreateUser(req.Email, req.Password, req.Name)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, "validation_error", err.Error())
	}
	if err := user.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, "validation_error", "invalid email or name")
	}
	if err := deps.Repos.User.Create(user); err != nil {
		// A concurrent registration can slip past the lookup above and lose
		// the insert on the unique email index instead.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fail(c, fiber.StatusConflict, "email_taken", "an account with this email already exists")
		}
		return serviceError(c, err)
	}

	if err := deps.Usage.SeedToday(user.ID); err != nil {
		log.Warnf("[Auth] Failed to seed usage row for user %d: %v", user.ID, err)
	}

	token, err := security.GenerateSessionToken(user.ID, user.Email, security.TokenSecret(), security.TokenTTL())
	if err != nil {
		return serviceError(c, err)
	}

	log.Infof("[Auth] Registered user %d (%s)", user.ID, user.Email)
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"token": token,
		"user":  userPayload(user),
	})
}

// HandleLogin verifies credentials and returns a session token.
func HandleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid_request", "invalid request body")
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	user, err := deps.Repos.User.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fail(c, fiber.StatusUnauthorized, "invalid_credentials", credentialsMessage)
		}
		return serviceError(c, err)
	}

	if !user.CheckPassword(req.Password) {
		return fail(c, fiber.StatusUnauthorized, "invalid_credentials", credentialsMessage)
	}
	if !user.IsActive {
		return fail(c, fiber.StatusUnauthorized, "account_disabled", "account is disabled")
	}

	if err := deps.Repos.User.UpdateLastLogin(user.ID); err != nil {
		log.Warnf("[Auth] Failed to update last login for user %d: %v", user.ID, err)
	}

	token, err := security.GenerateSessionToken(user.ID, user.Email, security.TokenSecret(), security.TokenTTL())
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"token": token,
		"user":  userPayload(user),
	})
}

// HandleMe returns the account with its usage, subscription and the plan
// catalog in one response.
func HandleMe(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	user, err := deps.Repos.User.GetByID(userCtx.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	snapshot, err := deps.Usage.GetSnapshot(user.ID)
	if err != nil {
		return serviceError(c, err)
	}

	status, err := deps.Subscriptions.CurrentStatus(user.ID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":         userPayload(user),
		"usage":        snapshot,
		"subscription": status,
		"plans":        entitlements.Plans(),
	})
}

// HandleAuthUsage returns the quota snapshot alone.
func HandleAuthUsage(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	snapshot, err := deps.Usage.GetSnapshot(userCtx.UserID)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(snapshot)
}

func userPayload(user *models.User) fiber.Map {
	return fiber.Map{
		"id":            user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"plan":          user.Plan,
		"is_active":     user.IsActive,
		"is_admin":      user.IsAdmin,
		"created_at":    user.CreatedAt.UTC().Format(time.RFC3339),
		"last_login_at": formatTimePtr(user.LastLoginAt),
	}
}
