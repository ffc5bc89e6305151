package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/security"
	"github.com/kampai-studio/kampai/internal/pkg/usercontext"
)

func bearerToken(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}

// resolveUser validates the bearer token and loads the fresh user row. The
// database read on every request is what makes account disabling and plan
// changes effective immediately, even though the token itself stays valid
// until expiry.
func resolveUser(c *fiber.Ctx, users repository.UserRepository) (usercontext.UserContext, error) {
	token := bearerToken(c)
	if token == "" {
		return usercontext.UserContext{}, security.ErrTokenMalformed
	}

	claims, err := security.VerifySessionToken(token, security.TokenSecret())
	if err != nil {
		return usercontext.UserContext{}, err
	}

	user, err := users.GetByID(claims.UserID)
	if err != nil {
		return usercontext.UserContext{}, security.ErrTokenMalformed
	}
	if !user.IsActive {
		return usercontext.UserContext{}, errDisabled
	}

	return usercontext.UserContext{
		UserID:     user.ID,
		Email:      user.Email,
		Name:       user.Name,
		Plan:       user.Plan,
		IsLoggedIn: true,
		IsAdmin:    user.IsAdmin,
	}, nil
}

var errDisabled = fiber.NewError(fiber.StatusUnauthorized, "account is disabled")

// RequireAuth validates the bearer token and injects the user context;
// requests without a valid session get JSON 401.
func RequireAuth(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, err := resolveUser(c, users)
		if err != nil {
			switch err {
			case security.ErrTokenExpired:
				return unauthorized(c, "session expired")
			case errDisabled:
				return unauthorized(c, "account is disabled")
			default:
				return unauthorized(c, "login required")
			}
		}
		usercontext.SetUserContext(c, ctx)
		return c.Next()
	}
}

// OptionalAuth injects the user context when a valid token is present but
// lets anonymous requests through.
func OptionalAuth(users repository.UserRepository) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ctx, err := resolveUser(c, users); err == nil {
			usercontext.SetUserContext(c, ctx)
		}
		return c.Next()
	}
}

// RequireAdmin ensures the authenticated user carries the admin flag.
// Must run after RequireAuth.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := usercontext.GetUserContext(c)
		if !ctx.IsLoggedIn {
			return unauthorized(c, "login required")
		}
		if !ctx.IsAdmin {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "admin privileges required",
			})
		}
		return c.Next()
	}
}
