package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/kampai-studio/kampai/app/controllers"
	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/middleware"
)

// ApiRouter installs the JSON API. Controllers are plain functions reading
// the shared dependency container; auth state flows through the middleware.
type ApiRouter struct {
	repos *repository.Repositories
}

func NewApiRouter(repos *repository.Repositories) *ApiRouter {
	return &ApiRouter{repos: repos}
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New(limiter.Config{
		Max: 120,
	}))

	requireAuth := middleware.RequireAuth(h.repos.User)
	requireAdmin := middleware.RequireAdmin()

	// Public
	api.Get("/health", controllers.HandleHealth)
	api.Post("/auth/register", controllers.HandleRegister)
	api.Post("/auth/login", controllers.HandleLogin)
	api.Get("/payment/plans", controllers.HandlePlans)
	api.Post("/payment/webhook", controllers.HandlePaymentWebhook)
	api.Get("/announcements", controllers.HandleAnnouncements)

	// Authenticated
	auth := api.Group("", requireAuth)
	auth.Get("/auth/me", controllers.HandleMe)
	auth.Get("/auth/usage", controllers.HandleAuthUsage)

	auth.Get("/generate/check", controllers.HandleGenerateCheck)
	auth.Get("/generate/models", controllers.HandleGenerateModels)
	auth.Post("/generate", controllers.HandleGenerate)
	auth.Get("/jobs/:id/status", controllers.HandleJobStatus)
	auth.Post("/usage/record", controllers.HandleUsageRecord)

	auth.Get("/subscription", controllers.HandleSubscription)
	auth.Post("/subscription/cancel", controllers.HandleSubscriptionCancel)

	auth.Post("/payment/create-order", controllers.HandleCreateOrder)
	auth.Post("/payment/confirm", controllers.HandleConfirmPayment)
	auth.Post("/payment/cancel", controllers.HandleCancelPayment)
	auth.Get("/payment/history", controllers.HandlePaymentHistory)

	// Admin
	admin := api.Group("/admin", requireAuth, requireAdmin)
	admin.Get("/users", controllers.HandleAdminUsers)
	admin.Patch("/users/:id", controllers.HandleAdminPatchUser)
	admin.Get("/payments", controllers.HandleAdminPayments)
	admin.Get("/generations", controllers.HandleAdminGenerations)
	admin.Get("/announcements", controllers.HandleAdminListAnnouncements)
	admin.Post("/announcements", controllers.HandleAdminCreateAnnouncement)
	admin.Put("/announcements/:id", controllers.HandleAdminUpdateAnnouncement)
	admin.Delete("/announcements/:id", controllers.HandleAdminDeleteAnnouncement)
	admin.Get("/logs", controllers.HandleAdminLogs)
}
