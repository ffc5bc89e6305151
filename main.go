package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kampai-studio/kampai/app/controllers"
	"github.com/kampai-studio/kampai/app/repository"
	"github.com/kampai-studio/kampai/internal/pkg/artifactstore"
	"github.com/kampai-studio/kampai/internal/pkg/cache"
	"github.com/kampai-studio/kampai/internal/pkg/database"
	"github.com/kampai-studio/kampai/internal/pkg/entitlements"
	"github.com/kampai-studio/kampai/internal/pkg/env"
	"github.com/kampai-studio/kampai/internal/pkg/generation"
	"github.com/kampai-studio/kampai/internal/pkg/jobqueue"
	"github.com/kampai-studio/kampai/internal/pkg/payment"
	"github.com/kampai-studio/kampai/internal/pkg/router"
	"github.com/kampai-studio/kampai/internal/pkg/subscription"
	"github.com/kampai-studio/kampai/internal/pkg/usage"
)

// Root entry mirrors cmd/kampai for `go run .` during development.
func main() {
	app, manager := NewApplication()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("[Main] Shutting down...")
		manager.Stop()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "0.0.0.0"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatalf("[Main] Server stopped: %v", err)
	}
}

func NewApplication() (*fiber.App, *jobqueue.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	repos := repository.NewRepositories(database.GetDB())

	subs := subscription.NewService(repos.User, repos.Subscription)
	usageSvc := usage.NewService(repos.Usage, subs)
	gate := entitlements.NewGate(subs, usageSvc)
	payments := payment.NewService(repos.Payment, subs, payment.NewTossClient())
	selector := generation.NewSelector()

	var store *artifactstore.Client
	if cfg := artifactstore.ConfigFromEnv(); cfg.Enabled {
		client, err := artifactstore.NewClient(cfg)
		if err != nil {
			log.Warnf("[Main] Artifact store disabled: %v", err)
		} else {
			store = client
		}
	}

	manager := jobqueue.GetManager()
	queue := manager.GetQueue()
	jobqueue.NewGenerationProcessor(selector, usageSvc, store).Register(queue)
	manager.Start()

	controllers.Setup(&controllers.Deps{
		Repos:         repos,
		Subscriptions: subs,
		Usage:         usageSvc,
		Payments:      payments,
		Gate:          gate,
		Selector:      selector,
		Queue:         queue,
	})

	app := fiber.New(fiber.Config{
		AppName:   "Kampai",
		BodyLimit: 10 * 1024 * 1024,
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, router.NewApiRouter(repos))

	return app, manager
}
