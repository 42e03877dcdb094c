package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/robfig/cron/v3"

	"github.com/badmintontv/badmintontv/app/repository"
	"github.com/badmintontv/badmintontv/internal/pkg/billing"
	"github.com/badmintontv/badmintontv/internal/pkg/cache"
	"github.com/badmintontv/badmintontv/internal/pkg/database"
	"github.com/badmintontv/badmintontv/internal/pkg/env"
	"github.com/badmintontv/badmintontv/internal/pkg/gateway"
	"github.com/badmintontv/badmintontv/internal/pkg/jobqueue"
	"github.com/badmintontv/badmintontv/internal/pkg/router"
	"github.com/badmintontv/badmintontv/internal/pkg/scanner"
)

func main() {
	app := NewApplication()

	// Background workers
	jobqueue.GetManager().Start()
	defer jobqueue.GetManager().Stop()

	scheduler := startScheduler()
	defer scheduler.Stop()

	startVideoScanner()

	// Graceful shutdown on SIGINT/SIGTERM
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Info("[App] Shutting down...")
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000"))
	if err := app.Listen(addr); err != nil {
		log.Fatal(err)
	}
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	repository.InitializeFactory(database.GetDB())

	app := fiber.New(fiber.Config{
		AppName: "badmintontv",
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}

// startScheduler runs the daily sweep that flags credit cards close to their
// expiration date.
func startScheduler() *cron.Cron {
	svc := billing.NewServiceFromDB(database.GetDB(), gateway.NewStripeGatewayFromEnv())

	scheduler := cron.New()
	_, err := scheduler.AddFunc("@daily", func() {
		flagged, err := svc.MarkExpiringCards(time.Now().UTC())
		if err != nil {
			log.Errorf("[Scheduler] Expiring card sweep failed: %v", err)
			return
		}
		log.Infof("[Scheduler] Flagged %d expiring cards", flagged)
	})
	if err != nil {
		log.Fatalf("[Scheduler] Failed to register card sweep: %v", err)
	}

	scheduler.Start()
	return scheduler
}

// startVideoScanner ingests new highlight videos from the video directory and
// keeps watching it. Disabled when no directory is configured.
func startVideoScanner() {
	dir := env.GetEnv("VID_DIR", "")
	if dir == "" {
		log.Info("[Scanner] VID_DIR not set, video scanner disabled")
		return
	}

	s := scanner.NewScanner(repository.GetGlobalRepositories(), dir)
	go func() {
		if _, err := s.Scan(); err != nil {
			log.Errorf("[Scanner] Initial scan failed: %v", err)
		}
		if err := s.Watch(context.Background()); err != nil {
			log.Errorf("[Scanner] Watcher stopped: %v", err)
		}
	}()
}
