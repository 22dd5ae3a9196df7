package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"review_monitor/internal/app"
	"review_monitor/internal/infra/bootstrap"
	"review_monitor/internal/infra/config"
	"review_monitor/internal/infra/logger"
	"review_monitor/internal/infra/scheduler"
)

func main() {
	fmt.Println("Purchase Link Monitor starting...")

	cfg, err := config.Load(config.ProfilePurchaseLinks)
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Component("main")

	source, sourceDB, err := bootstrap.OpenSource(cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to source database: %v", err)
	}
	defer sourceDB.Close()

	notifier, err := bootstrap.ViolationNotifier(cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not set up notifier: %v", err)
	}

	checker := app.NewPurchaseLinkService(
		source,
		notifier,
		bootstrap.NotificationLogStore(cfg),
		app.PurchaseLinkConfig{
			RenotifyAfter:  cfg.PurchaseLink.RenotifyAfter,
			LookbackMonths: cfg.PurchaseLink.LookbackMonths,
		},
		logger.Component("purchase_links"),
	)
	check := func(ctx context.Context) error {
		_, err := checker.Run(ctx)
		return err
	}

	linkScheduler := scheduler.NewScheduler(logger.Component("scheduler"))
	if err := linkScheduler.AddJob("purchase_links", cfg.PurchaseLink.CronSpec, cfg.Engine.CycleTimeout, check); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	if cfg.Engine.RunOnce {
		linkScheduler.RunOnce()
		return
	}

	// Registered before Start because the initial run happens inside it.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		<-quit // Block until a signal is received
		log.Info("Shutting down application...")
		linkScheduler.Stop()
		close(stopped)
	}()

	linkScheduler.Start(true)
	<-stopped
	log.Info("Application shut down gracefully.")
}
