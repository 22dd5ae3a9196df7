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
	fmt.Println("Review Monitor starting...")

	cfg, err := config.Load(config.ProfileMonitor)
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Component("main")
	log.Infof("Configuration loaded. Environment: %s, watermark backend: %s, safety window: %s",
		cfg.Environment, cfg.Watermark.Backend, cfg.Engine.SafetyWindow)

	// Initialize Database Connections
	source, sourceDB, err := bootstrap.OpenSource(cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to source database: %v", err)
	}
	defer sourceDB.Close()

	mirror, mirrorDB, err := bootstrap.OpenMirror(cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to tracking database: %v", err)
	}
	defer mirrorDB.Close()
	log.Info("Database connections established successfully.")

	notifier, err := bootstrap.ReviewNotifier(cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not set up notifier: %v", err)
	}

	reconciler := app.NewReconciliationService(
		source,
		mirror,
		notifier,
		bootstrap.WatermarkStore(cfg),
		app.ReconciliationConfig{
			SafetyWindow:       cfg.Engine.SafetyWindow,
			MirrorRetryBackoff: cfg.Engine.MirrorRetryBackoff,
		},
		logger.Component("reconciliation"),
	)

	cycle := func(ctx context.Context) error {
		_, err := reconciler.RunCycle(ctx)
		return err
	}

	if cfg.Engine.RunOnce {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if cfg.Engine.CycleTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.Engine.CycleTimeout)
			defer cancel()
		}
		if err := cycle(ctx); err != nil {
			log.Errorf("Reconciliation cycle failed: %v", err)
		}
		log.Info("Single cycle finished, exiting.")
		return
	}

	monitorScheduler := scheduler.NewScheduler(logger.Component("scheduler"))
	if err := monitorScheduler.AddJob("reconciliation", cfg.Engine.CronSpec, cfg.Engine.CycleTimeout, cycle); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// Registered before Start because the initial run happens inside it.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	stopped := make(chan struct{})
	go func() {
		<-quit // Block until a signal is received
		log.Info("Shutting down application...")
		monitorScheduler.Stop()
		close(stopped)
	}()

	monitorScheduler.Start(true)
	<-stopped
	log.Info("Application shut down gracefully.")
}
