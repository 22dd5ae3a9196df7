package main

import (
	"context"
	"os/signal"
	"syscall"

	"review_monitor/internal/app"
	"review_monitor/internal/infra/bootstrap"
	"review_monitor/internal/infra/config"
	"review_monitor/internal/infra/logger"
)

func main() {
	cfg, err := config.Load(config.ProfileRepair)
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

	mirror, mirrorDB, err := bootstrap.OpenMirror(cfg)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to tracking database: %v", err)
	}
	defer mirrorDB.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repair := app.NewRepairService(source, mirror, bootstrap.WatermarkStore(cfg), cfg.Engine.MirrorRetryBackoff, logger.Component("repair"))
	report, err := repair.Run(ctx)
	if err != nil {
		log.Errorf("Repair pass failed: %v", err)
		return
	}
	log.Infof("Repair pass done: %d unmirrored, %d repaired, %d failed, %d missing from source",
		report.Unmirrored, report.Repaired, report.Failed, report.NotFound)
}
