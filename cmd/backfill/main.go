package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"review_monitor/internal/app"
	"review_monitor/internal/infra/bootstrap"
	"review_monitor/internal/infra/config"
	"review_monitor/internal/infra/logger"
)

func main() {
	cfg, err := config.Load(config.ProfileBackfill)
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

	since := cfg.Backfill.Since
	if since.IsZero() {
		since = time.Now().Add(-cfg.Watermark.Retention)
	}

	backfill := app.NewBackfillService(source, mirror, cfg.Engine.MirrorRetryBackoff, logger.Component("backfill"))
	if _, err := backfill.SyncSince(ctx, since); err != nil {
		log.Errorf("Missing review sync failed: %v", err)
	}
	if ctx.Err() != nil {
		return
	}
	if _, err := backfill.FillMissing(ctx, cfg.Backfill.FillLimit); err != nil {
		log.Errorf("Missing field fill failed: %v", err)
	}
}
