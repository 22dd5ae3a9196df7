// internal/app/repair_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review_monitor/internal/domain/review"
	"review_monitor/internal/domain/watermark"
	idb "review_monitor/internal/infra/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrWatermarkUnavailable is returned by the repair pass when there is no watermark to repair.
var ErrWatermarkUnavailable = fmt.Errorf("watermark could not be loaded")

// RepairReport summarises one repair pass.
type RepairReport struct {
	RunID          string
	Unmirrored     int
	Repaired       int
	Failed         int
	NotFound       int // ids that disappeared from the source
	WatermarkSaved bool
}

// RepairService retries the mirror step for watermark entries recorded with
// Mirrored=false. It never notifies: those records were announced when first seen.
type RepairService struct {
	source     review.SourceReader
	mirror     review.Mirror
	watermarks watermark.Store
	backoff    time.Duration
	logger     *logrus.Entry

	sleep func(context.Context, time.Duration) error
}

func NewRepairService(
	source review.SourceReader,
	mirror review.Mirror,
	watermarks watermark.Store,
	mirrorRetryBackoff time.Duration,
	logger *logrus.Entry,
) *RepairService {
	return &RepairService{
		source:     source,
		mirror:     mirror,
		watermarks: watermarks,
		backoff:    mirrorRetryBackoff,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func (s *RepairService) Run(ctx context.Context) (*RepairReport, error) {
	report := &RepairReport{RunID: uuid.NewString()}
	log := s.logger.WithField("run_id", report.RunID)

	state, status := s.watermarks.Load(ctx)
	if status != watermark.Loaded {
		return report, fmt.Errorf("%w: %s", ErrWatermarkUnavailable, status)
	}

	unmirrored := state.Unmirrored()
	report.Unmirrored = len(unmirrored)
	if len(unmirrored) == 0 {
		log.Info("No unmirrored watermark entries, nothing to repair")
		return report, nil
	}
	log.Infof("Repairing %d unmirrored watermark entries", len(unmirrored))

	for _, key := range unmirrored {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		entry := log.WithField("natural_id", key.NaturalID)

		c, err := s.source.GetByID(ctx, key.NaturalID)
		if err != nil {
			if errors.Is(err, idb.ErrCandidateNotFound) {
				report.NotFound++
				entry.Warn("Review no longer present in source, leaving entry unmirrored")
			} else {
				report.Failed++
				entry.WithError(err).Error("Failed to read review from source")
			}
			continue
		}

		if !mirrorWithRetry(ctx, s.mirror, *c, s.backoff, s.sleep, log) {
			report.Failed++
			continue
		}
		state.MarkMirrored(key.NaturalID)
		report.Repaired++
	}

	if report.Repaired == 0 {
		log.WithField("failed", report.Failed).Warn("Repair pass changed nothing, watermark not saved")
		return report, nil
	}
	if err := s.watermarks.Save(ctx, state); err != nil {
		return report, fmt.Errorf("failed to save repaired watermark: %w", err)
	}
	report.WatermarkSaved = true

	log.WithFields(logrus.Fields{
		"repaired":  report.Repaired,
		"failed":    report.Failed,
		"not_found": report.NotFound,
	}).Info("Repair pass finished")
	return report, nil
}
