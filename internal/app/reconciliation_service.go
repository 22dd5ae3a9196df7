// internal/app/reconciliation_service.go
package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"review_monitor/internal/domain/review"
	"review_monitor/internal/domain/watermark"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// partialSaveTimeout bounds the watermark write after the cycle context has ended.
const partialSaveTimeout = 15 * time.Second

// ReconciliationConfig tunes a reconciliation cycle.
type ReconciliationConfig struct {
	// SafetyWindow is how far back every cycle queries the source. It must exceed the
	// largest expected gap between two scheduler invocations.
	SafetyWindow       time.Duration
	MirrorRetryBackoff time.Duration
}

// CycleReport summarises one reconciliation cycle.
type CycleReport struct {
	RunID          string
	Candidates     int // rows returned by the source for the window
	Skipped        int // already in the watermark
	Processed      int
	Mirrored       int
	MirrorFailures int
	NotifyFailures int
	WatermarkSaved bool
}

// ReconciliationService finds newly registered reviews, mirrors them into the tracking
// store and notifies about them, recording progress in the watermark.
type ReconciliationService struct {
	source     review.SourceReader
	mirror     review.Mirror
	notifier   review.Notifier
	watermarks watermark.Store
	cfg        ReconciliationConfig
	logger     *logrus.Entry

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewReconciliationService(
	source review.SourceReader,
	mirror review.Mirror,
	notifier review.Notifier,
	watermarks watermark.Store,
	cfg ReconciliationConfig,
	logger *logrus.Entry,
) *ReconciliationService {
	return &ReconciliationService{
		source:     source,
		mirror:     mirror,
		notifier:   notifier,
		watermarks: watermarks,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      sleepContext,
	}
}

// RunCycle executes one reconciliation cycle.
//
// A source failure aborts the cycle before the watermark is touched. Mirror and notifier
// failures are per record: the record is still added to the watermark, with
// Mirrored=false when the mirror write failed, so it is never notified twice and a repair
// pass can pick it up. If ctx ends mid-cycle, the records finished so far are saved on a
// detached context and ctx.Err() is returned; the rest are picked up by the next cycle
// through the safety window.
func (s *ReconciliationService) RunCycle(ctx context.Context) (*CycleReport, error) {
	start := s.now().UTC()
	report := &CycleReport{RunID: uuid.NewString()}
	log := s.logger.WithField("run_id", report.RunID)

	state, status := s.watermarks.Load(ctx)
	switch status {
	case watermark.Defaulted:
		log.Warn("Watermark missing or malformed, starting from an empty state")
	case watermark.Unavailable:
		log.Warn("Watermark unreachable, processing without it; stored entries are merged back before saving")
	}
	processed := state.ProcessedSet()

	lower := start.Add(-s.cfg.SafetyWindow)
	candidates, err := s.source.ListRegisteredBetween(ctx, lower, start)
	if err != nil {
		log.WithError(err).Error("Source query failed, cycle aborted")
		return report, fmt.Errorf("failed to list candidates: %w", err)
	}
	report.Candidates = len(candidates)

	pending := make([]review.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if processed[c.NaturalID] {
			report.Skipped++
			continue
		}
		pending = append(pending, c)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		a, b := pending[i], pending[j]
		if !a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.RegisteredAt.Before(b.RegisteredAt)
		}
		return a.NaturalID < b.NaturalID
	})

	log.WithFields(logrus.Fields{
		"window_start": lower.Format(time.RFC3339),
		"candidates":   report.Candidates,
		"new":          len(pending),
	}).Info("Reconciliation cycle started")

	if len(pending) == 0 && status != watermark.Loaded {
		log.Infof("No new reviews; watermark left untouched (%s)", status)
		return report, nil
	}

	var stopErr error
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}

		mirrored := mirrorWithRetry(ctx, s.mirror, c, s.cfg.MirrorRetryBackoff, s.sleep, log)

		if err := s.notifier.Notify(ctx, c); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				// Not delivered; the next cycle retries it.
				stopErr = ctxErr
				break
			}
			report.NotifyFailures++
			log.WithError(err).WithField("natural_id", c.NaturalID).Warn("Notification failed")
		}

		if mirrored {
			report.Mirrored++
		} else {
			report.MirrorFailures++
		}
		state.Record(watermark.ProcessedKey{
			NaturalID:    c.NaturalID,
			ProcessedAt:  start,
			RegisteredAt: c.RegisteredAt,
			Mirrored:     mirrored,
		})
		if state.LastProcessedTime == nil || c.RegisteredAt.After(*state.LastProcessedTime) {
			registeredAt := c.RegisteredAt
			state.LastProcessedTime = &registeredAt
		}
		report.Processed++
	}
	if stopErr == nil {
		stopErr = ctx.Err()
	}

	if stopErr != nil && report.Processed == 0 {
		log.WithError(stopErr).Warn("Cycle cancelled before any record was processed")
		return report, stopErr
	}

	state.LastCheckTime = &start
	report.WatermarkSaved = s.saveWatermark(ctx, state, status, log)

	fields := logrus.Fields{
		"processed":       report.Processed,
		"mirrored":        report.Mirrored,
		"mirror_failures": report.MirrorFailures,
		"notify_failures": report.NotifyFailures,
		"watermark_saved": report.WatermarkSaved,
	}
	if stopErr != nil {
		log.WithFields(fields).WithError(stopErr).Warnf("Cycle cancelled after %d of %d records", report.Processed, len(pending))
		return report, stopErr
	}
	log.WithFields(fields).Info("Reconciliation cycle finished")
	return report, nil
}

// saveWatermark writes state once. When ctx is already done the write runs on a detached
// context bounded by partialSaveTimeout. When the watermark could not be read at the start
// of the cycle, the stored document is re-read and this cycle's keys are merged into it;
// if it is still unreachable nothing is written.
func (s *ReconciliationService) saveWatermark(ctx context.Context, state watermark.State, status watermark.LoadStatus, log *logrus.Entry) bool {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), partialSaveTimeout)
		defer cancel()
	}

	if status == watermark.Unavailable {
		stored, again := s.watermarks.Load(ctx)
		if again == watermark.Unavailable {
			log.Error("Watermark still unreachable, not overwriting it; processed records may be notified again")
			return false
		}
		stored.Merge(state.ProcessedKeys)
		stored.LastCheckTime = state.LastCheckTime
		if state.LastProcessedTime != nil &&
			(stored.LastProcessedTime == nil || state.LastProcessedTime.After(*stored.LastProcessedTime)) {
			stored.LastProcessedTime = state.LastProcessedTime
		}
		state = stored
	}

	if err := s.watermarks.Save(ctx, state); err != nil {
		log.WithError(err).Error("Failed to save watermark; the next cycle will reprocess the safety window")
		return false
	}
	return true
}
