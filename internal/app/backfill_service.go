// internal/app/backfill_service.go
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"review_monitor/internal/domain/review"
	idb "review_monitor/internal/infra/database"

	"github.com/sirupsen/logrus"
)

// SyncReport summarises a SyncSince run.
type SyncReport struct {
	Scanned        int
	Missing        int
	Inserted       int
	InsertFailures int
}

// FillReport summarises a FillMissing run.
type FillReport struct {
	Incomplete int
	Filled     int
	Skipped    int // no way to match the row, or nothing left to fill
	Failures   int
}

// BackfillService repairs the tracking table out of band: it inserts reviews the
// monitor never saw and fills descriptive columns left null by older imports.
// It neither notifies nor touches the watermark.
type BackfillService struct {
	source  review.SourceReader
	mirror  review.Mirror
	backoff time.Duration
	logger  *logrus.Entry

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func NewBackfillService(source review.SourceReader, mirror review.Mirror, mirrorRetryBackoff time.Duration, logger *logrus.Entry) *BackfillService {
	return &BackfillService{
		source:  source,
		mirror:  mirror,
		backoff: mirrorRetryBackoff,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// SyncSince creates pending tracking records for every source review registered after
// since that the mirror does not have yet.
func (s *BackfillService) SyncSince(ctx context.Context, since time.Time) (*SyncReport, error) {
	report := &SyncReport{}
	candidates, err := s.source.ListRegisteredBetween(ctx, since.UTC(), s.now().UTC())
	if err != nil {
		return report, fmt.Errorf("failed to list source reviews: %w", err)
	}
	report.Scanned = len(candidates)
	if len(candidates) == 0 {
		s.logger.Infof("No source reviews registered since %s", since.Format(time.RFC3339))
		return report, nil
	}

	ids := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.NaturalID)
	}
	existing, err := s.mirror.ExistingIDs(ctx, ids)
	if err != nil {
		return report, fmt.Errorf("failed to diff against tracking records: %w", err)
	}

	for _, c := range candidates {
		if existing[c.NaturalID] {
			continue
		}
		report.Missing++
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if mirrorWithRetry(ctx, s.mirror, c, s.backoff, s.sleep, s.logger) {
			report.Inserted++
		} else {
			report.InsertFailures++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scanned":  report.Scanned,
		"missing":  report.Missing,
		"inserted": report.Inserted,
		"failures": report.InsertFailures,
	}).Info("Missing review sync finished")
	return report, nil
}

// FillMissing completes tracking records with null descriptive columns from the source.
// Rows are matched by natural id, or by post link when the id itself is missing.
// Status and the other human-owned columns are never written. Incomplete rows are read
// in id order, pageSize at a time, so rows that cannot be filled do not hide later ones.
func (s *BackfillService) FillMissing(ctx context.Context, pageSize int) (*FillReport, error) {
	report := &FillReport{}
	if pageSize <= 0 {
		return report, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	var afterID int64
	for {
		records, err := s.mirror.ListIncomplete(ctx, afterID, pageSize)
		if err != nil {
			return report, fmt.Errorf("failed to list incomplete tracking records after id %d: %w", afterID, err)
		}
		report.Incomplete += len(records)

		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			s.fillOne(ctx, rec, report)
			afterID = rec.ID
		}
		if len(records) < pageSize {
			break
		}
	}

	s.logger.WithFields(logrus.Fields{
		"incomplete": report.Incomplete,
		"filled":     report.Filled,
		"skipped":    report.Skipped,
		"failures":   report.Failures,
	}).Info("Missing field fill finished")
	return report, nil
}

func (s *BackfillService) fillOne(ctx context.Context, rec *review.TrackingRecord, report *FillReport) {
	entry := s.logger.WithFields(logrus.Fields{
		"tracking_id": rec.ID,
		"missing":     rec.MissingFields(),
	})

	c, err := s.lookup(ctx, rec)
	if err != nil {
		if errors.Is(err, idb.ErrCandidateNotFound) {
			report.Skipped++
			entry.Debug("No matching source review")
		} else {
			report.Failures++
			entry.WithError(err).Error("Failed to read source review")
		}
		return
	}
	if c == nil {
		report.Skipped++
		entry.Debug("Tracking record has neither id nor post link, cannot match")
		return
	}

	updated, err := s.mirror.FillMissing(ctx, rec.ID, *c)
	switch {
	case err != nil:
		report.Failures++
		entry.WithError(err).Error("Failed to fill tracking record")
	case updated:
		report.Filled++
		entry.Info("Tracking record filled")
	default:
		report.Skipped++
		entry.Debug("Source review has nothing for the null columns")
	}
}

func (s *BackfillService) lookup(ctx context.Context, rec *review.TrackingRecord) (*review.Candidate, error) {
	switch {
	case rec.NaturalID.Valid:
		return s.source.GetByID(ctx, rec.NaturalID.Int64)
	case rec.PostLink.Valid && rec.PostLink.String != "":
		return s.source.GetByPostLink(ctx, rec.PostLink.String)
	default:
		return nil, nil
	}
}
