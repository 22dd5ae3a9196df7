package app

import (
	"context"
	"time"

	"review_monitor/internal/domain/review"

	"github.com/sirupsen/logrus"
)

// mirrorWithRetry creates the pending tracking record, retrying once after backoff.
// An already existing record counts as success.
func mirrorWithRetry(
	ctx context.Context,
	mirror review.Mirror,
	c review.Candidate,
	backoff time.Duration,
	sleep func(context.Context, time.Duration) error,
	logger *logrus.Entry,
) bool {
	entry := logger.WithField("natural_id", c.NaturalID)

	created, err := mirror.UpsertPending(ctx, c)
	if err != nil {
		entry.WithError(err).Warnf("Mirror write failed, retrying in %s", backoff)
		if err := sleep(ctx, backoff); err != nil {
			entry.WithError(err).Error("Mirror retry abandoned")
			return false
		}
		created, err = mirror.UpsertPending(ctx, c)
	}
	if err != nil {
		entry.WithError(err).Error("Mirror write failed after retry")
		return false
	}

	if created {
		entry.Info("Tracking record created")
	} else {
		entry.Debug("Tracking record already exists, left untouched")
	}
	return true
}
