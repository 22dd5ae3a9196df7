package app

import (
	"context"
	"errors"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"
)

// MultiNotifier delivers to every configured channel. One failing channel does not stop
// the others; the failures are joined.
type MultiNotifier struct {
	reviews    []review.Notifier
	violations []purchaselink.Notifier
}

var (
	_ review.Notifier       = (*MultiNotifier)(nil)
	_ purchaselink.Notifier = (*MultiNotifier)(nil)
)

func NewMultiNotifier() *MultiNotifier {
	return &MultiNotifier{}
}

// AddReviewChannel registers a channel for new review notifications.
func (m *MultiNotifier) AddReviewChannel(n review.Notifier) *MultiNotifier {
	m.reviews = append(m.reviews, n)
	return m
}

// AddViolationChannel registers a channel for purchase-link alerts.
func (m *MultiNotifier) AddViolationChannel(n purchaselink.Notifier) *MultiNotifier {
	m.violations = append(m.violations, n)
	return m
}

func (m *MultiNotifier) Notify(ctx context.Context, c review.Candidate) error {
	var errs []error
	for _, n := range m.reviews {
		if err := n.Notify(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) NotifyViolations(ctx context.Context, notices []purchaselink.Notice) error {
	var errs []error
	for _, n := range m.violations {
		if err := n.NotifyViolations(ctx, notices); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
