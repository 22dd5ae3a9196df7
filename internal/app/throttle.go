package app

import (
	"context"
	"sync"
	"time"

	"review_monitor/internal/domain/review"
)

// ThrottledNotifier keeps at least delay between the end of one notification and the
// start of the next. The first call is never delayed.
type ThrottledNotifier struct {
	next  review.Notifier
	delay time.Duration

	mu   sync.Mutex
	last time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

var _ review.Notifier = (*ThrottledNotifier)(nil)

func NewThrottledNotifier(next review.Notifier, delay time.Duration) *ThrottledNotifier {
	return &ThrottledNotifier{
		next:  next,
		delay: delay,
		now:   time.Now,
		sleep: sleepContext,
	}
}

func (t *ThrottledNotifier) Notify(ctx context.Context, c review.Candidate) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if wait := t.delay - t.now().Sub(t.last); wait > 0 {
			if err := t.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}

	err := t.next.Notify(ctx, c)
	t.last = t.now()
	return err
}
