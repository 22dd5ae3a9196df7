package app

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"
	"review_monitor/internal/domain/watermark"
	idb "review_monitor/internal/infra/database"

	"github.com/sirupsen/logrus"
)

var errUnavailable = errors.New("connection refused")

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// fakeSource serves candidates from memory and applies the (lower, upper] window.
type fakeSource struct {
	candidates []review.Candidate
	violations []purchaselink.Violation
	err        error

	windows [][2]time.Time
	since   []time.Time
}

func (f *fakeSource) ListRegisteredBetween(_ context.Context, lower, upper time.Time) ([]review.Candidate, error) {
	f.windows = append(f.windows, [2]time.Time{lower, upper})
	if f.err != nil {
		return nil, f.err
	}
	var out []review.Candidate
	for _, c := range f.candidates {
		if c.RegisteredAt.After(lower) && !c.RegisteredAt.After(upper) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSource) GetByID(_ context.Context, naturalID int64) (*review.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.candidates {
		if c.NaturalID == naturalID {
			c := c
			return &c, nil
		}
	}
	return nil, idb.ErrCandidateNotFound
}

func (f *fakeSource) GetByPostLink(_ context.Context, postLink string) (*review.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, c := range f.candidates {
		if c.PostLink == postLink {
			c := c
			return &c, nil
		}
	}
	return nil, idb.ErrCandidateNotFound
}

func (f *fakeSource) ListPurchaseLinkViolations(_ context.Context, since time.Time) ([]purchaselink.Violation, error) {
	f.since = append(f.since, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.violations, nil
}

// fakeMirror keeps tracking records keyed by natural id. failures[id] is the number of
// upcoming UpsertPending calls for id that fail.
type fakeMirror struct {
	records    map[int64]*review.TrackingRecord
	failures   map[int64]int
	incomplete []*review.TrackingRecord
	filled     map[int64]review.Candidate
	// nothingToFill marks rows whose null columns the source cannot supply.
	nothingToFill map[int64]bool

	pages []int64

	attempts []int64
	creates  int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{
		records:       map[int64]*review.TrackingRecord{},
		failures:      map[int64]int{},
		filled:        map[int64]review.Candidate{},
		nothingToFill: map[int64]bool{},
	}
}

func (f *fakeMirror) UpsertPending(_ context.Context, c review.Candidate) (bool, error) {
	f.attempts = append(f.attempts, c.NaturalID)
	if f.failures[c.NaturalID] > 0 {
		f.failures[c.NaturalID]--
		return false, errUnavailable
	}
	if _, ok := f.records[c.NaturalID]; ok {
		return false, nil
	}
	f.records[c.NaturalID] = &review.TrackingRecord{
		ID:     int64(len(f.records) + 1),
		Status: review.StatusPending,
	}
	f.creates++
	return true, nil
}

func (f *fakeMirror) ExistingIDs(_ context.Context, naturalIDs []int64) (map[int64]bool, error) {
	out := map[int64]bool{}
	for _, id := range naturalIDs {
		if _, ok := f.records[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

// ListIncomplete pages through incomplete in id order. Filled rows drop out.
func (f *fakeMirror) ListIncomplete(_ context.Context, afterID int64, limit int) ([]*review.TrackingRecord, error) {
	f.pages = append(f.pages, afterID)
	var out []*review.TrackingRecord
	for _, rec := range f.incomplete {
		if rec.ID <= afterID {
			continue
		}
		if _, ok := f.filled[rec.ID]; ok {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeMirror) FillMissing(_ context.Context, trackingID int64, c review.Candidate) (bool, error) {
	if f.nothingToFill[trackingID] {
		return false, nil
	}
	f.filled[trackingID] = c
	return true, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	notified []int64
	fail     map[int64]bool
	onNotify func()
}

func (f *fakeNotifier) Notify(_ context.Context, c review.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notified = append(f.notified, c.NaturalID)
	if f.onNotify != nil {
		f.onNotify()
	}
	if f.fail[c.NaturalID] {
		return errors.New("slack webhook returned status 500")
	}
	return nil
}

// memWatermarks hands out copies so services cannot mutate the stored state in place.
type memWatermarks struct {
	state watermark.State
	// stored is false until the document exists; Load then reports Defaulted.
	stored bool
	// failLoads is the number of upcoming loads that report Unavailable.
	failLoads   int
	saveErr     error
	loads       int
	saves       int
	saveCtxErrs []error
}

func newMemWatermarks(keys ...watermark.ProcessedKey) *memWatermarks {
	return &memWatermarks{state: watermark.State{ProcessedKeys: keys}, stored: true}
}

func (m *memWatermarks) Load(context.Context) (watermark.State, watermark.LoadStatus) {
	m.loads++
	if m.failLoads > 0 {
		m.failLoads--
		return watermark.State{}, watermark.Unavailable
	}
	if !m.stored {
		return watermark.State{}, watermark.Defaulted
	}
	return copyState(m.state), watermark.Loaded
}

func (m *memWatermarks) Save(ctx context.Context, state watermark.State) error {
	m.saveCtxErrs = append(m.saveCtxErrs, ctx.Err())
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.state = copyState(state)
	m.stored = true
	return nil
}

func (m *memWatermarks) key(id int64) (watermark.ProcessedKey, bool) {
	for _, k := range m.state.ProcessedKeys {
		if k.NaturalID == id {
			return k, true
		}
	}
	return watermark.ProcessedKey{}, false
}

func (m *memWatermarks) ids() []int64 {
	var ids []int64
	for _, k := range m.state.ProcessedKeys {
		ids = append(ids, k.NaturalID)
	}
	return ids
}

func copyState(s watermark.State) watermark.State {
	out := s
	out.ProcessedKeys = append([]watermark.ProcessedKey(nil), s.ProcessedKeys...)
	return out
}

// recordingSleep records requested waits without blocking.
type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return ctx.Err()
}
