package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"review_monitor/internal/domain/review"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackfillService(source *fakeSource, mirror *fakeMirror) *BackfillService {
	svc := NewBackfillService(source, mirror, time.Second, quietLogger())
	svc.now = func() time.Time { return cycleStart }
	svc.sleep = (&recordingSleep{}).sleep
	return svc
}

func TestSyncSinceInsertsOnlyMissing(t *testing.T) {
	source := &fakeSource{candidates: []review.Candidate{
		candidate(1, 60*24*3),
		candidate(2, 60*24),
		candidate(3, 60),
		candidate(4, 60*24*10), // before the cutoff
	}}
	mirror := newFakeMirror()
	mirror.records[2] = &review.TrackingRecord{ID: 2, Status: review.StatusFailure}
	mirror.failures[3] = 2

	report, err := newTestBackfillService(source, mirror).SyncSince(context.Background(), cycleStart.AddDate(0, 0, -7))
	require.NoError(t, err)

	assert.Equal(t, 3, report.Scanned)
	assert.Equal(t, 2, report.Missing)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 1, report.InsertFailures)
	assert.Equal(t, []int64{1, 3, 3}, mirror.attempts)
	assert.Equal(t, review.StatusFailure, mirror.records[2].Status)
}

func TestSyncSinceSourceFailure(t *testing.T) {
	source := &fakeSource{err: errUnavailable}
	_, err := newTestBackfillService(source, newFakeMirror()).SyncSince(context.Background(), cycleStart.Add(-time.Hour))
	require.ErrorIs(t, err, errUnavailable)
}

func TestFillMissingMatchesByIDThenPostLink(t *testing.T) {
	byID := candidate(10, 30)
	byID.CampaignName = sql.NullString{String: "Autumn", Valid: true}
	byLink := candidate(11, 20)

	source := &fakeSource{candidates: []review.Candidate{byID, byLink}}
	mirror := newFakeMirror()
	mirror.incomplete = []*review.TrackingRecord{
		{ID: 1, NaturalID: sql.NullInt64{Int64: 10, Valid: true}},
		{ID: 2, PostLink: sql.NullString{String: byLink.PostLink, Valid: true}},
		{ID: 3, PostLink: sql.NullString{String: "https://gone.example", Valid: true}},
		{ID: 4},
	}

	report, err := newTestBackfillService(source, mirror).FillMissing(context.Background(), 100)
	require.NoError(t, err)

	assert.Equal(t, 4, report.Incomplete)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, "Autumn", mirror.filled[1].CampaignName.String)
	assert.Equal(t, int64(11), mirror.filled[2].NaturalID)
	assert.NotContains(t, mirror.filled, int64(3))
}

func TestFillMissingPagesPastUnfillableRows(t *testing.T) {
	source := &fakeSource{candidates: []review.Candidate{candidate(40, 30), candidate(50, 20), candidate(60, 10)}}
	mirror := newFakeMirror()
	mirror.incomplete = []*review.TrackingRecord{
		{ID: 1},
		{ID: 2, PostLink: sql.NullString{String: "https://gone.example/a", Valid: true}},
		{ID: 3, NaturalID: sql.NullInt64{Int64: 999, Valid: true}},
		{ID: 4, NaturalID: sql.NullInt64{Int64: 40, Valid: true}},
		{ID: 5, NaturalID: sql.NullInt64{Int64: 50, Valid: true}},
		{ID: 6, NaturalID: sql.NullInt64{Int64: 60, Valid: true}},
	}
	mirror.nothingToFill[6] = true

	report, err := newTestBackfillService(source, mirror).FillMissing(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, []int64{0, 2, 4, 6}, mirror.pages)
	assert.Equal(t, 6, report.Incomplete)
	assert.Equal(t, 2, report.Filled)
	assert.Equal(t, 4, report.Skipped)
	assert.Contains(t, mirror.filled, int64(4))
	assert.Contains(t, mirror.filled, int64(5))
	assert.NotContains(t, mirror.filled, int64(6))
}

func TestFillMissingRejectsNonPositivePageSize(t *testing.T) {
	mirror := newFakeMirror()
	_, err := newTestBackfillService(&fakeSource{}, mirror).FillMissing(context.Background(), 0)
	require.Error(t, err)
	assert.Empty(t, mirror.pages)
}
