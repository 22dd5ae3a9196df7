package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"review_monitor/internal/domain/review"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMirror(t *testing.T) (*PostgresMirrorRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresMirrorRepository(db, "exposure_tracking"), mock
}

func sampleCandidate() review.Candidate {
	return review.Candidate{
		NaturalID:    101,
		CampaignName: sql.NullString{String: "Summer Cafe", Valid: true},
		PostLink:     "https://blog.example/101",
		RegisteredAt: time.Date(2025, 6, 1, 1, 30, 0, 0, time.UTC),
	}
}

func TestUpsertPendingInsertsNewRecord(t *testing.T) {
	repo, mock := newMirror(t)
	c := sampleCandidate()

	mock.ExpectQuery(`SELECT id FROM "exposure_tracking" WHERE proposition_id = \$1`).
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO "exposure_tracking" .* ON CONFLICT \(proposition_id\) DO NOTHING`).
		WithArgs(int64(101), c.CampaignName, c.ManagerName, c.CompanyName, c.Keywords,
			c.PostLink, c.BloggerID, sql.NullTime{Time: c.RegisteredAt, Valid: true}, review.StatusPending).
		WillReturnResult(sqlmock.NewResult(1, 1))

	created, err := repo.UpsertPending(context.Background(), c)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPendingIsNoOpForExistingRecord(t *testing.T) {
	repo, mock := newMirror(t)

	mock.ExpectQuery(`SELECT id FROM "exposure_tracking"`).
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))

	created, err := repo.UpsertPending(context.Background(), sampleCandidate())
	require.NoError(t, err)
	assert.False(t, created)
	// No INSERT or UPDATE may follow: a human-edited status stays as it is.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertPendingLostRaceIsNotAnError(t *testing.T) {
	repo, mock := newMirror(t)

	mock.ExpectQuery(`SELECT id FROM "exposure_tracking"`).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectExec(`INSERT INTO "exposure_tracking"`).WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.UpsertPending(context.Background(), sampleCandidate())
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUpsertPendingWrapsErrors(t *testing.T) {
	repo, mock := newMirror(t)
	mock.ExpectQuery(`SELECT id FROM "exposure_tracking"`).WillReturnError(errors.New("timeout"))

	_, err := repo.UpsertPending(context.Background(), sampleCandidate())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestExistingIDs(t *testing.T) {
	repo, mock := newMirror(t)

	mock.ExpectQuery(`SELECT proposition_id FROM "exposure_tracking" WHERE proposition_id = ANY\(\$1\)`).
		WithArgs(pq.Array([]int64{1, 2, 3})).
		WillReturnRows(sqlmock.NewRows([]string{"proposition_id"}).AddRow(int64(1)).AddRow(int64(3)))

	got, err := repo.ExistingIDs(context.Background(), []int64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{1: true, 3: true}, got)

	empty, err := repo.ExistingIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListIncomplete(t *testing.T) {
	repo, mock := newMirror(t)
	now := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM "exposure_tracking"\s+WHERE post_link IS NOT NULL.+AND id > \$1\s+ORDER BY id ASC\s+LIMIT \$2`).
		WithArgs(int64(3), 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "proposition_id", "campaign_name", "manager", "company_name", "keywords",
			"post_link", "blogger_id", "review_registered_at", "success_status", "created_at", "updated_at",
		}).AddRow(int64(4), nil, "Spring", nil, nil, nil, "https://blog.example/4", nil, nil, "success", now, now))

	records, err := repo.ListIncomplete(context.Background(), 3, 50)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, review.StatusSuccess, records[0].Status)
	assert.False(t, records[0].NaturalID.Valid)
	assert.Contains(t, records[0].MissingFields(), "proposition_id")
	assert.NotContains(t, records[0].MissingFields(), "campaign_name")
}

func TestFillMissingUsesCoalesceAndLeavesStatus(t *testing.T) {
	repo, mock := newMirror(t)
	c := sampleCandidate()

	mock.ExpectExec(`UPDATE "exposure_tracking"\s+SET proposition_id = COALESCE\(proposition_id, \$2\).+WHERE id = \$1 AND \(proposition_id IS NULL OR campaign_name IS NULL`).
		WithArgs(int64(4), int64(101), c.CampaignName, c.ManagerName, c.CompanyName, c.Keywords, c.BloggerID,
			sql.NullTime{Time: c.RegisteredAt, Valid: true}).
		WillReturnResult(sqlmock.NewResult(0, 1))

	updated, err := repo.FillMissing(context.Background(), 4, c)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFillMissingReportsNoUpdate(t *testing.T) {
	t.Run("source has nothing for the null columns", func(t *testing.T) {
		repo, mock := newMirror(t)
		mock.ExpectExec(`UPDATE "exposure_tracking"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM "exposure_tracking" WHERE id = \$1\)`).
			WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		updated, err := repo.FillMissing(context.Background(), 4, sampleCandidate())
		require.NoError(t, err)
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("row is gone", func(t *testing.T) {
		repo, mock := newMirror(t)
		mock.ExpectExec(`UPDATE "exposure_tracking"`).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		updated, err := repo.FillMissing(context.Background(), 5, sampleCandidate())
		assert.ErrorIs(t, err, ErrTrackingRecordNotFound)
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("candidate has no descriptive values", func(t *testing.T) {
		repo, mock := newMirror(t)

		updated, err := repo.FillMissing(context.Background(), 6, review.Candidate{})
		require.NoError(t, err)
		assert.False(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
