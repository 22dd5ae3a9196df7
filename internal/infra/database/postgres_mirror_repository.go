// internal/infra/database/postgres_mirror_repository.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"review_monitor/internal/domain/review"

	"github.com/lib/pq" // For pq.Array and identifier quoting
)

// ErrTrackingRecordNotFound is returned when an update targets a missing row.
var ErrTrackingRecordNotFound = fmt.Errorf("tracking record not found")

// PostgresMirrorRepository writes tracking records into the Supabase Postgres table.
// It only ever creates rows and fills null descriptive columns; success_status,
// feedback and rank columns are left to the people working the dashboard.
type PostgresMirrorRepository struct {
	db    *sql.DB
	table string // quoted identifier
}

var _ review.Mirror = (*PostgresMirrorRepository)(nil)

func NewPostgresMirrorRepository(db *sql.DB, table string) *PostgresMirrorRepository {
	return &PostgresMirrorRepository{db: db, table: pq.QuoteIdentifier(table)}
}

// UpsertPending inserts a pending tracking record unless one already exists for the id.
func (r *PostgresMirrorRepository) UpsertPending(ctx context.Context, c review.Candidate) (bool, error) {
	var existingID int64
	query := fmt.Sprintf(`SELECT id FROM %s WHERE proposition_id = $1 LIMIT 1`, r.table)
	err := r.db.QueryRowContext(ctx, query, c.NaturalID).Scan(&existingID)
	if err == nil {
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("error checking tracking record %d: %w", c.NaturalID, err)
	}

	// ON CONFLICT covers a concurrent run inserting between the check and the insert.
	insert := fmt.Sprintf(`INSERT INTO %s (proposition_id, campaign_name, manager, company_name, keywords, post_link, blogger_id, review_registered_at, success_status)
               VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
               ON CONFLICT (proposition_id) DO NOTHING`, r.table)
	res, err := r.db.ExecContext(ctx, insert,
		c.NaturalID, c.CampaignName, c.ManagerName, c.CompanyName, c.Keywords,
		c.PostLink, c.BloggerID, registeredAt(c), review.StatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("error creating tracking record %d: %w", c.NaturalID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading insert result for tracking record %d: %w", c.NaturalID, err)
	}
	return affected > 0, nil
}

// ExistingIDs reports which of the natural ids already have a tracking record.
func (r *PostgresMirrorRepository) ExistingIDs(ctx context.Context, naturalIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool)
	if len(naturalIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`SELECT proposition_id FROM %s WHERE proposition_id = ANY($1)`, r.table)
	rows, err := r.db.QueryContext(ctx, query, pq.Array(naturalIDs))
	if err != nil {
		return nil, fmt.Errorf("error querying existing tracking records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning tracking record id: %w", err)
		}
		result[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracking record ids: %w", err)
	}
	return result, nil
}

// ListIncomplete returns rows with a post link but at least one null descriptive column,
// starting after afterID. Callers page by passing the last id they received.
func (r *PostgresMirrorRepository) ListIncomplete(ctx context.Context, afterID int64, limit int) ([]*review.TrackingRecord, error) {
	query := fmt.Sprintf(`SELECT id, proposition_id, campaign_name, manager, company_name, keywords, post_link, blogger_id, review_registered_at, success_status, created_at, updated_at
               FROM %s
               WHERE post_link IS NOT NULL
                 AND (proposition_id IS NULL OR campaign_name IS NULL OR manager IS NULL OR company_name IS NULL
                      OR keywords IS NULL OR blogger_id IS NULL OR review_registered_at IS NULL)
                 AND id > $1
               ORDER BY id ASC
               LIMIT $2`, r.table)
	rows, err := r.db.QueryContext(ctx, query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing incomplete tracking records: %w", err)
	}
	defer rows.Close()

	var records []*review.TrackingRecord
	for rows.Next() {
		t := &review.TrackingRecord{}
		if err := rows.Scan(
			&t.ID, &t.NaturalID, &t.CampaignName, &t.ManagerName, &t.CompanyName, &t.Keywords,
			&t.PostLink, &t.BloggerID, &t.RegisteredAt, &t.Status, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("error scanning tracking record: %w", err)
		}
		records = append(records, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tracking records: %w", err)
	}
	return records, nil
}

// FillMissing only writes into columns that are currently null, and only touches the row
// when at least one of them receives a value. updated is false when the candidate has
// nothing for the null columns.
func (r *PostgresMirrorRepository) FillMissing(ctx context.Context, trackingID int64, c review.Candidate) (bool, error) {
	fillable := fillableColumns(c)
	if len(fillable) == 0 {
		return false, nil
	}

	query := fmt.Sprintf(`UPDATE %s
               SET proposition_id = COALESCE(proposition_id, $2),
                   campaign_name = COALESCE(campaign_name, $3),
                   manager = COALESCE(manager, $4),
                   company_name = COALESCE(company_name, $5),
                   keywords = COALESCE(keywords, $6),
                   blogger_id = COALESCE(blogger_id, $7),
                   review_registered_at = COALESCE(review_registered_at, $8),
                   updated_at = NOW()
               WHERE id = $1 AND (%s)`, r.table, strings.Join(fillable, " OR "))
	res, err := r.db.ExecContext(ctx, query,
		trackingID, c.NaturalID, c.CampaignName, c.ManagerName, c.CompanyName,
		c.Keywords, c.BloggerID, registeredAt(c),
	)
	if err != nil {
		return false, fmt.Errorf("error filling tracking record %d: %w", trackingID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error reading update result for tracking record %d: %w", trackingID, err)
	}
	if affected > 0 {
		return true, nil
	}

	var exists bool
	existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, r.table)
	if err := r.db.QueryRowContext(ctx, existsQuery, trackingID).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking tracking record %d: %w", trackingID, err)
	}
	if !exists {
		return false, ErrTrackingRecordNotFound
	}
	return false, nil
}

// fillableColumns lists "<column> IS NULL" for every descriptive column the candidate
// has a value for.
func fillableColumns(c review.Candidate) []string {
	var cols []string
	add := func(column string, ok bool) {
		if ok {
			cols = append(cols, column+" IS NULL")
		}
	}
	add("proposition_id", c.NaturalID != 0)
	add("campaign_name", c.CampaignName.Valid)
	add("manager", c.ManagerName.Valid)
	add("company_name", c.CompanyName.Valid)
	add("keywords", c.Keywords.Valid)
	add("blogger_id", c.BloggerID.Valid)
	add("review_registered_at", !c.RegisteredAt.IsZero())
	return cols
}

func registeredAt(c review.Candidate) sql.NullTime {
	return sql.NullTime{Time: c.RegisteredAt, Valid: !c.RegisteredAt.IsZero()}
}
