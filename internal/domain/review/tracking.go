// internal/domain/review/tracking.go
package review

import (
	"database/sql"
	"time"
)

// Status is the human-owned outcome of a tracked review.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// TrackingRecord is the mirrored copy of a candidate in the exposure tracking table.
// The monitor only ever creates it in StatusPending; everything after that belongs to
// the people working the dashboard.
type TrackingRecord struct {
	ID           int64
	NaturalID    sql.NullInt64 // null for rows imported before ids were mirrored
	CampaignName sql.NullString
	CompanyName  sql.NullString
	ManagerName  sql.NullString
	BloggerID    sql.NullString
	PostLink     sql.NullString
	RegisteredAt sql.NullTime
	Keywords     sql.NullString
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// MissingFields lists the descriptive columns that are still null.
func (t *TrackingRecord) MissingFields() []string {
	var missing []string
	if !t.NaturalID.Valid {
		missing = append(missing, "proposition_id")
	}
	if !t.CampaignName.Valid {
		missing = append(missing, "campaign_name")
	}
	if !t.ManagerName.Valid {
		missing = append(missing, "manager")
	}
	if !t.CompanyName.Valid {
		missing = append(missing, "company_name")
	}
	if !t.Keywords.Valid {
		missing = append(missing, "keywords")
	}
	if !t.BloggerID.Valid {
		missing = append(missing, "blogger_id")
	}
	if !t.RegisteredAt.Valid {
		missing = append(missing, "review_registered_at")
	}
	return missing
}
