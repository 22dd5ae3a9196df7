// internal/domain/review/candidate.go
package review

import (
	"database/sql"
	"time"
)

// Candidate is a review row read from the source database for the current cycle.
// It is never mutated once read.
type Candidate struct {
	NaturalID    int64 // Propositions.id, correlation key across all stores
	CampaignName sql.NullString
	CompanyName  sql.NullString
	ManagerName  sql.NullString
	BloggerID    sql.NullString // Users.outerId of the submitter
	PostLink     string         // never empty, filtered by the source query
	RegisteredAt time.Time      // normalised to UTC
	Keywords     sql.NullString
}
