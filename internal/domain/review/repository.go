// internal/domain/review/repository.go
package review

import (
	"context"
	"time"
)

// SourceReader issues read-only queries against the campaign database.
type SourceReader interface {
	// ListRegisteredBetween returns candidates with lower < registeredAt <= upper,
	// oldest first. Both bounds are UTC.
	ListRegisteredBetween(ctx context.Context, lower, upper time.Time) ([]Candidate, error)
	GetByID(ctx context.Context, naturalID int64) (*Candidate, error)
	GetByPostLink(ctx context.Context, postLink string) (*Candidate, error)
}

// Mirror is the downstream tracking store. It has creation-only semantics for
// everything the people reviewing the records may edit.
type Mirror interface {
	// UpsertPending creates a pending record for the candidate. An existing record for the
	// same natural id is left untouched and reported with created=false.
	UpsertPending(ctx context.Context, c Candidate) (created bool, err error)
	ExistingIDs(ctx context.Context, naturalIDs []int64) (map[int64]bool, error)
	// ListIncomplete returns up to limit records with a null descriptive column and an id
	// greater than afterID, ordered by id.
	ListIncomplete(ctx context.Context, afterID int64, limit int) ([]*TrackingRecord, error)
	// FillMissing copies descriptive fields from the candidate into columns that are null.
	// updated is false when no null column had a value to take.
	FillMissing(ctx context.Context, trackingID int64, c Candidate) (updated bool, err error)
}

// Notifier delivers a message about a new review. Delivery is best-effort.
type Notifier interface {
	Notify(ctx context.Context, c Candidate) error
}
