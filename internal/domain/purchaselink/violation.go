// internal/domain/purchaselink/violation.go
package purchaselink

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Violation is a responded proposition whose channel campaign requires a purchase link
// that the proposition never received.
type Violation struct {
	PropositionID       int64
	CampaignID          int64
	CampaignName        sql.NullString
	ChannelPurchaseLink string
	CreatedAt           time.Time
	RespondedAt         time.Time
}

// Key identifies the violation in the notification log.
func (v Violation) Key() string {
	return fmt.Sprintf("%d_%d", v.PropositionID, v.CampaignID)
}

// Notice is a violation selected for delivery in this run.
type Notice struct {
	Violation         Violation
	NotificationCount int // 1 for the first alert, >1 when re-notifying an unresolved one
}

// Source reads violations created at or after since.
type Source interface {
	ListPurchaseLinkViolations(ctx context.Context, since time.Time) ([]Violation, error)
}

// Notifier delivers one batch message for all notices of a run.
type Notifier interface {
	NotifyViolations(ctx context.Context, notices []Notice) error
}

// LogStore persists the notification log between runs.
type LogStore interface {
	Load(ctx context.Context) (Log, error)
	Save(ctx context.Context, log Log) error
}
