// internal/infra/statestore/notification_log_store.go
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/infra/blob"
)

type logEntryDoc struct {
	NotifiedAt        time.Time `json:"notifiedAt"`
	LastCheckedAt     time.Time `json:"lastCheckedAt"`
	PropositionID     int64     `json:"propositionId"`
	CampaignID        int64     `json:"campaignId"`
	CampaignName      string    `json:"cname"`
	NotificationCount int       `json:"notificationCount"`
}

// NotificationLogStore implements purchaselink.LogStore over a JSON blob.
type NotificationLogStore struct {
	blob blob.Blob
}

var _ purchaselink.LogStore = (*NotificationLogStore)(nil)

func NewNotificationLogStore(b blob.Blob) *NotificationLogStore {
	return &NotificationLogStore{blob: b}
}

// Load returns an empty log when nothing was stored yet.
func (s *NotificationLogStore) Load(ctx context.Context) (purchaselink.Log, error) {
	data, err := s.blob.Read(ctx)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			return purchaselink.Log{}, nil
		}
		return nil, fmt.Errorf("read notification log: %w", err)
	}

	var doc map[string]logEntryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode notification log: %w", err)
	}

	log := make(purchaselink.Log, len(doc))
	for key, e := range doc {
		log[key] = &purchaselink.LogEntry{
			PropositionID:     e.PropositionID,
			CampaignID:        e.CampaignID,
			CampaignName:      e.CampaignName,
			NotifiedAt:        e.NotifiedAt,
			LastCheckedAt:     e.LastCheckedAt,
			NotificationCount: e.NotificationCount,
		}
	}
	return log, nil
}

func (s *NotificationLogStore) Save(ctx context.Context, log purchaselink.Log) error {
	doc := make(map[string]logEntryDoc, len(log))
	for key, e := range log {
		doc[key] = logEntryDoc{
			NotifiedAt:        e.NotifiedAt,
			LastCheckedAt:     e.LastCheckedAt,
			PropositionID:     e.PropositionID,
			CampaignID:        e.CampaignID,
			CampaignName:      e.CampaignName,
			NotificationCount: e.NotificationCount,
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode notification log: %w", err)
	}
	if err := s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("write notification log: %w", err)
	}
	return nil
}
