// internal/infra/statestore/watermark_store.go
package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"review_monitor/internal/domain/watermark"
	"review_monitor/internal/infra/blob"

	"github.com/sirupsen/logrus"
)

// watermarkDocument is the JSON shape shared with every other reader of the blob.
type watermarkDocument struct {
	LastCheckTime     *time.Time     `json:"lastCheckTime"`
	ProcessedIDs      []processedDoc `json:"processedIds"`
	LastProcessedTime *time.Time     `json:"lastProcessedTime"`
	TotalProcessed    int            `json:"totalProcessed"`
}

type processedDoc struct {
	ID            int64      `json:"id"`
	Time          time.Time  `json:"time"`
	RegisteredAt  *time.Time `json:"registeredAt,omitempty"`
	SupabaseSaved bool       `json:"supabaseSaved"` // absent in old entries, which decode as not mirrored
}

// WatermarkStore implements watermark.Store over a single JSON blob.
type WatermarkStore struct {
	blob      blob.Blob
	retention time.Duration
	logger    *logrus.Entry
	now       func() time.Time
}

var _ watermark.Store = (*WatermarkStore)(nil)

func NewWatermarkStore(b blob.Blob, retention time.Duration, logger *logrus.Entry) *WatermarkStore {
	return &WatermarkStore{blob: b, retention: retention, logger: logger, now: time.Now}
}

// Load returns the stored state. A missing or malformed document yields the empty state
// with watermark.Defaulted; a read failure yields it with watermark.Unavailable.
func (s *WatermarkStore) Load(ctx context.Context) (watermark.State, watermark.LoadStatus) {
	data, err := s.blob.Read(ctx)
	if err != nil {
		if errors.Is(err, blob.ErrBlobNotFound) {
			s.logger.Warn("Watermark blob not found, starting from an empty state")
			return watermark.State{}, watermark.Defaulted
		}
		s.logger.WithError(err).Error("Failed to read watermark")
		return watermark.State{}, watermark.Unavailable
	}

	state, err := decodeWatermark(data)
	if err != nil {
		s.logger.WithError(err).Error("Malformed watermark document, starting from an empty state")
		return watermark.State{}, watermark.Defaulted
	}

	s.logger.WithFields(logrus.Fields{
		"last_check_time": formatOptional(state.LastCheckTime),
		"processed_ids":   len(state.ProcessedKeys),
	}).Info("Watermark loaded")
	return state, watermark.Loaded
}

// Save prunes entries older than the retention window and writes the whole document.
func (s *WatermarkStore) Save(ctx context.Context, state watermark.State) error {
	now := s.now().UTC()
	state.Prune(now.Add(-s.retention))
	if state.LastCheckTime == nil {
		state.LastCheckTime = &now
	}

	data, err := encodeWatermark(state)
	if err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}
	if err := s.blob.Write(ctx, data); err != nil {
		return fmt.Errorf("write watermark: %w", err)
	}

	s.logger.WithField("processed_ids", len(state.ProcessedKeys)).Info("Watermark saved")
	return nil
}

func decodeWatermark(data []byte) (watermark.State, error) {
	var doc watermarkDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return watermark.State{}, err
	}

	state := watermark.State{
		LastCheckTime:     doc.LastCheckTime,
		LastProcessedTime: doc.LastProcessedTime,
	}
	for _, p := range doc.ProcessedIDs {
		key := watermark.ProcessedKey{
			NaturalID:   p.ID,
			ProcessedAt: p.Time,
			Mirrored:    p.SupabaseSaved,
		}
		if p.RegisteredAt != nil {
			key.RegisteredAt = *p.RegisteredAt
		}
		state.Record(key)
	}
	return state, nil
}

func encodeWatermark(state watermark.State) ([]byte, error) {
	doc := watermarkDocument{
		LastCheckTime:     state.LastCheckTime,
		LastProcessedTime: state.LastProcessedTime,
		ProcessedIDs:      make([]processedDoc, 0, len(state.ProcessedKeys)),
		TotalProcessed:    len(state.ProcessedKeys),
	}
	for _, k := range state.ProcessedKeys {
		p := processedDoc{ID: k.NaturalID, Time: k.ProcessedAt, SupabaseSaved: k.Mirrored}
		if !k.RegisteredAt.IsZero() {
			registeredAt := k.RegisteredAt
			p.RegisteredAt = &registeredAt
		}
		doc.ProcessedIDs = append(doc.ProcessedIDs, p)
	}
	return json.MarshalIndent(doc, "", "  ")
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(time.RFC3339)
}
