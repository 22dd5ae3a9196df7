package statestore

import (
	"context"
	"testing"
	"time"

	"review_monitor/internal/domain/purchaselink"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationLogRoundTrip(t *testing.T) {
	b := &memBlob{}
	store := NewNotificationLogStore(b)

	empty, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, empty)

	at := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Save(context.Background(), purchaselink.Log{
		"55_9": {PropositionID: 55, CampaignID: 9, CampaignName: "Glow", NotifiedAt: at, LastCheckedAt: at, NotificationCount: 2},
	}))
	assert.Contains(t, string(b.data), `"cname": "Glow"`)

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Contains(t, got, "55_9")
	assert.Equal(t, 2, got["55_9"].NotificationCount)
	assert.True(t, at.Equal(got["55_9"].NotifiedAt))
}

func TestNotificationLogMalformed(t *testing.T) {
	_, err := NewNotificationLogStore(&memBlob{data: []byte(`[1,2]`)}).Load(context.Background())
	assert.Error(t, err)
}
