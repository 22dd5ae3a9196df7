package slack

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var kst = time.FixedZone("SOURCE", 9*60*60)

type capture struct {
	bodies [][]byte
	status int
}

func (c *capture) server(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		c.bodies = append(c.bodies, body)
		if c.status != 0 {
			w.WriteHeader(c.status)
			_, _ = w.Write([]byte("invalid_payload"))
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
}

func TestNotifyPostsReviewBlocks(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	defer srv.Close()

	client := NewWebhookClient(srv.URL, kst)
	err := client.Notify(context.Background(), review.Candidate{
		NaturalID:    101,
		CampaignName: sql.NullString{String: "Summer Cafe", Valid: true},
		BloggerID:    sql.NullString{String: "blogger1", Valid: true},
		PostLink:     "https://blog.example/101",
		RegisteredAt: time.Date(2025, 6, 1, 1, 30, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, c.bodies, 1)

	var msg message
	require.NoError(t, json.Unmarshal(c.bodies[0], &msg))

	g := goldie.New(t)
	g.AssertJson(t, "review_message", msg)
}

func TestNotifyReportsNon2xx(t *testing.T) {
	c := &capture{status: http.StatusBadRequest}
	srv := c.server(t)
	defer srv.Close()

	err := NewWebhookClient(srv.URL, kst).Notify(context.Background(), review.Candidate{NaturalID: 1, PostLink: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "invalid_payload")
}

func TestNotifyViolations(t *testing.T) {
	c := &capture{}
	srv := c.server(t)
	defer srv.Close()

	client := NewWebhookClient(srv.URL, kst)
	client.now = func() time.Time { return time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, client.NotifyViolations(context.Background(), nil))
	assert.Empty(t, c.bodies, "no message for an empty batch")

	notices := []purchaselink.Notice{
		{Violation: purchaselink.Violation{PropositionID: 55, CampaignID: 9, ChannelPurchaseLink: "https://shop.example/a"}, NotificationCount: 1},
		{Violation: purchaselink.Violation{PropositionID: 56, CampaignID: 9, ChannelPurchaseLink: "https://shop.example/a"}, NotificationCount: 3},
	}
	require.NoError(t, client.NotifyViolations(context.Background(), notices))
	require.Len(t, c.bodies, 1)

	var msg message
	require.NoError(t, json.Unmarshal(c.bodies[0], &msg))
	assert.Equal(t, "🚨 구매링크 누락 알림 (1개 미해결)", msg.Blocks[0].Text.Text)
	// header, summary, divider, section, divider, section, context
	require.Len(t, msg.Blocks, 7)
	assert.Equal(t, "*Proposition ID:*\n56 (3차 알림)", msg.Blocks[5].Fields[0].Text)
	assert.Equal(t, "검사 시간: 2025-05-02 09:00:00", msg.Blocks[6].Elements[0].Text)
}

func TestViolationsMessageCapsBlocks(t *testing.T) {
	notices := make([]purchaselink.Notice, 30)
	for i := range notices {
		notices[i] = purchaselink.Notice{Violation: purchaselink.Violation{PropositionID: int64(i)}, NotificationCount: 1}
	}

	msg := violationsMessage(notices, time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC), kst)
	assert.LessOrEqual(t, len(msg.Blocks), 50)
	assert.Contains(t, msg.Blocks[len(msg.Blocks)-1].Elements[0].Text, "외 10건 생략")
}
