package slack

import (
	"fmt"
	"time"

	"review_monitor/internal/domain/purchaselink"
	"review_monitor/internal/domain/review"
)

// Slack rejects messages with more than 50 blocks; each violation uses two.
const maxViolationsPerMessage = 20

type text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Fields   []text `json:"fields,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type message struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

func header(s string) block {
	return block{Type: "header", Text: &text{Type: "plain_text", Text: s, Emoji: true}}
}

func markdown(s string) text {
	return text{Type: "mrkdwn", Text: s}
}

func orNA(s string, valid bool) string {
	if !valid || s == "" {
		return "N/A"
	}
	return s
}

func reviewMessage(c review.Candidate, loc *time.Location) message {
	registered := "N/A"
	if !c.RegisteredAt.IsZero() {
		registered = c.RegisteredAt.In(loc).Format("2006-01-02 15:04:05")
	}
	campaign := orNA(c.CampaignName.String, c.CampaignName.Valid)

	return message{
		Text: fmt.Sprintf("신규 리뷰 등록: %s (ID %d)", campaign, c.NaturalID),
		Blocks: []block{
			header("📝 신규 리뷰 등록 알림"),
			{Type: "section", Fields: []text{
				markdown("*캠페인명:*\n" + campaign),
				markdown("*블로거 ID:*\n" + orNA(c.BloggerID.String, c.BloggerID.Valid)),
				markdown("*매니저:*\n" + orNA(c.ManagerName.String, c.ManagerName.Valid)),
				markdown("*등록 시간:*\n" + registered),
			}},
			{Type: "section", Text: &text{Type: "mrkdwn", Text: "*리뷰 URL:* " + c.PostLink}},
			{Type: "context", Elements: []text{markdown(fmt.Sprintf("ID: %d", c.NaturalID))}},
		},
	}
}

func violationsMessage(notices []purchaselink.Notice, checkedAt time.Time, loc *time.Location) message {
	unresolved := purchaselink.UnresolvedCount(notices)

	title := "🚨 구매링크 누락 알림"
	summary := fmt.Sprintf("*%d개의 구매링크 누락*이 발견되었습니다.", len(notices))
	if unresolved > 0 {
		title = fmt.Sprintf("🚨 구매링크 누락 알림 (%d개 미해결)", unresolved)
		summary += fmt.Sprintf("\n_※ %d개는 재알림 주기 이상 미해결된 건입니다._", unresolved)
	}

	blocks := []block{
		header(title),
		{Type: "section", Text: &text{Type: "mrkdwn", Text: summary}},
		{Type: "divider"},
	}

	shown := notices
	if len(shown) > maxViolationsPerMessage {
		shown = shown[:maxViolationsPerMessage]
	}
	for i, n := range shown {
		id := fmt.Sprintf("%d", n.Violation.PropositionID)
		if n.NotificationCount > 1 {
			id = fmt.Sprintf("%s (%d차 알림)", id, n.NotificationCount)
		}
		blocks = append(blocks, block{Type: "section", Fields: []text{
			markdown("*Proposition ID:*\n" + id),
			markdown("*캠페인명:*\n" + orNA(n.Violation.CampaignName.String, n.Violation.CampaignName.Valid)),
			markdown(fmt.Sprintf("*Campaign ID:*\n%d", n.Violation.CampaignID)),
			markdown("*Channel 구매링크:*\n" + n.Violation.ChannelPurchaseLink),
		}})
		if i < len(shown)-1 {
			blocks = append(blocks, block{Type: "divider"})
		}
	}

	footer := "검사 시간: " + checkedAt.In(loc).Format("2006-01-02 15:04:05")
	if hidden := len(notices) - len(shown); hidden > 0 {
		footer = fmt.Sprintf("외 %d건 생략 | %s", hidden, footer)
	}
	blocks = append(blocks, block{Type: "context", Elements: []text{markdown(footer)}})

	return message{
		Text:   fmt.Sprintf("구매링크 누락 %d건", len(notices)),
		Blocks: blocks,
	}
}
